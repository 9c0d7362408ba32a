// internal/email/notifier.go
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"steppe-logistics.kz/internal/models"
)

var quoteStatusLabels = map[models.QuoteStatus]string{
	models.QuoteNew:      "новая",
	models.QuoteInReview: "на рассмотрении",
	models.QuoteQuoted:   "рассчитана",
	models.QuoteAccepted: "принята",
	models.QuoteRejected: "отклонена",
	models.QuoteClosed:   "закрыта",
}

// Notifier собирает письма по шаблонам и отправляет их через Mailer.
type Notifier struct {
	mailer   Mailer
	baseURL  string
	siteName string
	opsEmail string
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewNotifier(mailer Mailer, baseURL, siteName, opsEmail string) *Notifier {
	return &Notifier{
		mailer:   mailer,
		baseURL:  baseURL,
		siteName: siteName,
		opsEmail: opsEmail,
		timeout:  30 * time.Second,
	}
}

// Async отправляет письмо в фоне, не привязываясь к отмене запроса.
func (n *Notifier) Async(ctx context.Context, name string, fn func(ctx context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := fn(sendCtx); err != nil {
			slog.Error("Ошибка отправки уведомления", "notification", name, "error", err)
		}
	}()
}

// Wait дожидается фоновых отправок (при остановке сервера).
func (n *Notifier) Wait() { n.wg.Wait() }

func (n *Notifier) send(ctx context.Context, to []string, tpl string, data any) error {
	subject, html, text, err := Render(tpl, data)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text})
}

func (n *Notifier) link(path string, query url.Values) string {
	if len(query) == 0 {
		return n.baseURL + path
	}
	return n.baseURL + path + "?" + query.Encode()
}

func (n *Notifier) SendVerification(ctx context.Context, user *models.User, rawToken string) error {
	return n.send(ctx, []string{user.Email}, tplVerification, map[string]any{
		"SiteName": n.siteName,
		"Name":     user.DisplayName(),
		"Link":     n.link("/verify-email", url.Values{"token": {rawToken}}),
	})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, user *models.User, rawToken string) error {
	return n.send(ctx, []string{user.Email}, tplPasswordReset, map[string]any{
		"SiteName": n.siteName,
		"Name":     user.DisplayName(),
		"Link":     n.link("/reset-password", url.Values{"token": {rawToken}}),
	})
}

// NotifyContact сообщает операционному отделу о новом обращении.
func (n *Notifier) NotifyContact(ctx context.Context, msg *models.ContactMessage) error {
	if n.opsEmail == "" {
		slog.Warn("NOTIFY_EMAIL не задан, уведомление об обращении не отправлено", "message_id", msg.ID)
		return nil
	}
	return n.send(ctx, []string{n.opsEmail}, tplContactReceived, map[string]any{
		"SiteName": n.siteName,
		"Message":  msg,
		"Link":     n.link("/admin/messages/"+msg.ID, nil),
	})
}

func (n *Notifier) NotifyQuoteReceived(ctx context.Context, q *models.Quote, customer *models.User) error {
	if n.opsEmail == "" {
		slog.Warn("NOTIFY_EMAIL не задан, уведомление о заявке не отправлено", "reference", q.Reference)
		return nil
	}
	return n.send(ctx, []string{n.opsEmail}, tplQuoteReceived, map[string]any{
		"SiteName": n.siteName,
		"Quote":    q,
		"Customer": fmt.Sprintf("%s <%s>", customer.DisplayName(), customer.Email),
		"Link":     n.link(fmt.Sprintf("/admin/quotes/%d", q.ID), nil),
	})
}

// NotifyQuoteStatus пишет клиенту, только если он не отключил уведомления.
func (n *Notifier) NotifyQuoteStatus(ctx context.Context, q *models.Quote, customer *models.User) error {
	if !customer.EmailNotifications {
		slog.Debug("Клиент отключил уведомления, письмо о статусе не отправлено", "userID", customer.ID, "reference", q.Reference)
		return nil
	}
	return n.send(ctx, []string{customer.Email}, tplQuoteStatus, map[string]any{
		"SiteName":    n.siteName,
		"Name":        customer.DisplayName(),
		"Quote":       q,
		"StatusLabel": QuoteStatusLabel(q.Status),
		"Link":        n.link("/dashboard/quotes/"+q.Reference, nil),
	})
}

func QuoteStatusLabel(s models.QuoteStatus) string {
	if label, ok := quoteStatusLabels[s]; ok {
		return label
	}
	return string(s)
}
