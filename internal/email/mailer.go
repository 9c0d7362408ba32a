// internal/email/mailer.go
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"steppe-logistics.kz/internal/config"
)

var ErrNotConfigured = errors.New("SMTP хост или отправитель не настроены для отправки email")

type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer возвращает SMTP-отправщик, а без настроек SMTP - логирующую заглушку.
// Вне development заглушка на каждую отправку возвращает ErrNotConfigured.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.Email.Enabled() {
		return &SMTPMailer{cfg: cfg.Email}
	}
	slog.Warn("SMTP не настроен, письма будут только логироваться", "app_env", cfg.AppEnv)
	return &LogMailer{Strict: cfg.AppEnv != "development"}
}

// SMTPMailer отправляет письма через go-mail, соединение открывается на каждую отправку.
type SMTPMailer struct {
	cfg config.EmailConfig
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("нет получателей письма")
	}

	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.SenderName, s.cfg.Sender); err != nil {
		return fmt.Errorf("некорректный отправитель: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("некорректный получатель: %w", err)
	}
	m.Subject(sanitizeSubject(msg.Subject))
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPport),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.SMTPport == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	}
	if s.cfg.SMTPuser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.SMTPuser),
			mail.WithPassword(s.cfg.SMTPpassword),
		)
	}

	c, err := mail.NewClient(s.cfg.SMTPhost, opts...)
	if err != nil {
		return fmt.Errorf("не удалось создать SMTP клиент: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		slog.Error("Ошибка отправки email", "to", msg.To, "error", err)
		return fmt.Errorf("не удалось отправить email: %w", err)
	}
	slog.Info("Email отправлен", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer пишет письмо в лог вместо отправки.
type LogMailer struct {
	Strict bool
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	slog.Warn("Псевдо-отправка email", "to", msg.To, "subject", msg.Subject)
	slog.Debug("Тело письма (псевдо-отправка)", "text", msg.Text)
	if l.Strict {
		return ErrNotConfigured
	}
	return nil
}

func sanitizeSubject(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(strings.TrimSpace(s))
}
