// internal/handlers/contact.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/validation"
)

// checkCaptcha проверяет токен капчи и сам пишет ответ при отказе.
func (app *AppHandlers) checkCaptcha(w http.ResponseWriter, r *http.Request, token, action string) bool {
	err := app.Captcha.Verify(r.Context(), token, middleware.ClientIP(r), action)
	if err == nil {
		return true
	}
	if errors.Is(err, captcha.ErrUnavailable) {
		slog.Error("Капча недоступна, форма отклонена", "action", action, "error", err)
		WriteError(w, http.StatusServiceUnavailable, app.T(r, "errors.captcha_unavailable"))
		return false
	}
	slog.Warn("Капча не пройдена", "action", action, "ip", middleware.ClientIP(r), "error", err)
	WriteValidationErrors(w, url.Values{"captcha_token": {app.T(r, "errors.captcha_failed")}})
	return false
}

// ContactHandler принимает форму обратной связи.
func (app *AppHandlers) ContactHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Ошибка парсинга формы обратной связи", "error", err)
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	form := models.ContactForm{
		Name:         strings.TrimSpace(r.PostForm.Get("name")),
		Email:        strings.ToLower(strings.TrimSpace(r.PostForm.Get("email"))),
		Phone:        strings.TrimSpace(r.PostForm.Get("phone")),
		Company:      strings.TrimSpace(r.PostForm.Get("company")),
		Subject:      strings.TrimSpace(r.PostForm.Get("subject")),
		Message:      strings.TrimSpace(r.PostForm.Get("message")),
		CaptchaToken: r.PostForm.Get("captcha_token"),
		Honeypot:     r.PostForm.Get("website"),
	}

	// боту отвечаем как обычно, но ничего не сохраняем
	if form.Honeypot != "" {
		slog.Warn("Сработала ловушка для ботов в форме обратной связи", "ip", middleware.ClientIP(r))
		WriteMessage(w, http.StatusAccepted, app.T(r, "messages.contact_sent"))
		return
	}

	if errs := validation.ValidateStruct(form); len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}
	if !app.checkCaptcha(w, r, form.CaptchaToken, "contact") {
		return
	}

	msg := &models.ContactMessage{
		Name:    auth.SanitizeName(form.Name),
		Email:   form.Email,
		Phone:   auth.NormalizePhone(form.Phone),
		Company: form.Company,
		Subject: form.Subject,
		Body:    form.Message,
		IP:      middleware.ClientIP(r),
	}
	if err := db.CreateContactMessage(r.Context(), msg); err != nil {
		slog.Error("Не удалось сохранить сообщение обратной связи", "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	app.Background(r.Context(), "contact_notify", func(ctx context.Context) error {
		return app.Notifier.NotifyContact(ctx, msg)
	})

	slog.Info("Получено сообщение с формы обратной связи", "messageID", msg.ID, "email", msg.Email)
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":      msg.ID,
		"message": app.T(r, "messages.contact_sent"),
	})
}
