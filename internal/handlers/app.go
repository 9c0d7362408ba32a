// internal/handlers/app.go
package handlers

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/config"
	"steppe-logistics.kz/internal/email"
	"steppe-logistics.kz/internal/i18n"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/permissions"
)

// AppHandlers содержит общие зависимости обработчиков сайта и админки.
type AppHandlers struct {
	Config         *config.Config
	SessionManager *scs.SessionManager
	Notifier       *email.Notifier
	Captcha        captcha.Verifier
	I18n           *i18n.Bundle
	Guard          *permissions.Guard
	AccessLoader   middleware.AccessLoader
}

func NewAppHandlers(cfg *config.Config, sm *scs.SessionManager, notifier *email.Notifier, verifier captcha.Verifier, bundle *i18n.Bundle, loader middleware.AccessLoader) *AppHandlers {
	return &AppHandlers{
		Config:         cfg,
		SessionManager: sm,
		Notifier:       notifier,
		Captcha:        verifier,
		I18n:           bundle,
		Guard:          permissions.NewGuard(),
		AccessLoader:   loader,
	}
}

// Locale - язык текущего запроса.
func (app *AppHandlers) Locale(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context(), app.I18n.Default())
}

// T переводит ключ на язык запроса.
func (app *AppHandlers) T(r *http.Request, key string) string {
	return app.I18n.T(app.Locale(r), key)
}

// Background запускает отправку письма, не задерживая ответ.
func (app *AppHandlers) Background(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if app.Notifier == nil {
		return
	}
	app.Notifier.Async(ctx, name, fn)
}
