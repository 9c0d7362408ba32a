// internal/middleware/locale.go
package middleware

import (
	"context"
	"net/http"

	"steppe-logistics.kz/internal/i18n"
)

// Locale определяет язык запроса. Ставится после LoadUser или AdminGuard,
// чтобы учесть язык из профиля.
func Locale(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userLocale string
			if user := UserFromContext(r.Context()); user != nil {
				userLocale = user.PreferredLocale
			} else if p, ok := PrincipalFromContext(r.Context()); ok {
				userLocale = p.PreferredLocale
			}
			locale, persist := bundle.Resolve(r, userLocale)
			if persist {
				i18n.SetLanguageCookie(w, locale)
			}
			w.Header().Set("Content-Language", locale)
			ctx := context.WithValue(r.Context(), LocaleContextKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext возвращает fallback, если Locale не отработал.
func LocaleFromContext(ctx context.Context, fallback string) string {
	if locale, ok := ctx.Value(LocaleContextKey).(string); ok && locale != "" {
		return locale
	}
	return fallback
}
