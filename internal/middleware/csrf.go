// internal/middleware/csrf.go
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/justinas/nosurf"
)

// NoSurfMiddleware обеспечивает CSRF-защиту. Токен клиенты получают через GET /api/csrf-token
// и отправляют в заголовке X-CSRF-Token или поле csrf_token.
func NoSurfMiddleware(next http.Handler, isProduction bool, authKey string) http.Handler {
	csrfHandler := nosurf.New(next)

	if authKey == "" {
		if isProduction {
			slog.Error("КРИТИЧЕСКАЯ ОШИБКА: CSRF_AUTH_KEY не задан для production")
		} else {
			slog.Warn("CSRF_AUTH_KEY не задан, используется ключ nosurf по умолчанию")
		}
	}

	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	// метрики собирает Prometheus без сессии и токена
	csrfHandler.ExemptPath("/metrics")

	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("Неудачная проверка CSRF токена", "path", r.URL.Path, "method", r.Method, "reason", nosurf.Reason(r))
		writeError(w, http.StatusForbidden, "Ошибка безопасности: неверный или отсутствующий CSRF токен.")
	}))

	return csrfHandler
}
