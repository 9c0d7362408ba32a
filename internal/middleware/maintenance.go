// internal/middleware/maintenance.go
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"steppe-logistics.kz/internal/permissions"
)

// MaintenanceCheck сообщает, включен ли режим обслуживания.
type MaintenanceCheck func(ctx context.Context) (bool, error)

var maintenanceExempt = map[string]bool{
	"/api/login":      true,
	"/api/logout":     true,
	"/api/csrf-token": true,
	"/healthz":        true,
	"/metrics":        true,
}

// Maintenance отвечает 503 на публичные маршруты и личный кабинет, пока включен режим обслуживания.
// Пользователи с доступом в админку проходят. Ставится после LoadUser.
func Maintenance(check MaintenanceCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maintenanceExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			enabled, err := check(r.Context())
			if err != nil {
				slog.Error("Не удалось проверить режим обслуживания", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			if p, ok := PrincipalFromContext(r.Context()); ok && permissions.CanAccessAdmin(p.Role) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", "600")
			if WantsJSON(r) {
				writeError(w, http.StatusServiceUnavailable, "Сайт на техническом обслуживании. Попробуйте позже.")
				return
			}
			http.Error(w, "Сайт на техническом обслуживании. Попробуйте позже.", http.StatusServiceUnavailable)
		})
	}
}
