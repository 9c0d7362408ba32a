// internal/handlers/admin/admin_dashboard.go
package adminhandlers

import (
	"log/slog"
	"net/http"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/permissions"
)

// actorID - ID сотрудника, прошедшего AdminGuard.
func actorID(r *http.Request) int64 {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p.UserID
}

// modulesFor - разделы, которые сотрудник увидит в меню.
func modulesFor(p permissions.Principal) []permissions.Module {
	out := []permissions.Module{}
	for _, m := range permissions.AllModules() {
		if permissions.CanAccessModule(p.Role, m, p.CanManageArticles) {
			out = append(out, m)
		}
	}
	return out
}

// AdminOverviewHandler - сводка для главной страницы админки.
func AdminOverviewHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetOverviewStats(r.Context())
		if err != nil {
			slog.Error("AdminOverviewHandler: не удалось получить статистику", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке статистики.")
			return
		}
		byRole, err := db.CountUsersByRole(r.Context())
		if err != nil {
			slog.Error("AdminOverviewHandler: не удалось посчитать пользователей по ролям", "error", err)
		}

		p, _ := middleware.PrincipalFromContext(r.Context())
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"stats":         stats,
			"users_by_role": byRole,
			"modules":       modulesFor(p),
		})
	}
}
