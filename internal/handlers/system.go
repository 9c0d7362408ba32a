// internal/handlers/system.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/nosurf"

	"steppe-logistics.kz/internal/db"
)

func CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": nosurf.Token(r)})
}

// HealthzHandler проверяет соединение с базой.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if db.DB == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_not_initialized"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.DB.PingContext(ctx); err != nil {
		slog.Error("Healthz: база недоступна", "error", err)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
