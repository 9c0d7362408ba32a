// internal/middleware/admin_guard.go
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/permissions"
)

var guardDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_guard_decisions_total",
		Help: "Решения guard'а админки по состоянию и разделу",
	},
	[]string{"state", "module"},
)

// stateSuperseded - запрос отменен клиентом до окончания проверки.
const stateSuperseded = "superseded"

// AccessLoader загружает роль и флаги пользователя для проверки доступа.
type AccessLoader func(ctx context.Context, userID int64) (*permissions.Principal, error)

// AdminGuard проверяет каждый запрос под /admin. Результат не кэшируется:
// роль и флаг читаются из базы заново на каждый запрос.
func AdminGuard(sm *scs.SessionManager, guard *permissions.Guard, load AccessLoader, lookupTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			session := ResolveSession(ctx, sm, load, lookupTimeout)

			if ctx.Err() != nil {
				// клиент ушел, ответ никому не нужен
				guardDecisions.WithLabelValues(stateSuperseded, permissions.ModuleNone.String()).Inc()
				slog.Debug("Проверка доступа прервана отменой запроса", "path", r.URL.Path)
				return
			}

			decision := guard.Evaluate(session, r.URL.Path)
			guardDecisions.WithLabelValues(string(decision.State), decision.Module.String()).Inc()

			switch decision.State {
			case permissions.StateAuthorized:
				ctx = context.WithValue(ctx, PrincipalContextKey, session.Principal)
				next.ServeHTTP(w, withCleanPath(r.WithContext(ctx)))

			case permissions.StatePending:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusAccepted, map[string]string{
					"state":   string(decision.State),
					"message": "Проверяем права доступа...",
				})

			case permissions.StateUnauthenticated:
				slog.Info("Админка: требуется вход", "path", r.URL.Path)
				deny(w, r, http.StatusUnauthorized, "Требуется вход в систему.", decision.Redirect)

			default:
				slog.Warn("Админка: доступ запрещен",
					"userID", session.Principal.UserID,
					"role", session.Principal.Role,
					"module", decision.Module,
					"reason", decision.Reason,
					"path", r.URL.Path)
				deny(w, r, http.StatusForbidden, "Недостаточно прав для этого раздела.", decision.Redirect)
			}
		})
	}
}

// withCleanPath маршрутизирует запрос по тому же пути, по которому принято решение:
// "/admin/" и "/admin/settings/" попадают на "/admin" и "/admin/settings".
func withCleanPath(r *http.Request) *http.Request {
	clean := permissions.CleanPath(r.URL.Path)
	if clean == "" || clean == r.URL.Path {
		return r
	}
	u := *r.URL
	u.Path = clean
	u.RawPath = ""
	r.URL = &u
	return r
}

func deny(w http.ResponseWriter, r *http.Request, status int, message, redirect string) {
	if WantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": message, "redirect": redirect})
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// ResolveSession превращает сессию запроса в снимок для Guard.Evaluate.
// Не успели за lookupTimeout - сессия считается неразрешенной (pending).
// Любая другая ошибка загрузки дает анонима.
func ResolveSession(ctx context.Context, sm *scs.SessionManager, load AccessLoader, lookupTimeout time.Duration) permissions.Session {
	userID := auth.CurrentUserID(ctx, sm)
	if userID == 0 {
		return permissions.Session{Status: permissions.SessionAnonymous}
	}

	lookupCtx := ctx
	if lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
	}

	principal, err := load(lookupCtx, userID)
	switch {
	case err == nil && principal != nil:
		return permissions.Session{Status: permissions.SessionAuthenticated, Principal: *principal}
	case ctx.Err() != nil:
		return permissions.Session{Status: permissions.SessionUnresolved}
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("Не удалось вовремя загрузить права пользователя", "userID", userID, "timeout", lookupTimeout)
		return permissions.Session{Status: permissions.SessionUnresolved}
	case errors.Is(err, sql.ErrNoRows), principal == nil && err == nil:
		slog.Warn("Пользователь из сессии не найден", "userID", userID)
		sm.Remove(ctx, auth.SessionUserIDKey)
	default:
		slog.Error("Ошибка загрузки прав пользователя", "userID", userID, "error", err)
	}
	return permissions.Session{Status: permissions.SessionAnonymous}
}
