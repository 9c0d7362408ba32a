// internal/middleware/auth.go
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

type contextKey string

const (
	UserContextKey      contextKey = "user"
	PrincipalContextKey contextKey = "principal"
	LocaleContextKey    contextKey = "locale"
)

// UserLoader загружает пользователя по ID из сессии.
type UserLoader func(ctx context.Context, id int64) (*models.User, error)

// LoadUser кладет в контекст пользователя из сессии, если он есть.
// Страница при этом остается доступной и анонимам.
func LoadUser(sm *scs.SessionManager, load UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := auth.CurrentUserID(ctx, sm)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := load(ctx, userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					slog.Warn("Пользователь из сессии не найден, сессия сброшена", "userID", userID)
					sm.Remove(ctx, auth.SessionUserIDKey)
				} else {
					slog.Error("Ошибка загрузки пользователя из сессии", "userID", userID, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx = context.WithValue(ctx, UserContextKey, user)
			ctx = context.WithValue(ctx, PrincipalContextKey, user.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth пропускает только запросы с загруженным пользователем. Ставится после LoadUser.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			slog.Warn("Доступ запрещен: пользователь не аутентифицирован", "path", r.URL.Path)
			loginURL := permissions.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			if WantsJSON(r) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":    "Требуется вход в систему.",
					"redirect": loginURL,
				})
				return
			}
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

// PrincipalFromContext возвращает principal, положенный LoadUser или AdminGuard.
func PrincipalFromContext(ctx context.Context) (permissions.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(permissions.Principal)
	return p, ok
}
