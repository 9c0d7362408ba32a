// internal/auth/session.go
package auth

import (
	"context"
	"fmt"

	"github.com/alexedwards/scs/v2"
)

const (
	SessionUserIDKey = "userID"
	SessionFlashKey  = "flash"
)

// LogIn обновляет токен сессии (защита от фиксации) и сохраняет пользователя.
func LogIn(ctx context.Context, sm *scs.SessionManager, userID int64) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("не удалось обновить токен сессии: %w", err)
	}
	sm.Put(ctx, SessionUserIDKey, userID)
	return nil
}

func LogOut(ctx context.Context, sm *scs.SessionManager) error {
	if err := sm.Destroy(ctx); err != nil {
		return fmt.Errorf("не удалось завершить сессию: %w", err)
	}
	return nil
}

// CurrentUserID возвращает 0, если в сессии нет пользователя.
func CurrentUserID(ctx context.Context, sm *scs.SessionManager) int64 {
	return sm.GetInt64(ctx, SessionUserIDKey)
}
