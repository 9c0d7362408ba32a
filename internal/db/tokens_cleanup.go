// internal/db/tokens_cleanup.go
package db

import (
	"context"
	"log/slog"
	"time"
)

// CleanupExpiredTokens гасит просроченные токены сброса пароля и верификации email.
func CleanupExpiredTokens(ctx context.Context) (resetCleared, verifyCleared int64) {
	if DB == nil {
		slog.Error("CleanupExpiredTokens: база данных не инициализирована")
		return 0, 0
	}

	resReset, err := DB.ExecContext(ctx, `UPDATE users SET password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = NOW()
	               WHERE password_reset_token_expires_at IS NOT NULL AND password_reset_token_expires_at < NOW()`)
	if err != nil {
		slog.Error("Ошибка очистки просроченных токенов сброса пароля", "error", err)
	} else {
		resetCleared, _ = resReset.RowsAffected()
	}

	resVerify, err := DB.ExecContext(ctx, `UPDATE users SET email_verification_token = NULL, email_verification_token_expires_at = NULL, updated_at = NOW()
	                WHERE is_email_verified = FALSE AND email_verification_token_expires_at IS NOT NULL AND email_verification_token_expires_at < NOW()`)
	if err != nil {
		slog.Error("Ошибка очистки просроченных токенов верификации email", "error", err)
	} else {
		verifyCleared, _ = resVerify.RowsAffected()
	}

	if resetCleared > 0 || verifyCleared > 0 {
		slog.Info("Очищены просроченные токены", "reset", resetCleared, "verification", verifyCleared)
	}
	return resetCleared, verifyCleared
}

// StartTokenCleanupScheduler запускает периодическую очистку до отмены ctx.
func StartTokenCleanupScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("Планировщик очистки токенов запущен", "interval", interval.String())
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Планировщик очистки токенов остановлен")
				return
			case <-ticker.C:
				CleanupExpiredTokens(ctx)
			}
		}
	}()
}
