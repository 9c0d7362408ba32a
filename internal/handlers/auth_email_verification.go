// internal/handlers/auth_email_verification.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/permissions"
)

// tokenPrefix возвращает начало токена для логов.
func tokenPrefix(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// VerifyEmailHandler обрабатывает переход по ссылке из письма.
// Браузер уходит на страницу входа с flash-сообщением, API-клиент получает JSON.
func (app *AppHandlers) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")

	status := http.StatusOK
	flashKey := "messages.email_verified"
	if rawToken == "" {
		status, flashKey = http.StatusBadRequest, "errors.invalid_token"
	} else {
		userID, err := db.VerifyUserEmail(r.Context(), rawToken)
		switch {
		case err == nil:
			slog.Info("Email успешно подтвержден", "userID", userID)
		case errors.Is(err, db.ErrAlreadyVerified):
			flashKey = "messages.already_verified"
		case errors.Is(err, db.ErrInvalidToken):
			slog.Warn("Недействительный токен верификации email", "token_prefix", tokenPrefix(rawToken, 8))
			status, flashKey = http.StatusBadRequest, "errors.invalid_token"
		default:
			slog.Error("Ошибка верификации email", "error", err)
			status, flashKey = http.StatusInternalServerError, "errors.internal"
		}
	}

	message := app.T(r, flashKey)
	if middleware.WantsJSON(r) {
		if status == http.StatusOK {
			WriteMessage(w, status, message)
		} else {
			WriteError(w, status, message)
		}
		return
	}
	app.SessionManager.Put(r.Context(), auth.SessionFlashKey, message)
	http.Redirect(w, r, permissions.LoginPath, http.StatusSeeOther)
}

// FlashHandler отдает и удаляет flash-сообщение из сессии.
func (app *AppHandlers) FlashHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"flash": app.SessionManager.PopString(r.Context(), auth.SessionFlashKey),
	})
}
