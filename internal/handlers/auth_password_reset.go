// internal/handlers/auth_password_reset.go
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/validation"
)

type PasswordResetForm struct {
	Token           string `form:"token" validate:"required"`
	Password        string `form:"password" validate:"required,min=8,complex_password"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// RequestPasswordResetHandler всегда отвечает одинаково, есть такой email или нет.
func (app *AppHandlers) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}
	emailAddr := strings.ToLower(strings.TrimSpace(r.PostForm.Get("email")))
	if emailAddr == "" {
		WriteValidationErrors(w, url.Values{"email": {"Email обязателен."}})
		return
	}

	user, err := db.GetUserByEmail(r.Context(), emailAddr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		slog.Info("Запрос на сброс пароля для несуществующего email", "email", emailAddr)
	case err != nil:
		slog.Error("Ошибка поиска пользователя при запросе сброса пароля", "error", err)
	default:
		app.sendPasswordReset(r.Context(), user)
	}
	WriteMessage(w, http.StatusOK, app.T(r, "messages.password_reset_sent"))
}

func (app *AppHandlers) sendPasswordReset(ctx context.Context, user *models.User) {
	rawToken, err := db.GenerateSecureToken(32)
	if err != nil {
		slog.Error("Ошибка генерации токена сброса пароля", "userID", user.ID, "error", err)
		return
	}
	if err := db.SetPasswordResetToken(ctx, user.ID, rawToken); err != nil {
		slog.Error("Ошибка сохранения токена сброса пароля", "userID", user.ID, "error", err)
		return
	}
	app.Background(ctx, "password_reset", func(ctx context.Context) error {
		return app.Notifier.SendPasswordReset(ctx, user, rawToken)
	})
	slog.Info("Отправлена ссылка для сброса пароля", "userID", user.ID)
}

// CheckResetTokenHandler позволяет странице сброса заранее проверить ссылку.
func (app *AppHandlers) CheckResetTokenHandler(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")
	if rawToken == "" {
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.invalid_token"))
		return
	}
	if _, err := db.GetUserByPasswordResetToken(r.Context(), rawToken); err != nil {
		if !errors.Is(err, db.ErrInvalidToken) {
			slog.Error("Ошибка проверки токена сброса пароля", "error", err)
			WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
			return
		}
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.invalid_token"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (app *AppHandlers) ProcessPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}
	form := PasswordResetForm{
		Token:           r.PostForm.Get("token"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
	}
	if errs := validation.ValidateStruct(form); len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}

	user, err := db.GetUserByPasswordResetToken(r.Context(), form.Token)
	if err != nil {
		if errors.Is(err, db.ErrInvalidToken) {
			WriteError(w, http.StatusBadRequest, app.T(r, "errors.invalid_token"))
			return
		}
		slog.Error("Ошибка проверки токена при установке нового пароля", "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		slog.Error("Ошибка хеширования нового пароля", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	if err := db.ResetPassword(r.Context(), user.ID, hash); err != nil {
		slog.Error("Не удалось сбросить пароль", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	slog.Info("Пароль сброшен по ссылке из письма", "userID", user.ID)
	WriteMessage(w, http.StatusOK, app.T(r, "messages.password_reset_done"))
}
