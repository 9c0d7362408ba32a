// internal/handlers/auth.go
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
	"steppe-logistics.kz/internal/validation"
)

const settingRegistrationEnabled = "registration_enabled"

func (app *AppHandlers) registrationOpen(ctx context.Context) bool {
	s, err := db.GetSetting(ctx, settingRegistrationEnabled)
	if err != nil {
		slog.Error("Не удалось прочитать настройку регистрации", "error", err)
		return true
	}
	if s == nil {
		return true
	}
	open, err := strconv.ParseBool(s.Value)
	return err != nil || open
}

// sendVerification создает новый токен и отправляет письмо в фоне.
func (app *AppHandlers) sendVerification(ctx context.Context, user *models.User) {
	rawToken, err := db.GenerateSecureToken(32)
	if err != nil {
		slog.Error("Ошибка генерации токена верификации email", "userID", user.ID, "error", err)
		return
	}
	if err := db.SetEmailVerificationToken(ctx, user.ID, rawToken); err != nil {
		if !errors.Is(err, db.ErrAlreadyVerified) {
			slog.Error("Ошибка сохранения токена верификации email", "userID", user.ID, "error", err)
		}
		return
	}
	app.Background(ctx, "email_verification", func(ctx context.Context) error {
		return app.Notifier.SendVerification(ctx, user, rawToken)
	})
}

func (app *AppHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Ошибка парсинга формы регистрации", "error", err)
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	if !app.registrationOpen(r.Context()) {
		WriteError(w, http.StatusForbidden, app.T(r, "errors.registration_closed"))
		return
	}

	form := models.RegistrationForm{
		Email:        strings.ToLower(strings.TrimSpace(r.PostForm.Get("email"))),
		Phone:        strings.TrimSpace(r.PostForm.Get("phone")),
		Password:     r.PostForm.Get("password"),
		ConfirmPass:  r.PostForm.Get("confirm_password"),
		FirstName:    strings.TrimSpace(r.PostForm.Get("first_name")),
		LastName:     strings.TrimSpace(r.PostForm.Get("last_name")),
		Company:      strings.TrimSpace(r.PostForm.Get("company")),
		AgreeTerms:   r.PostForm.Get("agree_terms"),
		CaptchaToken: r.PostForm.Get("captcha_token"),
		Honeypot:     r.PostForm.Get("website"),
	}

	if form.Honeypot != "" {
		slog.Warn("Сработала ловушка для ботов при регистрации", "ip", middleware.ClientIP(r))
		WriteError(w, http.StatusBadRequest, "Обнаружена подозрительная активность.")
		return
	}

	validationErrors := validation.ValidateStruct(form)
	if validationErrors == nil {
		validationErrors = url.Values{}
	}
	if form.AgreeTerms != "" && !BoolFormValue(form.AgreeTerms) {
		validationErrors.Add("agree_terms", "Необходимо согласиться с условиями.")
	}
	if len(validationErrors) > 0 {
		slog.Warn("Ошибки валидации при регистрации", "errors", validationErrors)
		WriteValidationErrors(w, validationErrors)
		return
	}
	if !app.checkCaptcha(w, r, form.CaptchaToken, "register") {
		return
	}

	hashedPassword, err := auth.HashPassword(form.Password)
	if err != nil {
		slog.Error("Ошибка хеширования пароля", "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	user := &models.User{
		Email:           form.Email,
		PasswordHash:    hashedPassword,
		FirstName:       auth.SanitizeName(form.FirstName),
		LastName:        auth.SanitizeName(form.LastName),
		Company:         form.Company,
		PreferredLocale: app.Locale(r),
	}
	if form.Phone != "" {
		phone := auth.NormalizePhone(form.Phone)
		user.Phone = &phone
	}

	userID, err := db.CreateUser(r.Context(), user, models.DefaultRoleName)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicateEmail):
			WriteValidationErrors(w, url.Values{"email": {app.T(r, "errors.duplicate_email")}})
		case errors.Is(err, db.ErrDuplicatePhone):
			WriteValidationErrors(w, url.Values{"phone": {app.T(r, "errors.duplicate_phone")}})
		default:
			slog.Error("Ошибка создания пользователя", "email", user.Email, "error", err)
			WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		}
		return
	}
	user.ID = userID
	app.sendVerification(r.Context(), user)

	slog.Info("Пользователь зарегистрирован, ожидает подтверждения email", "userID", userID)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"message": app.T(r, "messages.registered"),
	})
}

func (app *AppHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Ошибка парсинга формы входа", "error", err)
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}
	form := models.LoginForm{
		Email:    strings.ToLower(strings.TrimSpace(r.PostForm.Get("email"))),
		Password: r.PostForm.Get("password"),
		Next:     r.PostForm.Get("next"),
	}
	if errs := validation.ValidateStruct(form); len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}

	user, err := db.GetUserByEmail(r.Context(), form.Email)
	passwordMatch := false
	if err == nil && user != nil {
		passwordMatch = auth.CheckPasswordHash(form.Password, user.PasswordHash)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("Ошибка поиска пользователя по email при входе", "email", form.Email, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	if !passwordMatch {
		slog.Warn("Неудачная попытка входа", "email", form.Email, "ip", middleware.ClientIP(r))
		WriteError(w, http.StatusUnauthorized, app.T(r, "errors.invalid_credentials"))
		return
	}

	if !user.IsEmailVerified {
		slog.Warn("Попытка входа с неподтвержденным email", "userID", user.ID)
		WriteJSON(w, http.StatusForbidden, map[string]any{
			"error":               app.T(r, "errors.email_not_verified"),
			"resend_verification": true,
		})
		return
	}

	if err := auth.LogIn(r.Context(), app.SessionManager, user.ID); err != nil {
		slog.Error("Ошибка входа", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	p := user.Principal()
	landing := permissions.LandingPath(p.Role, p.CanManageArticles)
	redirect := permissions.SafeNext(form.Next, p.Role, p.CanManageArticles, landing)

	slog.Info("Пользователь вошел", "userID", user.ID, "role", p.Role)
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":  app.T(r, "messages.logged_in"),
		"redirect": redirect,
		"user":     user,
	})
}

func (app *AppHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.CurrentUserID(r.Context(), app.SessionManager)
	if err := auth.LogOut(r.Context(), app.SessionManager); err != nil {
		slog.Error("Ошибка удаления сессии при выходе", "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	slog.Info("Пользователь вышел", "userID", userID)
	WriteJSON(w, http.StatusOK, map[string]string{
		"message":  app.T(r, "messages.logged_out"),
		"redirect": "/",
	})
}

// ResendVerificationEmailHandler всегда отвечает одинаково, чтобы не раскрывать, зарегистрирован ли email.
func (app *AppHandlers) ResendVerificationEmailHandler(w http.ResponseWriter, r *http.Request) {
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
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		slog.Error("Ошибка поиска пользователя для повторной верификации", "error", err)
	case err == nil && !user.IsEmailVerified:
		app.sendVerification(r.Context(), user)
	default:
		slog.Info("Повторная верификация не нужна или email не найден", "email", emailAddr)
	}
	WriteMessage(w, http.StatusOK, app.T(r, "messages.verification_resent"))
}
