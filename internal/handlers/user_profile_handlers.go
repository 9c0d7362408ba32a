// internal/handlers/user_profile_handlers.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/permissions"
	"steppe-logistics.kz/internal/validation"
)

// ProfileUpdateForm - форма обновления профиля.
type ProfileUpdateForm struct {
	FirstName string `form:"first_name" validate:"required,alpha_space,max=100"`
	LastName  string `form:"last_name" validate:"required,alpha_space,max=100"`
	Company   string `form:"company" validate:"max=255"`
	Phone     string `form:"phone" validate:"omitempty,valid_phone"`
}

// PasswordChangeForm - форма смены пароля.
type PasswordChangeForm struct {
	CurrentPassword    string `form:"current_password" validate:"required"`
	NewPassword        string `form:"new_password" validate:"required,min=8,complex_password"`
	ConfirmNewPassword string `form:"confirm_new_password" validate:"required,eqfield=NewPassword"`
}

// MeHandler - текущий пользователь и куда ему можно.
func (app *AppHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	p := user.Principal()
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":             user,
		"can_access_admin": permissions.CanAccessAdmin(p.Role),
		"admin_modules":    accessibleModules(p),
		"landing":          permissions.LandingPath(p.Role, p.CanManageArticles),
	})
}

func accessibleModules(p permissions.Principal) []permissions.Module {
	modules := []permissions.Module{}
	if !permissions.CanAccessAdmin(p.Role) {
		return modules
	}
	for _, m := range permissions.AllModules() {
		if permissions.CanAccessModule(p.Role, m, p.CanManageArticles) {
			modules = append(modules, m)
		}
	}
	return modules
}

func (app *AppHandlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	currentUser := middleware.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		slog.Error("UpdateProfileHandler: Ошибка парсинга формы", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	form := ProfileUpdateForm{
		FirstName: strings.TrimSpace(r.PostForm.Get("first_name")),
		LastName:  strings.TrimSpace(r.PostForm.Get("last_name")),
		Company:   strings.TrimSpace(r.PostForm.Get("company")),
		Phone:     strings.TrimSpace(r.PostForm.Get("phone")),
	}
	if errs := validation.ValidateStruct(form); len(errs) > 0 {
		slog.Warn("UpdateProfileHandler: Ошибки валидации", "userID", currentUser.ID, "errors", errs)
		WriteValidationErrors(w, errs)
		return
	}

	var phonePtr *string
	if form.Phone != "" {
		phone := auth.NormalizePhone(form.Phone)
		phonePtr = &phone
	}
	firstName, lastName := auth.SanitizeName(form.FirstName), auth.SanitizeName(form.LastName)

	err := db.UpdateUserProfile(r.Context(), currentUser.ID, firstName, lastName, form.Company, phonePtr)
	if err != nil {
		if errors.Is(err, db.ErrDuplicatePhone) {
			WriteValidationErrors(w, url.Values{"phone": {app.T(r, "errors.duplicate_phone")}})
			return
		}
		slog.Error("UpdateProfileHandler: Ошибка обновления профиля в БД", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	currentUser.FirstName = firstName
	currentUser.LastName = lastName
	currentUser.Company = form.Company
	currentUser.Phone = phonePtr
	slog.Info("Профиль пользователя обновлен", "userID", currentUser.ID)
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": app.T(r, "messages.profile_updated"),
		"user":    currentUser,
	})
}

func (app *AppHandlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	currentUser := middleware.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	form := PasswordChangeForm{
		CurrentPassword:    r.PostForm.Get("current_password"),
		NewPassword:        r.PostForm.Get("new_password"),
		ConfirmNewPassword: r.PostForm.Get("confirm_new_password"),
	}
	validationErrors := validation.ValidateStruct(form)
	if validationErrors == nil {
		validationErrors = url.Values{}
	}
	if !auth.CheckPasswordHash(form.CurrentPassword, currentUser.PasswordHash) {
		validationErrors.Add("current_password", app.T(r, "errors.current_password"))
	}
	if len(validationErrors) > 0 {
		slog.Warn("ChangePasswordHandler: Ошибки валидации или неверный текущий пароль", "userID", currentUser.ID)
		WriteValidationErrors(w, validationErrors)
		return
	}

	hash, err := auth.HashPassword(form.NewPassword)
	if err != nil {
		slog.Error("ChangePasswordHandler: Ошибка хеширования нового пароля", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	if err := db.UpdateUserPassword(r.Context(), currentUser.ID, hash); err != nil {
		slog.Error("ChangePasswordHandler: Ошибка обновления пароля в БД", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	// после смены пароля старый токен сессии больше не годится
	if err := auth.LogIn(r.Context(), app.SessionManager, currentUser.ID); err != nil {
		slog.Error("ChangePasswordHandler: не удалось обновить сессию", "userID", currentUser.ID, "error", err)
	}

	slog.Info("Пароль пользователя изменен", "userID", currentUser.ID)
	WriteMessage(w, http.StatusOK, app.T(r, "messages.password_changed"))
}
