// internal/handlers/admin/admin_users.go
package adminhandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/permissions"
	"steppe-logistics.kz/internal/validation"
)

const DefaultUsersPerPage = 10

// AdminUserUpdateForm - поля, которые администратор может менять у пользователя.
type AdminUserUpdateForm struct {
	FirstName string `form:"first_name" validate:"required,alpha_space,max=100"`
	LastName  string `form:"last_name" validate:"required,alpha_space,max=100"`
	Company   string `form:"company" validate:"max=255"`
	Phone     string `form:"phone" validate:"omitempty,valid_phone"`
	Role      string `form:"role" validate:"required"`
}

// AdminUsersListHandler - список пользователей с пагинацией.
func AdminUsersListHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := handlers.ParsePage(r, DefaultUsersPerPage)
		users, totalUsers, err := db.ListUsers(r.Context(), limit, offset)
		if err != nil {
			slog.Error("AdminUsersListHandler: не удалось получить пользователей", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке пользователей.")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, handlers.NewPage(users, totalUsers, page, limit))
	}
}

func AdminUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID пользователя.")
			return
		}
		user, err := db.GetUserByID(r.Context(), userID)
		if err != nil {
			writeLookupError(w, "пользователь", userID, err)
			return
		}
		allRoles, err := db.GetAllRoles(r.Context())
		if err != nil {
			slog.Error("AdminUserHandler: не удалось получить список ролей", "error", err)
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"user":  user,
			"roles": allRoles,
		})
	}
}

// AdminUpdateUserHandler обновляет имя, компанию, телефон и роль пользователя.
func AdminUpdateUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID пользователя.")
			return
		}
		if err := r.ParseForm(); err != nil {
			slog.Error("AdminUpdateUserHandler: ошибка парсинга формы", "error", err)
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}

		form := AdminUserUpdateForm{
			FirstName: strings.TrimSpace(r.PostForm.Get("first_name")),
			LastName:  strings.TrimSpace(r.PostForm.Get("last_name")),
			Company:   strings.TrimSpace(r.PostForm.Get("company")),
			Phone:     strings.TrimSpace(r.PostForm.Get("phone")),
			Role:      strings.TrimSpace(r.PostForm.Get("role")),
		}
		validationErrors := validation.ValidateStruct(form)
		if validationErrors == nil {
			validationErrors = url.Values{}
		}
		role := permissions.ParseRole(form.Role)
		if form.Role != "" && !role.Valid() {
			validationErrors.Add("role", "Выбрана несуществующая роль.")
		}
		if len(validationErrors) > 0 {
			slog.Warn("AdminUpdateUserHandler: ошибки валидации", "userID", userID, "errors", validationErrors)
			handlers.WriteValidationErrors(w, validationErrors)
			return
		}

		var phonePtr *string
		if form.Phone != "" {
			phone := auth.NormalizePhone(form.Phone)
			phonePtr = &phone
		}
		data := db.AdminUpdateUserData{
			FirstName: auth.SanitizeName(form.FirstName),
			LastName:  auth.SanitizeName(form.LastName),
			Company:   form.Company,
			Phone:     phonePtr,
			Role:      role,
		}
		if err := db.UpdateUserByAdmin(r.Context(), userID, data); err != nil {
			if errors.Is(err, db.ErrDuplicatePhone) {
				handlers.WriteValidationErrors(w, url.Values{"phone": {"Пользователь с таким телефоном уже существует."}})
				return
			}
			writeLookupError(w, "пользователь", userID, err)
			return
		}

		user, err := db.GetUserByID(r.Context(), userID)
		if err != nil {
			writeLookupError(w, "пользователь", userID, err)
			return
		}
		slog.Info("Данные пользователя обновлены админом", "adminUserID", actorID(r), "targetUserID", userID, "role", role)
		handlers.WriteJSON(w, http.StatusOK, user)
	}
}
