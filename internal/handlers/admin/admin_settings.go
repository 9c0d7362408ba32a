// internal/handlers/admin/admin_settings.go
package adminhandlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/permissions"
)

// boolSettings хранятся как "true"/"false".
var boolSettings = map[string]bool{
	db.SettingMaintenanceMode: true,
	"registration_enabled":    true,
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func AdminSettingsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appSettings, err := db.GetAllAppSettings(r.Context())
		if err != nil {
			slog.Error("AdminSettingsHandler: не удалось загрузить настройки приложения", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка загрузки текущих настроек.")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"settings": appSettings,
			"editable": db.EditableSettings,
		})
	}
}

// AdminUpdateSettingsHandler сохраняет только переданные редактируемые ключи.
// Неизвестные ключи в форме дают 400 целиком, без частичного сохранения.
func AdminUpdateSettingsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			slog.Error("AdminUpdateSettingsHandler: ошибка парсинга формы", "error", err)
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}

		settingsToUpdate := map[string]string{}
		for key, values := range r.PostForm {
			if key == "csrf_token" {
				continue
			}
			if !db.IsEditableSetting(key) {
				handlers.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Настройку '%s' нельзя менять из админки.", key))
				return
			}
			value := strings.TrimSpace(values[0])
			if boolSettings[key] {
				value = boolToString(handlers.BoolFormValue(value))
			}
			settingsToUpdate[key] = value
		}
		if len(settingsToUpdate) == 0 {
			handlers.WriteError(w, http.StatusBadRequest, "Нет настроек для сохранения.")
			return
		}

		var updateErrors []string
		for key, value := range settingsToUpdate {
			if errDb := db.UpdateSetting(r.Context(), key, value); errDb != nil {
				slog.Error("AdminUpdateSettingsHandler: не удалось обновить настройку", "key", key, "error", errDb)
				updateErrors = append(updateErrors, key)
			}
		}
		if len(updateErrors) > 0 {
			handlers.WriteError(w, http.StatusInternalServerError, "Некоторые настройки не удалось сохранить: "+strings.Join(updateErrors, ", "))
			return
		}
		slog.Info("Настройки обновлены", "adminUserID", actorID(r), "keys", len(settingsToUpdate))
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"saved":   settingsToUpdate,
			"message": app.T(r, "messages.settings_saved"),
		})
	}
}

// roleAccess - строка матрицы доступа для страницы прав.
type roleAccess struct {
	Role        permissions.Role     `json:"role"`
	AdminAccess bool                 `json:"admin_access"`
	Modules     []permissions.Module `json:"modules"`
}

// AdminPermissionsHandler показывает матрицу роль -> разделы и флаги сотрудников.
func AdminPermissionsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matrix := make([]roleAccess, 0, len(permissions.AllRoles()))
		for _, role := range permissions.AllRoles() {
			matrix = append(matrix, roleAccess{
				Role:        role,
				AdminAccess: permissions.CanAccessAdmin(role),
				Modules:     modulesFor(permissions.Principal{Role: role}),
			})
		}

		staff, err := db.ListStaffOverrides(r.Context())
		if err != nil {
			slog.Error("AdminPermissionsHandler: не удалось получить сотрудников", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке прав.")
			return
		}
		if staff == nil {
			staff = []db.StaffOverride{}
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"modules": permissions.AllModules(),
			"roles":   matrix,
			"staff":   staff,
		})
	}
}

// AdminUpdatePermissionsHandler переключает can_manage_articles у STAFF-пользователя.
// Изменение действует со следующего запроса: guard перечитывает права каждый раз.
func AdminUpdatePermissionsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		userID, err := strconv.ParseInt(r.PostForm.Get("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID пользователя.")
			return
		}
		enabled := handlers.BoolFormValue(r.PostForm.Get("can_manage_articles"))

		if err := db.SetCanManageArticles(r.Context(), userID, enabled); err != nil {
			if errors.Is(err, db.ErrNotStaff) {
				handlers.WriteError(w, http.StatusBadRequest, "Флаг управления статьями доступен только для роли STAFF.")
				return
			}
			writeLookupError(w, "пользователь", userID, err)
			return
		}
		slog.Info("Права сотрудника изменены", "adminUserID", actorID(r), "targetUserID", userID, "canManageArticles", enabled)
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":             userID,
			"can_manage_articles": enabled,
		})
	}
}
