// internal/handlers/user_settings_handlers.go
package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/i18n"
	"steppe-logistics.kz/internal/middleware"
)

type userSettings struct {
	PreferredLocale    string   `json:"preferred_locale"`
	EmailNotifications bool     `json:"email_notifications"`
	Locales            []string `json:"locales"`
}

func (app *AppHandlers) UserSettingsHandler(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	WriteJSON(w, http.StatusOK, userSettings{
		PreferredLocale:    user.PreferredLocale,
		EmailNotifications: user.EmailNotifications,
		Locales:            app.I18n.Supported(),
	})
}

// UpdateUserSettingsHandler сохраняет язык и согласие на письма о заявках.
func (app *AppHandlers) UpdateUserSettingsHandler(w http.ResponseWriter, r *http.Request) {
	currentUser := middleware.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		slog.Error("UpdateUserSettingsHandler: Ошибка парсинга формы", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	locale, ok := app.I18n.Normalize(r.PostForm.Get("preferred_locale"))
	if !ok {
		WriteValidationErrors(w, url.Values{"preferred_locale": {"Язык не поддерживается."}})
		return
	}
	notifications := BoolFormValue(r.PostForm.Get("email_notifications"))

	if err := db.UpdateUserSettings(r.Context(), currentUser.ID, locale, notifications); err != nil {
		slog.Error("UpdateUserSettingsHandler: Ошибка обновления настроек в БД", "userID", currentUser.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	i18n.SetLanguageCookie(w, locale)

	slog.Info("Настройки пользователя обновлены", "userID", currentUser.ID, "locale", locale, "email_notifications", notifications)
	saved := userSettings{
		PreferredLocale:    locale,
		EmailNotifications: notifications,
		Locales:            app.I18n.Supported(),
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":  app.I18n.T(locale, "messages.settings_saved"),
		"settings": saved,
	})
}
