// internal/handlers/admin/admin_messages.go
package adminhandlers

import (
	"log/slog"
	"net/http"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/models"
)

const DefaultMessagesPerPage = 20

func validMessageStatus(s models.MessageStatus) bool {
	switch s {
	case models.MessageNew, models.MessageRead, models.MessageArchived:
		return true
	}
	return false
}

// AdminMessagesListHandler: ?status=new - только непрочитанные, без статуса - все, кроме архива.
func AdminMessagesListHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := handlers.ParsePage(r, DefaultMessagesPerPage)
		status := models.MessageStatus(r.URL.Query().Get("status"))
		if status != "" && !validMessageStatus(status) {
			handlers.WriteError(w, http.StatusBadRequest, "Неизвестный статус сообщения.")
			return
		}
		messages, total, err := db.ListContactMessages(r.Context(), status, limit, offset)
		if err != nil {
			slog.Error("AdminMessagesListHandler: не удалось получить сообщения", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке сообщений.")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, handlers.NewPage(messages, total, page, limit))
	}
}

// AdminMessageHandler отдает сообщение и помечает новое как прочитанное.
func AdminMessageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		msg, err := db.GetContactMessage(r.Context(), id)
		if err != nil {
			writeLookupError(w, "сообщение", id, err)
			return
		}
		if msg.Status == models.MessageNew {
			if err := db.SetContactMessageStatus(r.Context(), id, models.MessageRead); err != nil {
				slog.Error("AdminMessageHandler: не удалось отметить сообщение прочитанным", "messageID", id, "error", err)
			} else {
				msg.Status = models.MessageRead
			}
		}
		handlers.WriteJSON(w, http.StatusOK, msg)
	}
}

func AdminMessageStatusHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		status := models.MessageStatus(r.PostForm.Get("status"))
		if !validMessageStatus(status) {
			handlers.WriteError(w, http.StatusBadRequest, "Неизвестный статус сообщения.")
			return
		}
		if err := db.SetContactMessageStatus(r.Context(), id, status); err != nil {
			writeLookupError(w, "сообщение", id, err)
			return
		}
		slog.Info("Статус сообщения изменен", "adminUserID", actorID(r), "messageID", id, "status", status)
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"id":      id,
			"status":  status,
			"message": app.T(r, "messages.message_updated"),
		})
	}
}
