// internal/handlers/admin/admin_quotes.go
package adminhandlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/validation"
)

const DefaultQuotesPerPage = 20

func AdminQuotesListHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := handlers.ParsePage(r, DefaultQuotesPerPage)
		status := models.QuoteStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			handlers.WriteError(w, http.StatusBadRequest, "Неизвестный статус заявки.")
			return
		}
		quotes, total, err := db.ListQuotes(r.Context(), status, limit, offset)
		if err != nil {
			slog.Error("AdminQuotesListHandler: не удалось получить заявки", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке заявок.")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"page":     handlers.NewPage(quotes, total, page, limit),
			"statuses": models.QuoteStatuses(),
		})
	}
}

func AdminQuoteHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID заявки.")
			return
		}
		quote, err := db.GetQuoteByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "заявка", id, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, quote)
	}
}

// AdminUpdateQuoteHandler меняет статус заявки и предложенную цену.
// Клиенту уходит письмо, если он не отключил уведомления.
func AdminUpdateQuoteHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID заявки.")
			return
		}
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		form := models.QuoteStatusForm{
			Status:       strings.TrimSpace(r.PostForm.Get("status")),
			QuotedAmount: strings.TrimSpace(r.PostForm.Get("quoted_amount")),
			Currency:     strings.ToUpper(strings.TrimSpace(r.PostForm.Get("currency"))),
			AdminComment: strings.TrimSpace(r.PostForm.Get("admin_comment")),
		}
		if errs := validation.ValidateStruct(form); len(errs) > 0 {
			handlers.WriteValidationErrors(w, errs)
			return
		}

		var amount *float64
		if form.QuotedAmount != "" {
			v, err := strconv.ParseFloat(form.QuotedAmount, 64)
			if err != nil || v < 0 {
				handlers.WriteError(w, http.StatusBadRequest, "Некорректная сумма.")
				return
			}
			amount = &v
		}

		previous, err := db.GetQuoteByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "заявка", id, err)
			return
		}
		if err := db.UpdateQuoteStatus(r.Context(), id, models.QuoteStatus(form.Status), amount, form.Currency, form.AdminComment); err != nil {
			writeLookupError(w, "заявка", id, err)
			return
		}
		quote, err := db.GetQuoteByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "заявка", id, err)
			return
		}

		if quote.Status != previous.Status {
			customer, errUser := db.GetUserByID(r.Context(), quote.UserID)
			if errUser != nil {
				slog.Error("AdminUpdateQuoteHandler: клиент заявки не найден", "quoteID", id, "userID", quote.UserID, "error", errUser)
			} else {
				app.Background(r.Context(), "quote_status", func(ctx context.Context) error {
					return app.Notifier.NotifyQuoteStatus(ctx, quote, customer)
				})
			}
		}

		slog.Info("Заявка обновлена", "adminUserID", actorID(r), "quoteID", id, "from", previous.Status, "to", quote.Status)
		handlers.WriteJSON(w, http.StatusOK, quote)
	}
}
