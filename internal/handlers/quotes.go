// internal/handlers/quotes.go
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/validation"
)

// MyQuotesHandler - заявки текущего пользователя.
func (app *AppHandlers) MyQuotesHandler(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	quotes, err := db.ListQuotesByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("MyQuotesHandler: не удалось загрузить заявки", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": quotes})
}

// MyQuoteHandler отдает заявку по номеру, только если она принадлежит пользователю.
func (app *AppHandlers) MyQuoteHandler(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	quote, err := db.GetUserQuote(r.Context(), user.ID, r.PathValue("ref"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, app.T(r, "errors.not_found"))
			return
		}
		slog.Error("MyQuoteHandler: ошибка загрузки заявки", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	WriteJSON(w, http.StatusOK, quote)
}

func parseFloatField(v string) float64 {
	f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
	return f
}

// CreateQuoteHandler принимает заявку на расчет перевозки.
func (app *AppHandlers) CreateQuoteHandler(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, app.T(r, "errors.bad_form"))
		return
	}

	form := models.QuoteRequestForm{
		Origin:      strings.TrimSpace(r.PostForm.Get("origin")),
		Destination: strings.TrimSpace(r.PostForm.Get("destination")),
		CargoType:   strings.TrimSpace(r.PostForm.Get("cargo_type")),
		WeightKg:    parseFloatField(r.PostForm.Get("weight_kg")),
		VolumeM3:    parseFloatField(r.PostForm.Get("volume_m3")),
		PickupDate:  strings.TrimSpace(r.PostForm.Get("pickup_date")),
		Notes:       strings.TrimSpace(r.PostForm.Get("notes")),
	}
	if errs := validation.ValidateStruct(form); len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}

	q := &models.Quote{
		UserID:      user.ID,
		Origin:      form.Origin,
		Destination: form.Destination,
		CargoType:   form.CargoType,
		WeightKg:    form.WeightKg,
		VolumeM3:    form.VolumeM3,
		Notes:       form.Notes,
	}
	if form.PickupDate != "" {
		if d, err := time.Parse("2006-01-02", form.PickupDate); err == nil {
			q.PickupDate = &d
		}
	}

	if err := db.CreateQuote(r.Context(), q); err != nil {
		slog.Error("CreateQuoteHandler: не удалось создать заявку", "userID", user.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}

	app.Background(r.Context(), "quote_received", func(ctx context.Context) error {
		return app.Notifier.NotifyQuoteReceived(ctx, q, user)
	})

	slog.Info("Создана заявка на перевозку", "userID", user.ID, "reference", q.Reference)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"message": app.T(r, "messages.quote_created"),
		"quote":   q,
	})
}
