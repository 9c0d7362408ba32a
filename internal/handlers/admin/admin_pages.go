// internal/handlers/admin/admin_pages.go
package adminhandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/handlers"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/validation"
)

func pageFormFromRequest(r *http.Request) models.PageForm {
	return models.PageForm{
		Slug:        strings.ToLower(strings.TrimSpace(r.PostForm.Get("slug"))),
		Locale:      strings.TrimSpace(r.PostForm.Get("locale")),
		Title:       strings.TrimSpace(r.PostForm.Get("title")),
		Body:        r.PostForm.Get("body"),
		IsPublished: handlers.BoolFormValue(r.PostForm.Get("is_published")),
	}
}

var duplicatePageSlug = url.Values{"slug": {"Страница с таким адресом на этом языке уже есть."}}

func AdminPagesListHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, err := db.ListPages(r.Context())
		if err != nil {
			slog.Error("AdminPagesListHandler: не удалось получить страницы", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке страниц.")
			return
		}
		if pages == nil {
			pages = []models.Page{}
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"items": pages})
	}
}

func AdminPageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID страницы.")
			return
		}
		page, err := db.GetPageByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "страница", id, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, page)
	}
}

func AdminCreatePageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		form := pageFormFromRequest(r)
		if errs := validation.ValidateStruct(form); len(errs) > 0 {
			handlers.WriteValidationErrors(w, errs)
			return
		}

		editor := actorID(r)
		page := &models.Page{
			Slug:        form.Slug,
			Locale:      form.Locale,
			Title:       form.Title,
			Body:        form.Body,
			IsPublished: form.IsPublished,
			UpdatedBy:   &editor,
		}
		if _, err := db.CreatePage(r.Context(), page); err != nil {
			if errors.Is(err, db.ErrDuplicateSlug) {
				handlers.WriteValidationErrors(w, duplicatePageSlug)
				return
			}
			slog.Error("AdminCreatePageHandler: не удалось создать страницу", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Не удалось создать страницу.")
			return
		}
		slog.Info("Страница создана", "adminUserID", editor, "pageID", page.ID, "slug", page.Slug)
		handlers.WriteJSON(w, http.StatusCreated, page)
	}
}

func AdminUpdatePageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID страницы.")
			return
		}
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		form := pageFormFromRequest(r)
		if errs := validation.ValidateStruct(form); len(errs) > 0 {
			handlers.WriteValidationErrors(w, errs)
			return
		}

		editor := actorID(r)
		page := &models.Page{
			ID:          id,
			Slug:        form.Slug,
			Locale:      form.Locale,
			Title:       form.Title,
			Body:        form.Body,
			IsPublished: form.IsPublished,
			UpdatedBy:   &editor,
		}
		if err := db.UpdatePage(r.Context(), page); err != nil {
			if errors.Is(err, db.ErrDuplicateSlug) {
				handlers.WriteValidationErrors(w, duplicatePageSlug)
				return
			}
			writeLookupError(w, "страница", id, err)
			return
		}
		updated, err := db.GetPageByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "страница", id, err)
			return
		}
		slog.Info("Страница обновлена", "adminUserID", editor, "pageID", id)
		handlers.WriteJSON(w, http.StatusOK, updated)
	}
}

func AdminDeletePageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID страницы.")
			return
		}
		if err := db.DeletePage(r.Context(), id); err != nil {
			writeLookupError(w, "страница", id, err)
			return
		}
		slog.Info("Страница удалена админом", "adminUserID", actorID(r), "pageID", id)
		w.WriteHeader(http.StatusNoContent)
	}
}
