// internal/handlers/admin/admin_articles.go
package adminhandlers

import (
	"database/sql"
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

const DefaultArticlesPerPage = 20

func articleFormFromRequest(r *http.Request) models.ArticleForm {
	return models.ArticleForm{
		Slug:    strings.ToLower(strings.TrimSpace(r.PostForm.Get("slug"))),
		Locale:  strings.TrimSpace(r.PostForm.Get("locale")),
		Title:   strings.TrimSpace(r.PostForm.Get("title")),
		Summary: strings.TrimSpace(r.PostForm.Get("summary")),
		Body:    r.PostForm.Get("body"),
		Publish: handlers.BoolFormValue(r.PostForm.Get("publish")),
	}
}

func AdminArticlesListHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := handlers.ParsePage(r, DefaultArticlesPerPage)
		filter := db.ArticleFilter{
			Locale: r.URL.Query().Get("locale"),
			Status: models.ArticleStatus(r.URL.Query().Get("status")),
			Limit:  limit,
			Offset: offset,
		}
		articles, total, err := db.ListArticles(r.Context(), filter)
		if err != nil {
			slog.Error("AdminArticlesListHandler: не удалось получить статьи", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера при загрузке статей.")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, handlers.NewPage(articles, total, page, limit))
	}
}

func AdminArticleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID статьи.")
			return
		}
		article, err := db.GetArticleByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "статья", id, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, article)
	}
}

func AdminCreateArticleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		form := articleFormFromRequest(r)
		if errs := validation.ValidateStruct(form); len(errs) > 0 {
			handlers.WriteValidationErrors(w, errs)
			return
		}

		author := actorID(r)
		article := &models.Article{
			Slug:     form.Slug,
			Locale:   form.Locale,
			Title:    form.Title,
			Summary:  form.Summary,
			Body:     form.Body,
			Status:   models.ArticleDraft,
			AuthorID: &author,
		}
		if form.Publish {
			article.Status = models.ArticlePublished
		}

		if _, err := db.CreateArticle(r.Context(), article); err != nil {
			if errors.Is(err, db.ErrDuplicateSlug) {
				handlers.WriteValidationErrors(w, url.Values{"slug": {"Статья с таким адресом на этом языке уже есть."}})
				return
			}
			slog.Error("AdminCreateArticleHandler: не удалось создать статью", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "Не удалось создать статью.")
			return
		}
		slog.Info("Статья создана", "adminUserID", author, "articleID", article.ID)
		handlers.WriteJSON(w, http.StatusCreated, article)
	}
}

func AdminUpdateArticleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID статьи.")
			return
		}
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		form := articleFormFromRequest(r)
		if errs := validation.ValidateStruct(form); len(errs) > 0 {
			handlers.WriteValidationErrors(w, errs)
			return
		}

		article := &models.Article{
			ID:      id,
			Slug:    form.Slug,
			Locale:  form.Locale,
			Title:   form.Title,
			Summary: form.Summary,
			Body:    form.Body,
		}
		if err := db.UpdateArticle(r.Context(), article); err != nil {
			if errors.Is(err, db.ErrDuplicateSlug) {
				handlers.WriteValidationErrors(w, url.Values{"slug": {"Статья с таким адресом на этом языке уже есть."}})
				return
			}
			writeLookupError(w, "статья", id, err)
			return
		}
		if err := db.SetArticlePublished(r.Context(), id, form.Publish); err != nil {
			writeLookupError(w, "статья", id, err)
			return
		}

		updated, err := db.GetArticleByID(r.Context(), id)
		if err != nil {
			writeLookupError(w, "статья", id, err)
			return
		}
		slog.Info("Статья обновлена", "adminUserID", actorID(r), "articleID", id)
		handlers.WriteJSON(w, http.StatusOK, updated)
	}
}

// AdminPublishArticleHandler публикует (publish=true) или снимает статью с публикации.
func AdminPublishArticleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID статьи.")
			return
		}
		if err := r.ParseForm(); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "Ошибка обработки данных формы.")
			return
		}
		publish := handlers.BoolFormValue(r.PostForm.Get("publish"))
		if err := db.SetArticlePublished(r.Context(), id, publish); err != nil {
			writeLookupError(w, "статья", id, err)
			return
		}
		slog.Info("Изменена публикация статьи", "adminUserID", actorID(r), "articleID", id, "published", publish)
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "published": publish})
	}
}

func AdminDeleteArticleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.ParseID(r, "id")
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Неверный ID статьи.")
			return
		}
		if err := db.DeleteArticle(r.Context(), id); err != nil {
			writeLookupError(w, "статья", id, err)
			return
		}
		slog.Info("Статья удалена", "adminUserID", actorID(r), "articleID", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeLookupError: sql.ErrNoRows - 404, остальное - 500.
func writeLookupError(w http.ResponseWriter, entity string, id any, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		handlers.WriteError(w, http.StatusNotFound, "Объект не найден: "+entity+".")
		return
	}
	slog.Error("Ошибка работы с объектом", "entity", entity, "id", id, "error", err)
	handlers.WriteError(w, http.StatusInternalServerError, "Ошибка сервера.")
}
