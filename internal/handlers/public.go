// internal/handlers/public.go
package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/models"
)

const newsPerPage = 10

// Разделы словаря, которые отдаются публично.
var publicSections = map[string]bool{
	"home":      true,
	"solutions": true,
	"contact":   true,
	"nav":       true,
	"footer":    true,
}

// Порядок направлений в каталоге.
var solutionSlugs = []string{"road", "rail", "air", "sea", "warehousing", "customs"}

// Solution - направление логистики из словаря.
type Solution struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body,omitempty"`
}

// ContentHandler отдает раздел словаря на языке запроса.
func (app *AppHandlers) ContentHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("section")
	if !publicSections[name] {
		WriteError(w, http.StatusNotFound, "Раздел не найден.")
		return
	}
	section, ok := app.I18n.Section(app.Locale(r), name)
	if !ok {
		WriteError(w, http.StatusNotFound, "Раздел не найден.")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"locale":  app.Locale(r),
		"section": name,
		"content": section,
	})
}

func (app *AppHandlers) solution(r *http.Request, slug string, withBody bool) Solution {
	prefix := "solutions.items." + slug + "."
	s := Solution{
		Slug:    slug,
		Title:   app.T(r, prefix+"title"),
		Summary: app.T(r, prefix+"summary"),
	}
	if withBody {
		s.Body = app.T(r, prefix+"body")
	}
	return s
}

func (app *AppHandlers) SolutionsListHandler(w http.ResponseWriter, r *http.Request) {
	items := make([]Solution, 0, len(solutionSlugs))
	for _, slug := range solutionSlugs {
		items = append(items, app.solution(r, slug, false))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"title": app.T(r, "solutions.title"),
		"items": items,
	})
}

func (app *AppHandlers) SolutionHandler(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	for _, known := range solutionSlugs {
		if known == slug {
			WriteJSON(w, http.StatusOK, app.solution(r, slug, true))
			return
		}
	}
	WriteError(w, http.StatusNotFound, app.T(r, "errors.not_found"))
}

// NewsListHandler - опубликованные новости на языке запроса.
func (app *AppHandlers) NewsListHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := ParsePage(r, newsPerPage)
	articles, total, err := db.ListArticles(r.Context(), db.ArticleFilter{
		Locale: app.Locale(r),
		Status: models.ArticlePublished,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		slog.Error("NewsListHandler: не удалось загрузить новости", "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	for i := range articles {
		articles[i].Body = ""
	}
	WriteJSON(w, http.StatusOK, NewPage(articles, total, page, limit))
}

func (app *AppHandlers) NewsItemHandler(w http.ResponseWriter, r *http.Request) {
	article, err := db.GetPublishedArticle(r.Context(), r.PathValue("slug"), app.Locale(r))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, app.T(r, "errors.not_found"))
			return
		}
		slog.Error("NewsItemHandler: ошибка загрузки новости", "slug", r.PathValue("slug"), "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	WriteJSON(w, http.StatusOK, article)
}

// PageHandler отдает опубликованную CMS-страницу (условия, политика, о компании).
// Если перевода нет, отдается версия на языке по умолчанию.
func (app *AppHandlers) PageHandler(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page, err := db.GetPublishedPage(r.Context(), slug, app.Locale(r), app.I18n.Default())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, app.T(r, "errors.not_found"))
			return
		}
		slog.Error("PageHandler: не удалось загрузить страницу", "slug", slug, "error", err)
		WriteError(w, http.StatusInternalServerError, app.T(r, "errors.internal"))
		return
	}
	WriteJSON(w, http.StatusOK, page)
}
