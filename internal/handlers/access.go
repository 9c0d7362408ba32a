// internal/handlers/access.go
package handlers

import (
	"net/http"
	"time"

	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/permissions"
)

type accessResponse struct {
	Path           string               `json:"path"`
	Module         permissions.Module   `json:"module"`
	KnownModule    bool                 `json:"known_module"`
	CanAccessAdmin bool                 `json:"can_access_admin"`
	CanAccessPath  bool                 `json:"can_access_path"`
	Decision       permissions.Decision `json:"decision"`
}

// AccessHandler отдает клиенту решение guard'а для пути, чтобы навигация
// в админке могла заранее скрыть недоступные разделы. Сам доступ все равно проверяет AdminGuard.
func (app *AppHandlers) AccessHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = permissions.AdminRoot
	}

	timeout := time.Duration(app.Config.Guard.LookupTimeoutMs) * time.Millisecond
	session := middleware.ResolveSession(r.Context(), app.SessionManager, app.AccessLoader, timeout)
	if r.Context().Err() != nil {
		return
	}

	p := session.Principal
	module, known := permissions.ResolveModule(path)
	resp := accessResponse{
		Path:        path,
		Module:      module,
		KnownModule: known,
		Decision:    app.Guard.Evaluate(session, path),
	}
	if session.Status == permissions.SessionAuthenticated {
		resp.CanAccessAdmin = permissions.CanAccessAdmin(p.Role)
		resp.CanAccessPath = permissions.CanAccessPath(p.Role, path, p.CanManageArticles)
	}
	WriteJSON(w, http.StatusOK, resp)
}
