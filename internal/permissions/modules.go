// internal/permissions/modules.go
package permissions

import (
	"path"
	"strings"
)

// Module - раздел админки.
type Module string

const (
	ModuleOverview Module = "overview"
	ModuleArticles Module = "articles"
	ModuleQuotes   Module = "quotes"
	ModuleUsers    Module = "users"
	ModuleMessages Module = "messages"
	ModulePages    Module = "pages"
	ModuleSettings Module = "settings"

	// ModuleNone - путь не относится ни к одному разделу.
	ModuleNone Module = ""
)

// AdminRoot - корень админки, он же путь раздела overview.
const AdminRoot = "/admin"

type moduleRoute struct {
	module Module
	prefix string
	exact  bool
}

// Порядок важен: ResolveModule берет первое совпадение.
var moduleRoutes = []moduleRoute{
	{module: ModuleOverview, prefix: AdminRoot, exact: true},
	{module: ModuleArticles, prefix: "/admin/articles"},
	{module: ModuleQuotes, prefix: "/admin/quotes"},
	{module: ModuleUsers, prefix: "/admin/users"},
	{module: ModuleMessages, prefix: "/admin/messages"},
	{module: ModulePages, prefix: "/admin/pages"},
	{module: ModuleSettings, prefix: "/admin/settings"},
}

// AllModules возвращает разделы в порядке объявления.
func AllModules() []Module {
	out := make([]Module, 0, len(moduleRoutes))
	for _, route := range moduleRoutes {
		out = append(out, route.module)
	}
	return out
}

// Path возвращает корневой путь раздела или пустую строку для ModuleNone.
func (m Module) Path() string {
	for _, route := range moduleRoutes {
		if route.module == m {
			return route.prefix
		}
	}
	return ""
}

func (m Module) String() string {
	if m == ModuleNone {
		return "none"
	}
	return string(m)
}

// ResolveModule определяет раздел админки по пути запроса.
// "/admin" (и "/admin/") дает overview, остальные разделы сопоставляются по префиксу
// с учетом границы сегмента: "/admin/users/7" - users, "/admin/usersx" - ничего.
func ResolveModule(requestPath string) (Module, bool) {
	p := normalizePath(requestPath)
	if p == "" {
		return ModuleNone, false
	}
	for _, route := range moduleRoutes {
		if route.exact {
			if p == route.prefix {
				return route.module, true
			}
			continue
		}
		if p == route.prefix || strings.HasPrefix(p, route.prefix+"/") {
			return route.module, true
		}
	}
	return ModuleNone, false
}

// CleanPath приводит путь к виду, по которому определяется раздел:
// без query, без завершающего слэша, с разрешенными "." и "..".
func CleanPath(p string) string {
	return normalizePath(p)
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
