// internal/permissions/access.go
package permissions

import "strings"

// rolePermissions - матрица доступа роль -> разделы. Не меняется во время работы.
var rolePermissions = map[Role][]Module{
	RoleAdmin:     {ModuleOverview, ModuleArticles, ModuleQuotes, ModuleUsers, ModuleMessages, ModulePages, ModuleSettings},
	RoleStaff:     {ModuleQuotes, ModuleMessages},
	RoleWarehouse: {ModuleOverview, ModuleQuotes, ModuleMessages},
	RoleFinance:   {ModuleOverview, ModuleQuotes},
	RoleCustomer:  {},
	RolePartner:   {},
}

// adminRoles - роли, которым вообще разрешен вход в /admin.
var adminRoles = map[Role]bool{
	RoleAdmin:     true,
	RoleStaff:     true,
	RoleWarehouse: true,
	RoleFinance:   true,
}

// ModulesFor возвращает копию списка разделов роли по матрице (без учета флага статей).
func ModulesFor(role Role) []Module {
	modules := rolePermissions[role]
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// CanAccessModule проверяет доступ роли к разделу.
// Порядок правил: ADMIN всегда; STAFF к статьям при canManageArticles; иначе матрица.
func CanAccessModule(role Role, module Module, canManageArticles bool) bool {
	if module.Path() == "" {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	if role == RoleStaff && module == ModuleArticles && canManageArticles {
		return true
	}
	for _, m := range rolePermissions[role] {
		if m == module {
			return true
		}
	}
	return false
}

// CanAccessAdmin - грубая проверка входа в админку, без учета раздела.
func CanAccessAdmin(role Role) bool {
	return adminRoles[role]
}

// CanAccessPath объединяет CanAccessAdmin, ResolveModule и CanAccessModule.
// Путь, который не относится ни к одному разделу, закрыт для всех, включая ADMIN.
func CanAccessPath(role Role, requestPath string, canManageArticles bool) bool {
	if !CanAccessAdmin(role) {
		return false
	}
	module, ok := ResolveModule(requestPath)
	if !ok {
		return false
	}
	return CanAccessModule(role, module, canManageArticles)
}

// IsAdminPath сообщает, относится ли путь к пространству /admin.
func IsAdminPath(requestPath string) bool {
	p := normalizePath(requestPath)
	return p == AdminRoot || strings.HasPrefix(p, AdminRoot+"/")
}

// LandingPath - куда отправить пользователя после входа.
func LandingPath(role Role, canManageArticles bool) string {
	switch {
	case CanAccessAdmin(role) && CanAccessModule(role, ModuleOverview, canManageArticles):
		return AdminRoot
	case role == RoleStaff:
		return StaffHomePath
	default:
		return DashboardPath
	}
}

// SafeNext возвращает next, если это локальный путь, доступный роли, иначе fallback.
func SafeNext(next string, role Role, canManageArticles bool, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	if IsAdminPath(next) && !CanAccessPath(role, next, canManageArticles) {
		return fallback
	}
	return next
}
