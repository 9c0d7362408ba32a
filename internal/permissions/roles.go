// internal/permissions/roles.go
package permissions

import "strings"

// Role - роль пользователя, хранится в таблице roles и приходит из записи пользователя.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleStaff     Role = "STAFF"
	RoleWarehouse Role = "WAREHOUSE"
	RoleFinance   Role = "FINANCE"
	RoleCustomer  Role = "CUSTOMER"
	RolePartner   Role = "PARTNER"

	// RoleUnknown получают все значения, которых нет в списке выше.
	// У нее нет ни одного права.
	RoleUnknown Role = ""
)

var allRoles = []Role{RoleAdmin, RoleStaff, RoleWarehouse, RoleFinance, RoleCustomer, RolePartner}

// AllRoles возвращает все известные роли в порядке объявления.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole разбирает сохраненное имя роли без учета регистра.
// Неизвестное значение превращается в RoleUnknown, а не в CUSTOMER.
func ParseRole(name string) Role {
	candidate := Role(strings.ToUpper(strings.TrimSpace(name)))
	for _, r := range allRoles {
		if r == candidate {
			return r
		}
	}
	return RoleUnknown
}

func (r Role) Valid() bool {
	return r != RoleUnknown && ParseRole(string(r)) == r
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "UNKNOWN"
	}
	return string(r)
}
