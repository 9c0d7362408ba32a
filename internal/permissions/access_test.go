package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"ADMIN":      RoleAdmin,
		"admin":      RoleAdmin,
		" Staff ":    RoleStaff,
		"warehouse":  RoleWarehouse,
		"FINANCE":    RoleFinance,
		"customer":   RoleCustomer,
		"PARTNER":    RolePartner,
		"":           RoleUnknown,
		"moderator":  RoleUnknown,
		"superadmin": RoleUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), "ParseRole(%q)", in)
	}
	assert.False(t, RoleUnknown.Valid())
	assert.True(t, RoleFinance.Valid())
	assert.False(t, Role("admin").Valid())
}

func TestEveryRoleHasTableEntry(t *testing.T) {
	for _, role := range AllRoles() {
		_, ok := rolePermissions[role]
		assert.True(t, ok, "role %s has no entry", role)
	}
	assert.ElementsMatch(t, AllModules(), ModulesFor(RoleAdmin))
	assert.Empty(t, ModulesFor(RoleCustomer))
	assert.Empty(t, ModulesFor(RolePartner))
}

func TestModulesForReturnsCopy(t *testing.T) {
	modules := ModulesFor(RoleStaff)
	require.NotEmpty(t, modules)
	modules[0] = ModuleSettings
	assert.NotContains(t, ModulesFor(RoleStaff), ModuleSettings)
}

func TestAdminAccessesEveryModule(t *testing.T) {
	for _, m := range AllModules() {
		assert.True(t, CanAccessModule(RoleAdmin, m, false), m)
		assert.True(t, CanAccessModule(RoleAdmin, m, true), m)
	}
}

func TestStaffOverrideOnlyAffectsArticles(t *testing.T) {
	for _, m := range AllModules() {
		if m == ModuleArticles {
			continue
		}
		assert.Equal(t, CanAccessModule(RoleStaff, m, false), CanAccessModule(RoleStaff, m, true), m)
	}
	assert.True(t, CanAccessModule(RoleStaff, ModuleArticles, true))
	assert.False(t, CanAccessModule(RoleStaff, ModuleArticles, false))
}

func TestOverrideIgnoredForOtherRoles(t *testing.T) {
	for _, role := range []Role{RoleWarehouse, RoleFinance, RoleCustomer, RolePartner, RoleUnknown} {
		assert.False(t, CanAccessModule(role, ModuleArticles, true), role)
	}
}

func TestRoleTable(t *testing.T) {
	tests := []struct {
		role    Role
		allowed []Module
	}{
		{RoleStaff, []Module{ModuleQuotes, ModuleMessages}},
		{RoleWarehouse, []Module{ModuleOverview, ModuleQuotes, ModuleMessages}},
		{RoleFinance, []Module{ModuleOverview, ModuleQuotes}},
		{RoleCustomer, nil},
		{RolePartner, nil},
		{RoleUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			for _, m := range AllModules() {
				want := false
				for _, a := range tt.allowed {
					if a == m {
						want = true
					}
				}
				assert.Equal(t, want, CanAccessModule(tt.role, m, false), "%s -> %s", tt.role, m)
			}
		})
	}
}

func TestCanAccessModuleRejectsNone(t *testing.T) {
	assert.False(t, CanAccessModule(RoleAdmin, ModuleNone, true))
	assert.False(t, CanAccessModule(RoleAdmin, Module("reports"), true))
}

func TestCanAccessAdmin(t *testing.T) {
	assert.True(t, CanAccessAdmin(RoleAdmin))
	assert.True(t, CanAccessAdmin(RoleStaff))
	assert.True(t, CanAccessAdmin(RoleWarehouse))
	assert.True(t, CanAccessAdmin(RoleFinance))
	assert.False(t, CanAccessAdmin(RoleCustomer))
	assert.False(t, CanAccessAdmin(RolePartner))
	assert.False(t, CanAccessAdmin(RoleUnknown))
}

func TestResolveModule(t *testing.T) {
	tests := []struct {
		path string
		want Module
		ok   bool
	}{
		{"/admin", ModuleOverview, true},
		{"/admin/", ModuleOverview, true},
		{"/admin/users", ModuleUsers, true},
		{"/admin/users/42", ModuleUsers, true},
		{"/admin/articles/new?draft=1", ModuleArticles, true},
		{"/admin/quotes", ModuleQuotes, true},
		{"/admin/messages/abc", ModuleMessages, true},
		{"/admin/pages/about", ModulePages, true},
		{"/admin/settings/permissions", ModuleSettings, true},
		{"/admin/usersx", ModuleNone, false},
		{"/admin/reports", ModuleNone, false},
		{"/admin/../admin/users", ModuleUsers, true},
		{"/admin/users/../../secret", ModuleNone, false},
		{"/random", ModuleNone, false},
		{"/administrator", ModuleNone, false},
		{"", ModuleNone, false},
	}
	for _, tt := range tests {
		got, ok := ResolveModule(tt.path)
		assert.Equal(t, tt.want, got, tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
	}
}

func TestModulePrefixesDisjoint(t *testing.T) {
	for i, a := range moduleRoutes {
		for j, b := range moduleRoutes {
			if i == j || a.exact || b.exact {
				continue
			}
			got, _ := ResolveModule(b.prefix)
			assert.Equal(t, b.module, got, "prefix %s resolved to %s", b.prefix, got)
			assert.NotEqual(t, a.prefix, b.prefix)
		}
	}
}

func TestCanAccessPath(t *testing.T) {
	assert.True(t, CanAccessPath(RoleAdmin, "/admin/settings", false))
	assert.False(t, CanAccessPath(RoleAdmin, "/admin/unknown", true))
	assert.False(t, CanAccessPath(RoleAdmin, "/dashboard", true))
	assert.True(t, CanAccessPath(RoleFinance, "/admin", false))
	assert.False(t, CanAccessPath(RoleFinance, "/admin/users", false))
	assert.True(t, CanAccessPath(RoleStaff, "/admin/articles/3", true))
	assert.False(t, CanAccessPath(RoleStaff, "/admin/articles/3", false))

	paths := []string{"/admin", "/admin/quotes", "/admin/articles", "/admin/settings", "/x"}
	for _, role := range []Role{RoleCustomer, RolePartner, RoleUnknown} {
		for _, p := range paths {
			assert.False(t, CanAccessPath(role, p, true), "%s %s", role, p)
			assert.False(t, CanAccessPath(role, p, false), "%s %s", role, p)
		}
	}
}

func TestCanAccessPathIsIdempotent(t *testing.T) {
	for _, role := range append(AllRoles(), RoleUnknown) {
		for _, p := range []string{"/admin", "/admin/articles", "/admin/messages/1", "/nope"} {
			first := CanAccessPath(role, p, true)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, CanAccessPath(role, p, true))
			}
		}
	}
}

func TestLandingPath(t *testing.T) {
	assert.Equal(t, "/admin", LandingPath(RoleAdmin, false))
	assert.Equal(t, "/admin", LandingPath(RoleWarehouse, false))
	assert.Equal(t, "/admin", LandingPath(RoleFinance, false))
	assert.Equal(t, "/admin/messages", LandingPath(RoleStaff, true))
	assert.Equal(t, "/dashboard", LandingPath(RoleCustomer, false))
	assert.Equal(t, "/dashboard", LandingPath(RoleUnknown, false))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/quotes", SafeNext("/quotes", RoleCustomer, false, "/dashboard"))
	assert.Equal(t, "/dashboard", SafeNext("https://evil.example", RoleCustomer, false, "/dashboard"))
	assert.Equal(t, "/dashboard", SafeNext("//evil.example", RoleCustomer, false, "/dashboard"))
	assert.Equal(t, "/dashboard", SafeNext("/admin", RoleCustomer, false, "/dashboard"))
	assert.Equal(t, "/admin/messages", SafeNext("/admin/users", RoleStaff, false, "/admin/messages"))
	assert.Equal(t, "/admin/articles/9", SafeNext("/admin/articles/9", RoleStaff, true, "/admin/messages"))
	assert.Equal(t, "/admin", SafeNext("", RoleAdmin, false, "/admin"))
}
