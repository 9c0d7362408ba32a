// internal/permissions/guard.go
package permissions

import "net/url"

const (
	LoginPath     = "/login"
	StaffHomePath = "/admin/messages"
	DashboardPath = "/dashboard"
)

// SessionStatus - результат поиска сессии.
type SessionStatus int

const (
	SessionUnresolved SessionStatus = iota
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionStatus) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unresolved"
	}
}

// Principal - то, что известно о пользователе на время одного запроса.
type Principal struct {
	UserID            int64  `json:"user_id"`
	Role              Role   `json:"role"`
	CanManageArticles bool   `json:"can_manage_articles"`
	PreferredLocale   string `json:"-"`
}

// Session - снимок сессии для одной оценки.
type Session struct {
	Status    SessionStatus
	Principal Principal
}

// State - состояние guard'а.
type State string

const (
	StatePending         State = "pending"
	StateUnauthenticated State = "unauthenticated"
	StateAuthorized      State = "authorized"
	StateRedirecting     State = "redirecting"
)

// Причины отказа, пишутся в логи и метрики.
const (
	ReasonNoSession   = "no_session"
	ReasonAdminGate   = "admin_gate"
	ReasonModuleGate  = "module_gate"
	ReasonUnknownPath = "unknown_path"
)

// Decision - результат Evaluate. Redirect пуст для pending и authorized.
type Decision struct {
	State    State  `json:"state"`
	Redirect string `json:"redirect,omitempty"`
	Module   Module `json:"module"`
	Reason   string `json:"reason,omitempty"`
}

// Guard решает, что показать по пути внутри /admin. Сам ничего не пишет в ответ.
type Guard struct {
	LoginPath     string
	StaffHomePath string
	DashboardPath string
}

func NewGuard() *Guard {
	return &Guard{
		LoginPath:     LoginPath,
		StaffHomePath: StaffHomePath,
		DashboardPath: DashboardPath,
	}
}

// Evaluate - чистая функция от снимка сессии и пути. Вызывается заново на каждый запрос.
// Сначала проверяется вход в админку, потом доступ к разделу.
func (g *Guard) Evaluate(session Session, requestPath string) Decision {
	module, known := ResolveModule(requestPath)

	switch session.Status {
	case SessionUnresolved:
		return Decision{State: StatePending, Module: module}
	case SessionAnonymous:
		return Decision{
			State:    StateUnauthenticated,
			Redirect: g.loginRedirect(requestPath),
			Module:   module,
			Reason:   ReasonNoSession,
		}
	}

	role := session.Principal.Role
	if !CanAccessAdmin(role) {
		return Decision{State: StateRedirecting, Redirect: g.DenyTarget(role), Module: module, Reason: ReasonAdminGate}
	}
	if !known {
		return Decision{State: StateRedirecting, Redirect: g.DenyTarget(role), Module: module, Reason: ReasonUnknownPath}
	}
	if !CanAccessModule(role, module, session.Principal.CanManageArticles) {
		return Decision{State: StateRedirecting, Redirect: g.DenyTarget(role), Module: module, Reason: ReasonModuleGate}
	}
	return Decision{State: StateAuthorized, Module: module}
}

// DenyTarget: STAFF уходит в сообщения, все остальные на общий дашборд.
func (g *Guard) DenyTarget(role Role) string {
	if role == RoleStaff {
		return g.StaffHomePath
	}
	return g.DashboardPath
}

func (g *Guard) loginRedirect(requestPath string) string {
	if requestPath == "" {
		return g.LoginPath
	}
	return g.LoginPath + "?next=" + url.QueryEscape(requestPath)
}
