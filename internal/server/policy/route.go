package policy

// Route is the closed enumeration of dispatchable pages. Modeling routes as
// an enum with an attached classification keeps the precedence rules in the
// engine exhaustively checkable instead of scattering name lists around.
type Route int

const (
	RouteLanding Route = iota
	RouteLogin
	RouteLogout
	RouteRegister
	RouteCheckout
	RouteAPI
	RouteLoginAs
	RouteRevertLoginAs
	RouteDashboard
	RoutePrompts
	RouteBookmarks
	RouteDocuments
	RouteProfile
	RouteUpgrade
	RouteAdmin
	RouteUsers
	RouteAdminBackup
	RouteSecurityLogs

	routeCount
)

// Class is the access classification of a route.
type Class int

const (
	// Public routes are reachable without authentication.
	Public Class = iota
	// Protected routes require a logged-in principal.
	Protected
	// AdminOnly routes require an originally-admin principal.
	AdminOnly
)

type routeInfo struct {
	name  string
	path  string
	class Class
}

var routes = [routeCount]routeInfo{
	RouteLanding:       {"landing", "/", Public},
	RouteLogin:         {"login", "/login", Public},
	RouteLogout:        {"logout", "/logout", Public},
	RouteRegister:      {"register", "/register", Public},
	RouteCheckout:      {"checkout", "/checkout", Public},
	RouteAPI:           {"api", "/api/", Public},
	RouteLoginAs:       {"login_as", "/login-as", Public},
	RouteRevertLoginAs: {"revert_login_as", "/revert-login-as", Protected},
	RouteDashboard:     {"dashboard", "/dashboard", Protected},
	RoutePrompts:       {"prompts", "/prompts", Protected},
	RouteBookmarks:     {"bookmarks", "/bookmarks", Protected},
	RouteDocuments:     {"documents", "/documents", Protected},
	RouteProfile:       {"profile", "/profile", Protected},
	RouteUpgrade:       {"upgrade", "/upgrade", Protected},
	RouteAdmin:         {"admin", "/admin", AdminOnly},
	RouteUsers:         {"users", "/admin/users", AdminOnly},
	RouteAdminBackup:   {"admin_backup", "/admin/backup", AdminOnly},
	RouteSecurityLogs:  {"security_logs", "/admin/security-logs", AdminOnly},
}

func (r Route) String() string {
	if r < 0 || r >= routeCount {
		return "unknown"
	}
	return routes[r].name
}

// Path returns the URL path the dispatcher serves this route on.
func (r Route) Path() string {
	if r < 0 || r >= routeCount {
		return ""
	}
	return routes[r].path
}

func (r Route) Class() Class {
	if r < 0 || r >= routeCount {
		return Protected
	}
	return routes[r].class
}

// RouteByName resolves a route name ("dashboard", "login_as", ...). Used for
// the configurable lapsed-membership allow-list.
func RouteByName(name string) (Route, bool) {
	for r := Route(0); r < routeCount; r++ {
		if routes[r].name == name {
			return r, true
		}
	}
	return 0, false
}

// AllRoutes returns every dispatchable route, in declaration order.
func AllRoutes() []Route {
	result := make([]Route, 0, routeCount)
	for r := Route(0); r < routeCount; r++ {
		result = append(result, r)
	}
	return result
}
