// Package policy implements the per-request access decision. The engine is
// pure: it reads the resolved session state and the application settings and
// never mutates either; all state changes live in the session package.
package policy

import (
	"time"

	"github.com/mvoronin/promptstash/internal/server/models"
)

// DecisionKind is the outcome category of a policy evaluation.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
	Deny
)

// Reasons attached to redirect decisions so the dispatcher can surface an
// indicator without the engine knowing about query strings.
const (
	ReasonRegistrationDisabled = "registration_disabled"
	ReasonMaintenance          = "maintenance"
	ReasonMembershipLapsed     = "membership_lapsed"
)

// Decision is the transient, per-request result. Target is meaningful only
// for Redirect.
type Decision struct {
	Kind   DecisionKind
	Target Route
	Reason string
}

func allow() Decision { return Decision{Kind: Allow} }

func deny() Decision { return Decision{Kind: Deny} }

func redirect(to Route, reason string) Decision {
	return Decision{Kind: Redirect, Target: to, Reason: reason}
}

// Subject is the identity view the engine needs; *session.State satisfies it.
type Subject interface {
	IsLoggedIn() bool
	IsOriginallyAdmin() bool
	Effective() *models.User
}

// Settings is the engine's snapshot of the application settings for one
// request. Unavailable is set when the settings store could not be read; the
// engine then fails closed.
type Settings struct {
	MaintenanceMode     bool
	RegistrationAllowed bool
	Unavailable         bool
}

// maintenanceAllowed is the fixed allow-list reachable by non-admins during
// maintenance. revert_login_as is included so an impersonating admin can
// always drop back to their own session mid-maintenance.
var maintenanceAllowed = map[Route]bool{
	RouteLogin:         true,
	RouteRegister:      true,
	RouteLanding:       true,
	RouteCheckout:      true,
	RouteAPI:           true,
	RouteRevertLoginAs: true,
}

// Engine evaluates access decisions. The lapsed-membership allow-list is a
// policy parameter supplied at construction, not a structural constant.
type Engine struct {
	lapsedAllowed map[Route]bool
	now           func() time.Time
}

// NewEngine builds an engine whose lapsed-membership allow-list contains the
// named routes; unknown names are ignored.
func NewEngine(lapsedAllowedNames []string) *Engine {
	lapsed := make(map[Route]bool, len(lapsedAllowedNames))
	for _, name := range lapsedAllowedNames {
		if r, ok := RouteByName(name); ok {
			lapsed[r] = true
		}
	}
	return &Engine{lapsedAllowed: lapsed, now: time.Now}
}

// Evaluate produces the access decision for one request. The precedence
// order is fixed and security-relevant; reordering changes the security
// posture:
//
//  1. logout is always reachable, to exit a broken session
//  2. unreadable settings fail closed for non-public routes
//  3. maintenance mode locks out everyone but originally-admins, modulo the
//     maintenance allow-list
//  4. the registration gate
//  5. public routes
//  6. authentication requirement
//  7. membership/trial enforcement on the effective principal
//  8. originally-admin gate on admin routes
//  9. default allow
func (e *Engine) Evaluate(route Route, subject Subject, settings Settings) Decision {
	if route == RouteLogout {
		return allow()
	}

	if settings.Unavailable {
		if route.Class() == Public {
			return allow()
		}
		return deny()
	}

	if settings.MaintenanceMode && !subject.IsOriginallyAdmin() {
		if maintenanceAllowed[route] {
			return allow()
		}
		return redirect(RouteLogin, ReasonMaintenance)
	}

	if route == RouteRegister && !settings.RegistrationAllowed {
		return redirect(RouteLogin, ReasonRegistrationDisabled)
	}

	if route.Class() == Public {
		return allow()
	}

	if !subject.IsLoggedIn() {
		return redirect(RouteLogin, "")
	}

	if subject.Effective().MembershipLapsed(e.now()) && !e.lapsedAllowed[route] {
		return redirect(RouteUpgrade, ReasonMembershipLapsed)
	}

	if route.Class() == AdminOnly && !subject.IsOriginallyAdmin() {
		return redirect(RouteDashboard, "")
	}

	return allow()
}
