package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvoronin/promptstash/internal/server/models"
)

// fakeSubject mirrors session.State without importing it, to keep the engine
// tests free of session wiring.
type fakeSubject struct {
	loggedIn        bool
	originallyAdmin bool
	effective       *models.User
}

func (f *fakeSubject) IsLoggedIn() bool        { return f.loggedIn }
func (f *fakeSubject) IsOriginallyAdmin() bool { return f.originallyAdmin }
func (f *fakeSubject) Effective() *models.User {
	if f.effective == nil {
		return models.Anonymous
	}
	return f.effective
}

func anonymous() *fakeSubject {
	return &fakeSubject{}
}

func member() *fakeSubject {
	return &fakeSubject{loggedIn: true, effective: &models.User{ID: "u1", Role: models.RoleUser, TierID: "pro"}}
}

func lapsedMember() *fakeSubject {
	expired := time.Now().Add(-time.Hour)
	return &fakeSubject{loggedIn: true, effective: &models.User{ID: "u1", Role: models.RoleUser, MembershipExpiresAt: &expired}}
}

func admin() *fakeSubject {
	return &fakeSubject{loggedIn: true, originallyAdmin: true, effective: &models.User{ID: "a1", Role: models.RoleAdmin}}
}

// impersonatingAdmin is originally admin with a regular user as the
// effective principal.
func impersonatingAdmin() *fakeSubject {
	return &fakeSubject{loggedIn: true, originallyAdmin: true, effective: &models.User{ID: "u2", Role: models.RoleUser}}
}

func defaultEngine() *Engine {
	return NewEngine([]string{"upgrade", "profile", "logout"})
}

func open() Settings {
	return Settings{RegistrationAllowed: true}
}

func TestEvaluate_LogoutAlwaysAllowed(t *testing.T) {
	e := defaultEngine()

	for _, s := range []Settings{
		open(),
		{MaintenanceMode: true},
		{Unavailable: true},
	} {
		d := e.Evaluate(RouteLogout, anonymous(), s)
		require.Equal(t, Allow, d.Kind, "logout must be reachable under settings %+v", s)
	}
}

func TestEvaluate_MaintenanceMode(t *testing.T) {
	e := defaultEngine()
	s := Settings{MaintenanceMode: true, RegistrationAllowed: true}

	d := e.Evaluate(RouteDashboard, member(), s)
	require.Equal(t, Redirect, d.Kind)
	require.Equal(t, RouteLogin, d.Target)

	d = e.Evaluate(RouteCheckout, member(), s)
	require.Equal(t, Allow, d.Kind)

	// Originally-admin bypasses maintenance entirely, even while
	// impersonating a regular user.
	d = e.Evaluate(RouteDashboard, impersonatingAdmin(), s)
	require.Equal(t, Allow, d.Kind)

	// An impersonating admin can always drop the overlay mid-maintenance.
	d = e.Evaluate(RouteRevertLoginAs, member(), s)
	require.Equal(t, Allow, d.Kind)
}

func TestEvaluate_RegistrationGate(t *testing.T) {
	e := defaultEngine()

	d := e.Evaluate(RouteRegister, anonymous(), Settings{RegistrationAllowed: false})
	require.Equal(t, Redirect, d.Kind)
	require.Equal(t, RouteLogin, d.Target)
	require.Equal(t, ReasonRegistrationDisabled, d.Reason)

	d = e.Evaluate(RouteRegister, anonymous(), open())
	require.Equal(t, Allow, d.Kind)
}

func TestEvaluate_PublicRoutesAllowAnonymous(t *testing.T) {
	e := defaultEngine()

	for _, r := range []Route{RouteLanding, RouteCheckout, RouteLogin, RouteRegister, RouteAPI, RouteLoginAs} {
		d := e.Evaluate(r, anonymous(), open())
		require.Equalf(t, Allow, d.Kind, "route %s must be public", r)
	}
}

func TestEvaluate_ProtectedRequiresLogin(t *testing.T) {
	e := defaultEngine()

	for _, r := range []Route{RouteDashboard, RoutePrompts, RouteProfile, RouteRevertLoginAs} {
		d := e.Evaluate(r, anonymous(), open())
		require.Equalf(t, Redirect, d.Kind, "route %s must require login", r)
		require.Equal(t, RouteLogin, d.Target)
	}
}

func TestEvaluate_LapsedMembership(t *testing.T) {
	e := defaultEngine()

	d := e.Evaluate(RoutePrompts, lapsedMember(), open())
	require.Equal(t, Redirect, d.Kind)
	require.Equal(t, RouteUpgrade, d.Target)
	require.Equal(t, ReasonMembershipLapsed, d.Reason)

	for _, r := range []Route{RouteUpgrade, RouteProfile} {
		d := e.Evaluate(r, lapsedMember(), open())
		require.Equalf(t, Allow, d.Kind, "route %s must stay reachable while lapsed", r)
	}
}

func TestEvaluate_LapsedAllowListIsConfigurable(t *testing.T) {
	e := NewEngine([]string{"upgrade", "bookmarks"})

	d := e.Evaluate(RouteBookmarks, lapsedMember(), open())
	require.Equal(t, Allow, d.Kind)

	d = e.Evaluate(RouteProfile, lapsedMember(), open())
	require.Equal(t, Redirect, d.Kind)
	require.Equal(t, RouteUpgrade, d.Target)
}

func TestEvaluate_AdminRoutes(t *testing.T) {
	e := defaultEngine()

	d := e.Evaluate(RouteUsers, member(), open())
	require.Equal(t, Redirect, d.Kind)
	require.Equal(t, RouteDashboard, d.Target)

	d = e.Evaluate(RouteUsers, admin(), open())
	require.Equal(t, Allow, d.Kind)

	// The gate keys on the original identity, so an admin impersonating a
	// regular user keeps admin-page access.
	d = e.Evaluate(RouteUsers, impersonatingAdmin(), open())
	require.Equal(t, Allow, d.Kind)
}

func TestEvaluate_SettingsUnavailableFailsClosed(t *testing.T) {
	e := defaultEngine()
	s := Settings{Unavailable: true}

	d := e.Evaluate(RouteDashboard, admin(), s)
	require.Equal(t, Deny, d.Kind)

	d = e.Evaluate(RouteLanding, anonymous(), s)
	require.Equal(t, Allow, d.Kind)
}

func TestEvaluate_DefaultAllow(t *testing.T) {
	e := defaultEngine()

	d := e.Evaluate(RouteDashboard, member(), open())
	require.Equal(t, Allow, d.Kind)
}

func TestRoute_ClassificationComplete(t *testing.T) {
	for _, r := range AllRoutes() {
		require.NotEmptyf(t, r.String(), "route %d must have a name", int(r))
		require.NotEmptyf(t, r.Path(), "route %s must have a path", r)
	}

	require.Equal(t, Public, RouteLoginAs.Class())
	require.Equal(t, Protected, RouteRevertLoginAs.Class())
	require.Equal(t, AdminOnly, RouteSecurityLogs.Class())
}

func TestRouteByName(t *testing.T) {
	r, ok := RouteByName("revert_login_as")
	require.True(t, ok)
	require.Equal(t, RouteRevertLoginAs, r)

	_, ok = RouteByName("nope")
	require.False(t, ok)
}
