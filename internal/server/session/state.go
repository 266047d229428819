package session

import "github.com/mvoronin/promptstash/internal/server/models"

// State is the resolved identity for one request: the authenticated
// principal plus the optional login-as overlay. It is an explicit value
// passed through the request pipeline, never ambient state.
type State struct {
	Authenticated *models.User
	Impersonated  *models.User
}

// Anonymous is the state of a request with no live session.
var Anonymous = &State{}

// IsLoggedIn reports whether an authenticated principal exists.
// Impersonation does not change this.
func (s *State) IsLoggedIn() bool {
	return s != nil && s.Authenticated != nil
}

// Impersonating reports whether a login-as overlay is active.
func (s *State) Impersonating() bool {
	return s != nil && s.Impersonated != nil
}

// Effective returns the principal whose permissions govern the request: the
// impersonated principal if an overlay is active, otherwise the
// authenticated one, otherwise the anonymous sentinel.
func (s *State) Effective() *models.User {
	if s == nil {
		return models.Anonymous
	}
	if s.Impersonated != nil {
		return s.Impersonated
	}
	if s.Authenticated != nil {
		return s.Authenticated
	}
	return models.Anonymous
}

// IsAdmin reports whether the effective principal is an admin.
func (s *State) IsAdmin() bool {
	return s.Effective().IsAdmin()
}

// IsOriginallyAdmin reports whether the authenticated (non-overlaid)
// principal is an admin. Every privilege check that must survive
// impersonation (admin pages, maintenance bypass) keys on this, not on
// IsAdmin: an admin investigating a user's account keeps admin capability,
// and the impersonated identity can never grant it.
func (s *State) IsOriginallyAdmin() bool {
	return s != nil && s.Authenticated.IsAdmin()
}
