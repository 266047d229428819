package models

import "time"

// Session is the server-side session record. The client holds only the
// opaque token value; the row is keyed by its SHA-256 digest.
//
// ImpersonatedUserID is the login-as overlay: non-nil only while an
// administrator is acting as another user. The schema enforces at most one
// overlay (a single nullable column), and the session manager enforces that
// the authenticated principal is an admin before setting it.
type Session struct {
	ID                  string
	TokenHash           string
	AuthenticatedUserID string
	ImpersonatedUserID  *string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

func (s *Session) Impersonating() bool {
	return s.ImpersonatedUserID != nil
}
