package models

import "time"

// Role of a principal. Only two roles exist; everything finer-grained
// (membership tiers) lives on the tier fields.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the principal owned by the identity store. The access-control core
// treats it as read-only.
//
// MembershipExpiresAt is the trial/subscription expiry; nil means the
// membership never lapses (e.g. comped accounts, admins).
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	TierID              string
	MembershipExpiresAt *time.Time
	CreatedAt           time.Time
}

// Anonymous is the sentinel principal returned when no session exists.
// It has no id, no role, and no membership.
var Anonymous = &User{}

func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == ""
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// MembershipLapsed reports whether the user's trial/subscription has expired
// as of now.
func (u *User) MembershipLapsed(now time.Time) bool {
	if u == nil || u.MembershipExpiresAt == nil {
		return false
	}
	return u.MembershipExpiresAt.Before(now)
}
