package models

import "time"

// Security event kinds recorded by the session manager and admin handlers.
const (
	EventLogin             = "login"
	EventLoginFailed       = "login_failed"
	EventLogout            = "logout"
	EventLoginAs           = "login_as"
	EventLoginAsDenied     = "login_as_denied"
	EventRevertLoginAs     = "revert_login_as"
	EventMaintenanceToggle = "maintenance_toggle"
)

// SecurityEvent is an append-only audit row. ActorUserID is the
// authenticated (never the impersonated) principal; TargetUserID is set for
// login-as events.
type SecurityEvent struct {
	ID           string
	Kind         string
	ActorUserID  *string
	TargetUserID *string
	Detail       string
	CreatedAt    time.Time
}
