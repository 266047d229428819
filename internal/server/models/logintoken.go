package models

import "time"

// LoginToken is a single-use, time-bounded credential minted by an admin to
// authorize one login-as transition, typically delivered out-of-band as a
// link. Only the digest of the token value is stored.
type LoginToken struct {
	ID             string
	TokenHash      string
	TargetUserID   string
	MintedByUserID string
	ExpiresAt      time.Time
	ConsumedAt     *time.Time
	CreatedAt      time.Time
}
