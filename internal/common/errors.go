// Package common defines shared constants and sentinel errors used across
// PromptStash components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Auth errors. ErrInvalidCredentials is deliberately generic: the login
	// surface must not reveal whether the identifier or the secret was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")

	// ErrInvalidToken covers malformed, forged, and expired API bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
)
