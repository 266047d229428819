// Package services contains server-side business logic above the
// repositories: account registration, content CRUD, and the document
// attachment presign flow.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/cryptox"
	"github.com/mvoronin/promptstash/internal/server/auth"
	"github.com/mvoronin/promptstash/internal/server/config"
	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
)

// UserService handles registration, user administration, and API token
// issuance. Browser login/logout belongs to the session package, not here.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{db: db, repomanager: m, config: cfg}
}

// Register creates a user-role principal on the default tier with a trial
// expiry. The caller is responsible for checking the registration gate.
func (s *UserService) Register(ctx context.Context, email string, password []byte) (*models.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	expires := time.Now().Add(s.config.TrialDuration)
	user := &models.User{
		Email:               email,
		PasswordHash:        hash,
		Role:                models.RoleUser,
		TierID:              s.config.DefaultTierID,
		MembershipExpiresAt: &expires,
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// IssueAPIToken verifies credentials and mints a short-lived bearer JWT for
// the JSON API. Failures are the same generic error as browser login.
func (s *UserService) IssueAPIToken(ctx context.Context, email string, password []byte) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return "", common.ErrInvalidCredentials
	}
	if !cryptox.VerifyPassword(user.PasswordHash, password) {
		return "", common.ErrInvalidCredentials
	}
	token, err := auth.GenerateToken(user.ID, []byte(s.config.SecretKey), s.config.APITokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}

// List returns all principals, for the admin user listing.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// Upgrade moves a user to the given tier with a fresh expiry, or to a
// never-lapsing membership when validity is zero.
func (s *UserService) Upgrade(ctx context.Context, userID, tierID string, validity time.Duration) error {
	var expiresAt *time.Time
	if validity > 0 {
		t := time.Now().Add(validity)
		expiresAt = &t
	}
	if err := s.repomanager.Users(s.db).UpdateMembership(ctx, userID, tierID, expiresAt); err != nil {
		return fmt.Errorf("error updating membership: %w", err)
	}
	return nil
}
