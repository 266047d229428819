// Package session owns the server-side session record: who is
// authenticated, and, while an administrator is acting as another user, the
// login-as overlay. All session mutation goes through Manager; the access
// policy engine only reads the State this package resolves.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/cryptox"
	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/logging"
	"github.com/mvoronin/promptstash/internal/server/config"
	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
)

const lockStripes = 64

// Manager implements the session state machine:
//
//	Anonymous --Login--> Authenticated --LoginAs--> Impersonating
//	Impersonating --RevertLoginAs--> Authenticated
//	Authenticated|Impersonating --Logout--> Anonymous
//
// Two concurrent requests for the same session token (double-submitted
// forms) must not race the LoginAs/RevertLoginAs read-modify-write, so every
// mutating operation holds a striped per-token lock, and the overlay set is
// additionally a conditional UPDATE in the database.
type Manager struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *config.Config
	logger logging.Logger
	locks  [lockStripes]sync.Mutex
}

func NewManager(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Manager {
	return &Manager{
		db:     db,
		repos:  repos,
		config: cfg,
		logger: logger.With("module", "session"),
	}
}

// Login verifies credentials and creates a fresh session record with no
// overlay. It returns the opaque token to hand to the client; only the
// token's digest is stored. Both unknown identifier and wrong password yield
// common.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, email string, password []byte) (string, error) {
	user, err := m.repos.Users(m.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			m.recordEvent(ctx, models.EventLoginFailed, nil, nil, email)
			return "", common.ErrInvalidCredentials
		}
		return "", common.ErrInternal
	}

	if !cryptox.VerifyPassword(user.PasswordHash, password) {
		m.recordEvent(ctx, models.EventLoginFailed, &user.ID, nil, "")
		return "", common.ErrInvalidCredentials
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return "", common.ErrInternal
	}

	record := &models.Session{
		TokenHash:           cryptox.HashToken(token),
		AuthenticatedUserID: user.ID,
		ExpiresAt:           time.Now().Add(m.config.SessionValidityDuration),
	}
	if _, err := m.repos.Sessions(m.db).Create(ctx, record); err != nil {
		return "", common.ErrInternal
	}

	m.recordEvent(ctx, models.EventLogin, &user.ID, nil, "")
	return token, nil
}

// Logout destroys the session record. It is idempotent: an absent or
// already-destroyed session is a no-op, never an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	lock := m.lockFor(token)
	lock.Lock()
	defer lock.Unlock()

	hash := cryptox.HashToken(token)

	record, err := m.repos.Sessions(m.db).FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return common.ErrInternal
	}

	if err := m.repos.Sessions(m.db).Delete(ctx, hash); err != nil {
		return common.ErrInternal
	}

	m.recordEvent(ctx, models.EventLogout, &record.AuthenticatedUserID, nil, "")
	return nil
}

// Resolve loads the State for a session token. An empty, unknown, or expired
// token resolves to Anonymous; the caller cannot distinguish expiry from
// absence by design. A non-nil error means the identity store itself failed
// and the caller must fail closed.
func (m *Manager) Resolve(ctx context.Context, token string) (*State, error) {
	if token == "" {
		return Anonymous, nil
	}

	record, err := m.repos.Sessions(m.db).FindByTokenHash(ctx, cryptox.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Anonymous, nil
		}
		return Anonymous, fmt.Errorf("resolving session: %w", err)
	}

	if record.Expired(time.Now()) {
		// Best-effort cleanup; the row is unreachable either way.
		_ = m.repos.Sessions(m.db).Delete(ctx, record.TokenHash)
		return Anonymous, nil
	}

	users := m.repos.Users(m.db)

	authenticated, err := users.GetByID(ctx, record.AuthenticatedUserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Anonymous, nil
		}
		return Anonymous, fmt.Errorf("resolving principal: %w", err)
	}

	state := &State{Authenticated: authenticated}

	if record.ImpersonatedUserID != nil {
		impersonated, err := users.GetByID(ctx, *record.ImpersonatedUserID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				// Target account deleted mid-impersonation: fall back to the
				// admin's own identity rather than a broken overlay.
				return state, nil
			}
			return Anonymous, fmt.Errorf("resolving impersonated principal: %w", err)
		}
		state.Impersonated = impersonated
	}

	return state, nil
}

// LoginAs transitions Authenticated -> Impersonating. The caller must be
// originally an admin, not already impersonating, and must present a live
// single-use login token. Every failure is common.ErrForbidden: the surface
// never reveals whether a token existed, expired, or was already spent.
// Token consumption and overlay set happen in one transaction, and the
// overlay set is a compare-and-swap, so a concurrently duplicated request
// cannot double-consume or double-impersonate.
func (m *Manager) LoginAs(ctx context.Context, sessionToken, loginToken string) error {
	lock := m.lockFor(sessionToken)
	lock.Lock()
	defer lock.Unlock()

	state, record, err := m.resolveRecord(ctx, sessionToken)
	if err != nil {
		return err
	}
	if record == nil || !state.IsLoggedIn() {
		return common.ErrForbidden
	}

	actorID := state.Authenticated.ID

	if !state.IsOriginallyAdmin() {
		m.recordEvent(ctx, models.EventLoginAsDenied, &actorID, nil, "not admin")
		return common.ErrForbidden
	}
	if record.Impersonating() {
		m.recordEvent(ctx, models.EventLoginAsDenied, &actorID, nil, "nested impersonation")
		return common.ErrForbidden
	}

	var targetID string
	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var consumeErr error
		targetID, consumeErr = m.repos.LoginTokens(tx).Consume(ctx, cryptox.HashToken(loginToken))
		if consumeErr != nil {
			return consumeErr
		}

		if _, err := m.repos.Users(tx).GetByID(ctx, targetID); err != nil {
			return err
		}

		ok, err := m.repos.Sessions(tx).SetImpersonated(ctx, record.TokenHash, targetID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrForbidden
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrForbidden) {
			m.recordEvent(ctx, models.EventLoginAsDenied, &actorID, nil, "invalid token")
			return common.ErrForbidden
		}
		return common.ErrInternal
	}

	m.recordEvent(ctx, models.EventLoginAs, &actorID, &targetID, "")
	return nil
}

// RevertLoginAs transitions Impersonating -> Authenticated by clearing the
// overlay. Calling it when not impersonating (or with no session at all) is
// a no-op, so duplicated revert requests are safe.
func (m *Manager) RevertLoginAs(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	lock := m.lockFor(sessionToken)
	lock.Lock()
	defer lock.Unlock()

	hash := cryptox.HashToken(sessionToken)

	record, err := m.repos.Sessions(m.db).FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return common.ErrInternal
	}
	if !record.Impersonating() {
		return nil
	}

	if err := m.repos.Sessions(m.db).ClearImpersonated(ctx, hash); err != nil {
		return common.ErrInternal
	}

	m.recordEvent(ctx, models.EventRevertLoginAs, &record.AuthenticatedUserID, record.ImpersonatedUserID, "")
	return nil
}

// MintLoginToken creates a single-use login-as token for target. Only an
// originally-admin caller may mint; the plaintext value is returned exactly
// once and only its digest is stored.
func (m *Manager) MintLoginToken(ctx context.Context, actor *State, targetUserID string) (string, error) {
	if !actor.IsOriginallyAdmin() {
		return "", common.ErrForbidden
	}

	if _, err := m.repos.Users(m.db).GetByID(ctx, targetUserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrNotFound
		}
		return "", common.ErrInternal
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return "", common.ErrInternal
	}

	_, err = m.repos.LoginTokens(m.db).Create(ctx, targetUserID, actor.Authenticated.ID,
		cryptox.HashToken(token), m.config.LoginTokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}

	return token, nil
}

// PurgeExpired deletes expired session rows. Expired sessions are already
// unreachable; this keeps the table from growing unbounded.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repos.Sessions(m.db).DeleteExpired(ctx)
}

func (m *Manager) resolveRecord(ctx context.Context, token string) (*State, *models.Session, error) {
	if token == "" {
		return Anonymous, nil, nil
	}

	record, err := m.repos.Sessions(m.db).FindByTokenHash(ctx, cryptox.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Anonymous, nil, nil
		}
		return Anonymous, nil, common.ErrInternal
	}
	if record.Expired(time.Now()) {
		return Anonymous, nil, nil
	}

	authenticated, err := m.repos.Users(m.db).GetByID(ctx, record.AuthenticatedUserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Anonymous, nil, nil
		}
		return Anonymous, nil, common.ErrInternal
	}

	return &State{Authenticated: authenticated}, record, nil
}

func (m *Manager) recordEvent(ctx context.Context, kind string, actorID, targetID *string, detail string) {
	event := &models.SecurityEvent{Kind: kind, ActorUserID: actorID, TargetUserID: targetID, Detail: detail}
	if err := m.repos.SecurityEvents(m.db).Record(ctx, event); err != nil {
		m.logger.Warn(ctx, "failed to record security event", "kind", kind, "error", err)
	}
}

func (m *Manager) lockFor(token string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return &m.locks[h.Sum32()%lockStripes]
}
