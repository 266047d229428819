package session

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/cryptox"
	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/logging"
	"github.com/mvoronin/promptstash/internal/server/config"
	"github.com/mvoronin/promptstash/internal/server/models"
	bookmarksrepo "github.com/mvoronin/promptstash/internal/server/repositories/bookmarks"
	documentsrepo "github.com/mvoronin/promptstash/internal/server/repositories/documents"
	logintokensrepo "github.com/mvoronin/promptstash/internal/server/repositories/logintokens"
	promptsrepo "github.com/mvoronin/promptstash/internal/server/repositories/prompts"
	securityeventsrepo "github.com/mvoronin/promptstash/internal/server/repositories/securityevents"
	sessionsrepo "github.com/mvoronin/promptstash/internal/server/repositories/sessions"
	settingsrepo "github.com/mvoronin/promptstash/internal/server/repositories/settings"
	usersrepo "github.com/mvoronin/promptstash/internal/server/repositories/users"
)

// --- in-memory fakes; the manager's transaction helper still runs against a
// real (sqlite) database handle, the fakes just ignore the tx. ---

type fakeUsersRepo struct {
	byID map[string]*models.User
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) { return nil, nil }

func (f *fakeUsersRepo) UpdateMembership(ctx context.Context, id, tierID string, expiresAt *time.Time) error {
	return nil
}

type fakeSessionsRepo struct {
	rows map[string]*models.Session // keyed by token hash
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	s.ID = s.TokenHash
	s.CreatedAt = time.Now()
	f.rows[s.TokenHash] = s
	return s, nil
}

func (f *fakeSessionsRepo) FindByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	s, ok := f.rows[hash]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionsRepo) SetImpersonated(ctx context.Context, hash, userID string) (bool, error) {
	s, ok := f.rows[hash]
	if !ok || s.ImpersonatedUserID != nil || s.Expired(time.Now()) {
		return false, nil
	}
	s.ImpersonatedUserID = &userID
	return true, nil
}

func (f *fakeSessionsRepo) ClearImpersonated(ctx context.Context, hash string) error {
	if s, ok := f.rows[hash]; ok {
		s.ImpersonatedUserID = nil
	}
	return nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, hash string) error {
	delete(f.rows, hash)
	return nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

type fakeLoginTokensRepo struct {
	rows map[string]*models.LoginToken // keyed by token hash
}

func (f *fakeLoginTokensRepo) Create(ctx context.Context, targetUserID, mintedByUserID, tokenHash string, validity time.Duration) (*models.LoginToken, error) {
	t := &models.LoginToken{
		TokenHash:      tokenHash,
		TargetUserID:   targetUserID,
		MintedByUserID: mintedByUserID,
		ExpiresAt:      time.Now().Add(validity),
	}
	f.rows[tokenHash] = t
	return t, nil
}

func (f *fakeLoginTokensRepo) Consume(ctx context.Context, tokenHash string) (string, error) {
	t, ok := f.rows[tokenHash]
	if !ok || t.ConsumedAt != nil || t.ExpiresAt.Before(time.Now()) {
		return "", common.ErrNotFound
	}
	now := time.Now()
	t.ConsumedAt = &now
	return t.TargetUserID, nil
}

type fakeEventsRepo struct {
	events []*models.SecurityEvent
}

func (f *fakeEventsRepo) Record(ctx context.Context, e *models.SecurityEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventsRepo) List(ctx context.Context, limit int) ([]*models.SecurityEvent, error) {
	return f.events, nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	sessions *fakeSessionsRepo
	tokens   *fakeLoginTokensRepo
	events   *fakeEventsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                   { return m.users }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository             { return m.sessions }
func (m *fakeRepoManager) LoginTokens(db dbx.DBTX) logintokensrepo.Repository       { return m.tokens }
func (m *fakeRepoManager) SecurityEvents(db dbx.DBTX) securityeventsrepo.Repository { return m.events }

func (m *fakeRepoManager) Settings(db dbx.DBTX) settingsrepo.Repository    { return nil }
func (m *fakeRepoManager) Prompts(db dbx.DBTX) promptsrepo.Repository      { return nil }
func (m *fakeRepoManager) Bookmarks(db dbx.DBTX) bookmarksrepo.Repository  { return nil }
func (m *fakeRepoManager) Documents(db dbx.DBTX) documentsrepo.Repository  { return nil }

// --- helpers ---

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:session_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testManager(t *testing.T) (*Manager, *fakeRepoManager) {
	t.Helper()
	rm := &fakeRepoManager{
		users:    &fakeUsersRepo{byID: map[string]*models.User{}},
		sessions: &fakeSessionsRepo{rows: map[string]*models.Session{}},
		tokens:   &fakeLoginTokensRepo{rows: map[string]*models.LoginToken{}},
		events:   &fakeEventsRepo{},
	}
	cfg := &config.Config{
		SessionValidityDuration:    time.Hour,
		LoginTokenValidityDuration: 15 * time.Minute,
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return NewManager(testDB(t), rm, cfg, logger), rm
}

func addUser(t *testing.T, rm *fakeRepoManager, id, email string, role models.Role, password string) *models.User {
	t.Helper()
	hash, err := cryptox.HashPassword([]byte(password))
	require.NoError(t, err)
	u := &models.User{ID: id, Email: email, Role: role, PasswordHash: hash, TierID: "pro"}
	rm.users.byID[id] = u
	return u
}

// overlayInvariant asserts that every session with an impersonation overlay
// belongs to an admin.
func overlayInvariant(t *testing.T, rm *fakeRepoManager) {
	t.Helper()
	for _, s := range rm.sessions.rows {
		if s.ImpersonatedUserID == nil {
			continue
		}
		owner, ok := rm.users.byID[s.AuthenticatedUserID]
		require.True(t, ok, "overlay set on session with unknown owner")
		require.Equal(t, models.RoleAdmin, owner.Role,
			"impersonated_user_id set while authenticated principal is not admin")
	}
}

// --- tests ---

func TestLogin_Success(t *testing.T) {
	m, rm := testManager(t)
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	ctx := context.Background()

	token, err := m.Login(ctx, "user@example.com", []byte("pw"))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	state, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, state.IsLoggedIn())
	require.False(t, state.Impersonating())
	require.Equal(t, "u1", state.Effective().ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	m, rm := testManager(t)
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	ctx := context.Background()

	_, err := m.Login(ctx, "user@example.com", []byte("wrong"))
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	// Unknown identifier yields the same generic error.
	_, err = m.Login(ctx, "nobody@example.com", []byte("pw"))
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestResolve_AnonymousCases(t *testing.T) {
	m, rm := testManager(t)
	ctx := context.Background()

	state, err := m.Resolve(ctx, "")
	require.NoError(t, err)
	require.False(t, state.IsLoggedIn())
	require.True(t, state.Effective().IsAnonymous())

	state, err = m.Resolve(ctx, "unknown-token")
	require.NoError(t, err)
	require.False(t, state.IsLoggedIn())

	// Expired session resolves to anonymous, indistinguishable from absence.
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	rm.sessions.rows[cryptox.HashToken("stale")] = &models.Session{
		TokenHash:           cryptox.HashToken("stale"),
		AuthenticatedUserID: "u1",
		ExpiresAt:           time.Now().Add(-time.Minute),
	}
	state, err = m.Resolve(ctx, "stale")
	require.NoError(t, err)
	require.False(t, state.IsLoggedIn())
}

func TestLogout_Idempotent(t *testing.T) {
	m, rm := testManager(t)
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	ctx := context.Background()

	token, err := m.Login(ctx, "user@example.com", []byte("pw"))
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, token))
	require.NoError(t, m.Logout(ctx, token), "second logout must be a no-op")

	state, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	require.False(t, state.IsLoggedIn())
}

func loginAsSetup(t *testing.T) (*Manager, *fakeRepoManager, string, string) {
	t.Helper()
	m, rm := testManager(t)
	addUser(t, rm, "a1", "admin@example.com", models.RoleAdmin, "adminpw")
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	ctx := context.Background()

	adminToken, err := m.Login(ctx, "admin@example.com", []byte("adminpw"))
	require.NoError(t, err)

	state, err := m.Resolve(ctx, adminToken)
	require.NoError(t, err)

	loginToken, err := m.MintLoginToken(ctx, state, "u1")
	require.NoError(t, err)

	return m, rm, adminToken, loginToken
}

func TestLoginAs_ThenRevertRestoresEffective(t *testing.T) {
	m, rm, adminToken, loginToken := loginAsSetup(t)
	ctx := context.Background()

	require.NoError(t, m.LoginAs(ctx, adminToken, loginToken))
	overlayInvariant(t, rm)

	state, err := m.Resolve(ctx, adminToken)
	require.NoError(t, err)
	require.True(t, state.Impersonating())
	require.Equal(t, "u1", state.Effective().ID)
	require.False(t, state.IsAdmin(), "effective principal is the regular user")
	require.True(t, state.IsOriginallyAdmin(), "original identity survives the overlay")
	require.True(t, state.IsLoggedIn())

	require.NoError(t, m.RevertLoginAs(ctx, adminToken))

	state, err = m.Resolve(ctx, adminToken)
	require.NoError(t, err)
	require.False(t, state.Impersonating())
	require.Equal(t, "a1", state.Effective().ID)
	require.True(t, state.IsAdmin())
}

func TestLoginAs_NonAdminForbidden(t *testing.T) {
	m, rm, _, _ := loginAsSetup(t)
	ctx := context.Background()

	userToken, err := m.Login(ctx, "user@example.com", []byte("pw"))
	require.NoError(t, err)

	userState, err := m.Resolve(ctx, userToken)
	require.NoError(t, err)

	// A regular user cannot mint.
	_, err = m.MintLoginToken(ctx, userState, "a1")
	require.ErrorIs(t, err, common.ErrForbidden)

	// Nor impersonate, even with a valid token minted by an admin.
	adminState, err := m.Resolve(ctx, mustLoginAdmin(t, m))
	require.NoError(t, err)
	token, err := m.MintLoginToken(ctx, adminState, "a1")
	require.NoError(t, err)

	err = m.LoginAs(ctx, userToken, token)
	require.ErrorIs(t, err, common.ErrForbidden)
	overlayInvariant(t, rm)

	state, err := m.Resolve(ctx, userToken)
	require.NoError(t, err)
	require.False(t, state.Impersonating(), "state must be unchanged after denial")
}

func mustLoginAdmin(t *testing.T, m *Manager) string {
	t.Helper()
	token, err := m.Login(context.Background(), "admin@example.com", []byte("adminpw"))
	require.NoError(t, err)
	return token
}

func TestLoginAs_NestedImpersonationForbidden(t *testing.T) {
	m, rm, adminToken, loginToken := loginAsSetup(t)
	ctx := context.Background()

	require.NoError(t, m.LoginAs(ctx, adminToken, loginToken))

	state, err := m.Resolve(ctx, adminToken)
	require.NoError(t, err)
	second, err := m.MintLoginToken(ctx, state, "u1")
	require.NoError(t, err)

	err = m.LoginAs(ctx, adminToken, second)
	require.ErrorIs(t, err, common.ErrForbidden)
	overlayInvariant(t, rm)

	state, err = m.Resolve(ctx, adminToken)
	require.NoError(t, err)
	require.True(t, state.Impersonating(), "original overlay must be intact")
	require.Equal(t, "u1", state.Effective().ID)
}

func TestLoginAs_TokenSingleUse(t *testing.T) {
	m, _, adminToken, loginToken := loginAsSetup(t)
	ctx := context.Background()

	require.NoError(t, m.LoginAs(ctx, adminToken, loginToken))
	require.NoError(t, m.RevertLoginAs(ctx, adminToken))

	err := m.LoginAs(ctx, adminToken, loginToken)
	require.ErrorIs(t, err, common.ErrForbidden, "a consumed token must not work twice")
}

func TestLoginAs_ExpiredTokenForbidden(t *testing.T) {
	m, rm, adminToken, loginToken := loginAsSetup(t)
	ctx := context.Background()

	rm.tokens.rows[cryptox.HashToken(loginToken)].ExpiresAt = time.Now().Add(-time.Second)

	err := m.LoginAs(ctx, adminToken, loginToken)
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestRevertLoginAs_NoopWhenNotImpersonating(t *testing.T) {
	m, rm, adminToken, _ := loginAsSetup(t)
	ctx := context.Background()

	require.NoError(t, m.RevertLoginAs(ctx, adminToken), "revert without overlay is a no-op")
	require.NoError(t, m.RevertLoginAs(ctx, "no-such-session"))
	overlayInvariant(t, rm)
}

// TestOverlayInvariant_RandomTransitions drives the state machine through
// random transition sequences and checks after every step that an overlay
// only ever exists on an admin-owned session.
func TestOverlayInvariant_RandomTransitions(t *testing.T) {
	m, rm := testManager(t)
	addUser(t, rm, "a1", "admin@example.com", models.RoleAdmin, "adminpw")
	addUser(t, rm, "u1", "user@example.com", models.RoleUser, "pw")
	ctx := context.Background()

	rng := rand.New(rand.NewSource(1))
	creds := map[string]string{"admin@example.com": "adminpw", "user@example.com": "pw"}

	var tokens []string
	for i := 0; i < 400; i++ {
		switch rng.Intn(5) {
		case 0: // login
			for email, pw := range creds {
				if rng.Intn(2) == 0 {
					token, err := m.Login(ctx, email, []byte(pw))
					require.NoError(t, err)
					tokens = append(tokens, token)
					break
				}
			}
		case 1: // logout of a random known token
			if len(tokens) > 0 {
				require.NoError(t, m.Logout(ctx, tokens[rng.Intn(len(tokens))]))
			}
		case 2: // loginAs with a freshly minted token, whoever the caller is
			if len(tokens) > 0 {
				caller := tokens[rng.Intn(len(tokens))]
				state, err := m.Resolve(ctx, caller)
				require.NoError(t, err)
				loginToken, err := m.MintLoginToken(ctx, state, "u1")
				if err == nil {
					_ = m.LoginAs(ctx, caller, loginToken)
				}
			}
		case 3: // revert
			if len(tokens) > 0 {
				require.NoError(t, m.RevertLoginAs(ctx, tokens[rng.Intn(len(tokens))]))
			}
		case 4: // resolve is read-only
			if len(tokens) > 0 {
				_, err := m.Resolve(ctx, tokens[rng.Intn(len(tokens))])
				require.NoError(t, err)
			}
		}
		overlayInvariant(t, rm)
	}
}
