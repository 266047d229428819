// Package web is the route dispatcher: it maps URL paths to the closed
// route enumeration, consults the access policy engine before every
// dispatch, and serves the page and JSON handlers.
package web

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/mvoronin/promptstash/internal/logging"
	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/policy"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
	"github.com/mvoronin/promptstash/internal/server/services"
	"github.com/mvoronin/promptstash/internal/server/session"
)

// sessionCookieName carries the opaque session token.
const sessionCookieName = "ps_session"

// stateResolver resolves a session token into a request State;
// *session.Manager satisfies it.
type stateResolver interface {
	Resolve(ctx context.Context, token string) (*session.State, error)
}

// settingsSource reads the application settings once per request.
type settingsSource interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type Server struct {
	address    string
	logger     logging.Logger
	sessions   *session.Manager
	resolver   stateResolver
	settings   settingsSource
	engine     *policy.Engine
	users      *services.UserService
	content    *services.ContentService
	documents  *services.DocumentService
	db         *sql.DB
	repos      repomanager.RepositoryManager
	sessionTTL time.Duration
	secretKey  []byte
}

// settingsStore adapts the settings repository to settingsSource.
type settingsStore struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func (s *settingsStore) Get(ctx context.Context) (*models.Settings, error) {
	return s.repos.Settings(s.db).Get(ctx)
}

func NewServer(address string, logger logging.Logger, db *sql.DB, repos repomanager.RepositoryManager,
	sessions *session.Manager, engine *policy.Engine,
	users *services.UserService, content *services.ContentService, documents *services.DocumentService,
	sessionTTL time.Duration, secretKey string) *Server {
	return &Server{
		address:    address,
		logger:     logger.With("module", "web"),
		sessions:   sessions,
		resolver:   sessions,
		settings:   &settingsStore{db: db, repos: repos},
		engine:     engine,
		users:      users,
		content:    content,
		documents:  documents,
		db:         db,
		repos:      repos,
		sessionTTL: sessionTTL,
		secretKey:  []byte(secretKey),
	}
}

// routes guards every dispatchable path with the policy engine. Each path is
// bound to its route enum value here and nowhere else.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(policy.RouteLanding.Path(), s.guard(policy.RouteLanding, s.handleLanding))
	mux.HandleFunc(policy.RouteLogin.Path(), s.guard(policy.RouteLogin, s.handleLogin))
	mux.HandleFunc(policy.RouteLogout.Path(), s.guard(policy.RouteLogout, s.handleLogout))
	mux.HandleFunc(policy.RouteRegister.Path(), s.guard(policy.RouteRegister, s.handleRegister))
	mux.HandleFunc(policy.RouteCheckout.Path(), s.guard(policy.RouteCheckout, s.handleCheckout))
	mux.HandleFunc(policy.RouteLoginAs.Path(), s.guard(policy.RouteLoginAs, s.handleLoginAs))
	mux.HandleFunc(policy.RouteRevertLoginAs.Path(), s.guard(policy.RouteRevertLoginAs, s.handleRevertLoginAs))
	mux.HandleFunc(policy.RouteDashboard.Path(), s.guard(policy.RouteDashboard, s.handleDashboard))
	mux.HandleFunc(policy.RoutePrompts.Path(), s.guard(policy.RoutePrompts, s.handlePrompts))
	mux.HandleFunc(policy.RouteBookmarks.Path(), s.guard(policy.RouteBookmarks, s.handleBookmarks))
	mux.HandleFunc(policy.RouteDocuments.Path(), s.guard(policy.RouteDocuments, s.handleDocuments))
	mux.HandleFunc(policy.RouteProfile.Path(), s.guard(policy.RouteProfile, s.handleProfile))
	mux.HandleFunc(policy.RouteUpgrade.Path(), s.guard(policy.RouteUpgrade, s.handleUpgrade))
	mux.HandleFunc(policy.RouteAdmin.Path(), s.guard(policy.RouteAdmin, s.handleAdmin))
	mux.HandleFunc(policy.RouteUsers.Path(), s.guard(policy.RouteUsers, s.handleUsers))
	mux.HandleFunc(policy.RouteAdminBackup.Path(), s.guard(policy.RouteAdminBackup, s.handleBackup))
	mux.HandleFunc(policy.RouteSecurityLogs.Path(), s.guard(policy.RouteSecurityLogs, s.handleSecurityLogs))

	// The API prefix shares one route classification; handlers do their own
	// bearer-token check.
	mux.HandleFunc("/api/token", s.guard(policy.RouteAPI, s.handleAPIToken))
	mux.HandleFunc("/api/prompts", s.guard(policy.RouteAPI, s.handleAPIPrompts))

	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
