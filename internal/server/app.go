// Package server initializes and runs the application: it opens the
// database, runs migrations, wires the session manager, policy engine and
// services together, and starts the HTTP server with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mvoronin/promptstash/internal/logging"
	"github.com/mvoronin/promptstash/internal/server/config"
	"github.com/mvoronin/promptstash/internal/server/policy"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
	"github.com/mvoronin/promptstash/internal/server/services"
	"github.com/mvoronin/promptstash/internal/server/session"
	"github.com/mvoronin/promptstash/internal/server/web"
)

const sessionPurgeInterval = time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *session.Manager
	web      *web.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	sessions := session.NewManager(db, repos, cfg, logger)
	engine := policy.NewEngine(cfg.LapsedAllowedRoutes)

	userService := services.NewUserService(db, repos, cfg)
	contentService := services.NewContentService(db, repos)
	documentService := services.NewDocumentService(db, repos, cfg)

	webServer := web.NewServer(cfg.EndpointAddrHTTP, logger, db, repos,
		sessions, engine, userService, contentService, documentService,
		cfg.SessionValidityDuration, cfg.SecretKey)

	return &App{config: cfg, logger: logger, db: db, sessions: sessions, web: webServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.web.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSessionJanitor(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}

func (app *App) runSessionJanitor(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sessions.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired sessions", "count", n)
			}
		}
	}
}
