package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/server/migrations"
	"github.com/mvoronin/promptstash/internal/server/repositories/bookmarks"
	"github.com/mvoronin/promptstash/internal/server/repositories/documents"
	"github.com/mvoronin/promptstash/internal/server/repositories/logintokens"
	"github.com/mvoronin/promptstash/internal/server/repositories/prompts"
	"github.com/mvoronin/promptstash/internal/server/repositories/securityevents"
	"github.com/mvoronin/promptstash/internal/server/repositories/sessions"
	"github.com/mvoronin/promptstash/internal/server/repositories/settings"
	"github.com/mvoronin/promptstash/internal/server/repositories/users"
)

// PostgresRepositoryManager returns pgx-backed repositories bound to the
// given DBTX.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) LoginTokens(db dbx.DBTX) logintokens.Repository {
	return logintokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Settings(db dbx.DBTX) settings.Repository {
	return settings.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) SecurityEvents(db dbx.DBTX) securityevents.Repository {
	return securityevents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Prompts(db dbx.DBTX) prompts.Repository {
	return prompts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Bookmarks(db dbx.DBTX) bookmarks.Repository {
	return bookmarks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}
