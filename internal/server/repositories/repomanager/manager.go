// Package repomanager wires concrete repositories to database handles.
// Services ask the manager for a repository bound to either the pooled
// *sql.DB or an in-flight transaction, which keeps transactional flows
// (e.g. login-as token consumption) on a single connection.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/server/repositories/bookmarks"
	"github.com/mvoronin/promptstash/internal/server/repositories/documents"
	"github.com/mvoronin/promptstash/internal/server/repositories/logintokens"
	"github.com/mvoronin/promptstash/internal/server/repositories/prompts"
	"github.com/mvoronin/promptstash/internal/server/repositories/securityevents"
	"github.com/mvoronin/promptstash/internal/server/repositories/sessions"
	"github.com/mvoronin/promptstash/internal/server/repositories/settings"
	"github.com/mvoronin/promptstash/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error

	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	LoginTokens(db dbx.DBTX) logintokens.Repository
	Settings(db dbx.DBTX) settings.Repository
	SecurityEvents(db dbx.DBTX) securityevents.Repository
	Prompts(db dbx.DBTX) prompts.Repository
	Bookmarks(db dbx.DBTX) bookmarks.Repository
	Documents(db dbx.DBTX) documents.Repository
}
