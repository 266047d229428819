// Package admincli is the operator's maintenance tool. It talks to the
// database directly, bypassing the web surface: bootstrapping the first
// admin account, minting login-as tokens, and toggling maintenance mode all
// have to work when the web tier is down or locked out.
package admincli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/cryptox"
	"github.com/mvoronin/promptstash/internal/server/config"
	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/policy"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
)

type App struct {
	config *config.Config
	db     *sql.DB
	repos  repomanager.RepositoryManager
	out    io.Writer
}

func NewApp(cfg *config.Config, out io.Writer) (*App, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return &App{config: cfg, db: db, repos: repomanager.NewPostgresRepositoryManager(), out: out}, nil
}

func (app *App) Close() error {
	return app.db.Close()
}

// Run dispatches one subcommand:
//
//	create-admin <email>    create an admin account, prompting for a password
//	mint-token <email>      mint a single-use login-as token for a user
//	maintenance on|off      toggle maintenance mode
func (app *App) Run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: create-admin <email> | mint-token <email> | maintenance on|off")
	}

	switch args[0] {
	case "create-admin":
		if len(args) != 2 {
			return errors.New("usage: create-admin <email>")
		}
		return app.createAdmin(ctx, args[1])
	case "mint-token":
		if len(args) != 2 {
			return errors.New("usage: mint-token <email>")
		}
		return app.mintToken(ctx, args[1])
	case "maintenance":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return errors.New("usage: maintenance on|off")
		}
		return app.setMaintenance(ctx, args[1] == "on")
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// createAdmin bootstraps an admin principal. Admins carry no membership
// expiry, so they never hit the lapsed-membership redirect.
func (app *App) createAdmin(ctx context.Context, email string) error {
	password, err := GetPassword(app.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		TierID:       "admin",
	}
	user, err = app.repos.Users(app.db).Create(ctx, user)
	if err != nil {
		return fmt.Errorf("error creating admin: %w", err)
	}

	fmt.Fprintf(app.out, "admin created: %s (%s)\n", user.Email, user.ID)
	return nil
}

// mintToken creates a single-use login-as token for the named user and
// prints the plaintext once. The operator has no session, so the token's
// minted-by field records the target itself.
func (app *App) mintToken(ctx context.Context, email string) error {
	user, err := app.repos.Users(app.db).GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("error looking up user: %w", err)
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return err
	}

	_, err = app.repos.LoginTokens(app.db).Create(ctx, user.ID, user.ID,
		cryptox.HashToken(token), app.config.LoginTokenValidityDuration)
	if err != nil {
		return fmt.Errorf("error minting token: %w", err)
	}

	fmt.Fprintf(app.out, "login token for %s (valid %s, single use):\n%s?token=%s\n",
		user.Email, app.config.LoginTokenValidityDuration, policy.RouteLoginAs.Path(), token)
	return nil
}

func (app *App) setMaintenance(ctx context.Context, on bool) error {
	repo := app.repos.Settings(app.db)

	settings, err := repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("error reading settings: %w", err)
	}

	settings.MaintenanceMode = on
	if err := repo.Update(ctx, settings); err != nil {
		return fmt.Errorf("error updating settings: %w", err)
	}

	fmt.Fprintf(app.out, "maintenance mode: %v\n", on)
	return nil
}
