// Package settings provides access to the single application-settings row.
package settings

import (
	"context"
	"fmt"

	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT maintenance_mode, registration_allowed
		FROM settings
		WHERE id = 1
	`
	s := &models.Settings{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.MaintenanceMode, &s.RegistrationAllowed); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s *models.Settings) error {
	query := `
		UPDATE settings SET maintenance_mode = $1, registration_allowed = $2
		WHERE id = 1
	`
	if _, err := r.db.ExecContext(ctx, query, s.MaintenanceMode, s.RegistrationAllowed); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
