package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/dbx"
	"github.com/mvoronin/promptstash/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, document *models.Document) (*models.Document, error) {
	query := `
		INSERT INTO documents (owner_id, title, storage_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		document.OwnerID, document.Title, document.StorageKey, document.ContentType, document.SizeBytes,
	).Scan(&document.ID, &document.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return document, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	query := `
		SELECT id, owner_id, title, storage_key, content_type, size_bytes, created_at
		FROM documents
		WHERE owner_id = $1 AND id = $2
	`
	d := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, ownerID, id).Scan(
		&d.ID, &d.OwnerID, &d.Title, &d.StorageKey, &d.ContentType, &d.SizeBytes, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	query := `
		SELECT id, owner_id, title, storage_key, content_type, size_bytes, created_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d := &models.Document{}
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.StorageKey, &d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
