// Package logintokens provides a PostgreSQL-backed repository for single-use
// login-as tokens.
package logintokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, targetUserID, mintedByUserID, tokenHash string, validity time.Duration) (*models.LoginToken, error) {
	token := &models.LoginToken{
		TokenHash:      tokenHash,
		TargetUserID:   targetUserID,
		MintedByUserID: mintedByUserID,
		ExpiresAt:      time.Now().Add(validity),
	}
	query := `
		INSERT INTO login_tokens (token_hash, target_user_id, minted_by_user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		token.TokenHash, token.TargetUserID, token.MintedByUserID, token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// Consume is a single conditional UPDATE, so the check-and-mark is atomic:
// of two concurrent requests carrying the same token, exactly one gets the
// row back.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	query := `
		UPDATE login_tokens SET consumed_at = now()
		WHERE token_hash = $1
		  AND consumed_at IS NULL
		  AND expires_at > now()
		RETURNING target_user_id
	`
	var targetUserID string
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&targetUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return targetUserID, nil
}
