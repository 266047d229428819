package logintokens

import (
	"context"
	"time"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, targetUserID, mintedByUserID, tokenHash string, validity time.Duration) (*models.LoginToken, error)

	// Consume atomically marks an unexpired, unconsumed token as consumed and
	// returns its target user id. A missing, expired, or already-consumed
	// token yields common.ErrNotFound; the caller decides how much to reveal.
	Consume(ctx context.Context, tokenHash string) (string, error)
}
