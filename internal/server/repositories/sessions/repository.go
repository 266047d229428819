package sessions

import (
	"context"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// SetImpersonated sets the login-as overlay. The update is conditional on
	// no overlay being present, so a concurrent duplicate request loses;
	// it reports whether the overlay was set.
	SetImpersonated(ctx context.Context, tokenHash, userID string) (bool, error)

	// ClearImpersonated removes the overlay. Clearing an absent overlay is
	// a no-op.
	ClearImpersonated(ctx context.Context, tokenHash string) error

	// Delete destroys the session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, tokenHash string) error

	DeleteExpired(ctx context.Context) (int64, error)
}
