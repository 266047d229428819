package documents

import (
	"context"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, document *models.Document) (*models.Document, error)
	Get(ctx context.Context, ownerID, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
}
