package bookmarks

import (
	"context"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, bookmark *models.Bookmark) (*models.Bookmark, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Bookmark, error)
	Delete(ctx context.Context, ownerID, id string) error
}
