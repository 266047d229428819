package prompts

import (
	"context"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Prompt, error)
	Delete(ctx context.Context, ownerID, id string) error
}
