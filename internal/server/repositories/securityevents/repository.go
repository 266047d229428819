package securityevents

import (
	"context"

	"github.com/mvoronin/promptstash/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, event *models.SecurityEvent) error
	List(ctx context.Context, limit int) ([]*models.SecurityEvent, error)
}
