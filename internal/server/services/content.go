package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/repositories/repomanager"
)

// ContentService is the thin CRUD layer for prompts and bookmarks. Every
// operation is scoped to the owner (the effective principal of the request),
// so tenants cannot see or delete each other's rows.
type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager) *ContentService {
	return &ContentService{db: db, repomanager: m}
}

func (s *ContentService) ListPrompts(ctx context.Context, ownerID string) ([]*models.Prompt, error) {
	result, err := s.repomanager.Prompts(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing prompts: %w", err)
	}
	return result, nil
}

func (s *ContentService) CreatePrompt(ctx context.Context, ownerID, title, body string) (*models.Prompt, error) {
	prompt := &models.Prompt{OwnerID: ownerID, Title: title, Body: body}
	prompt, err := s.repomanager.Prompts(s.db).Create(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("error creating prompt: %w", err)
	}
	return prompt, nil
}

func (s *ContentService) DeletePrompt(ctx context.Context, ownerID, id string) error {
	return s.repomanager.Prompts(s.db).Delete(ctx, ownerID, id)
}

func (s *ContentService) ListBookmarks(ctx context.Context, ownerID string) ([]*models.Bookmark, error) {
	result, err := s.repomanager.Bookmarks(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing bookmarks: %w", err)
	}
	return result, nil
}

func (s *ContentService) CreateBookmark(ctx context.Context, ownerID, title, url string) (*models.Bookmark, error) {
	bookmark := &models.Bookmark{OwnerID: ownerID, Title: title, URL: url}
	bookmark, err := s.repomanager.Bookmarks(s.db).Create(ctx, bookmark)
	if err != nil {
		return nil, fmt.Errorf("error creating bookmark: %w", err)
	}
	return bookmark, nil
}

func (s *ContentService) DeleteBookmark(ctx context.Context, ownerID, id string) error {
	return s.repomanager.Bookmarks(s.db).Delete(ctx, ownerID, id)
}
