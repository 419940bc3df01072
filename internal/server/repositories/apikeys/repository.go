package apikeys

import (
	"context"

	"github.com/dmitrijs2005/gideon/internal/server/models"
)

// Repository persists encrypted API keys. Every lookup is scoped by the
// owning user: a key that belongs to someone else is common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	ListActive(ctx context.Context, userID string) ([]models.APIKey, error)
	Get(ctx context.Context, userID, id string) (*models.APIKey, error)
	Deactivate(ctx context.Context, userID, id string) error
}
