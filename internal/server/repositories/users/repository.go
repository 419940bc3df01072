package users

import (
	"context"

	"github.com/dmitrijs2005/gideon/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrorNotFound for
// missing rows; uniqueness conflicts come back as *common.DuplicateError.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
}
