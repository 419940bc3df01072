package auth

import (
	"context"

	"github.com/dmitrijs2005/gideon/internal/server/models"
)

type userKey struct{}

// WithUser stores the resolved user in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}
