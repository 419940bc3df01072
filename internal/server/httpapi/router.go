// Package httpapi is the HTTP surface over the auth gateway: registration,
// login, the current user's profile and preferences, and API key management.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/dmitrijs2005/gideon/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Gateway is the part of services.AuthGateway the handlers use.
type Gateway interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.Token, error)
	ResolveIdentity(ctx context.Context, token string) (*models.User, error)
	RefreshToken(ctx context.Context, token string) (*services.Token, error)
	UpdateProfile(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error)
	UpdatePreferences(ctx context.Context, user *models.User, prefs map[string]any) (map[string]any, error)
	IssueSecret(ctx context.Context, userID, provider, name, plaintext string) (*services.IssuedSecret, error)
	ListSecrets(ctx context.Context, userID string) ([]models.APIKey, error)
	RevokeSecret(ctx context.Context, userID, secretID string) error
}

var _ Gateway = (*services.AuthGateway)(nil)

// RouterDeps collects what NewRouter needs. Metrics and MetricsHandler are
// optional.
type RouterDeps struct {
	Gateway        Gateway
	Logger         logging.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
}

// NewRouter builds the chi router.
//
//	POST   /api/auth/register
//	POST   /api/auth/login          (form: username, password)
//	POST   /api/auth/login/json
//	POST   /api/auth/refresh-token  (bearer)
//	GET    /api/auth/me             (bearer)
//	PUT    /api/auth/me             (bearer)
//	GET    /api/users/me            (bearer)
//	PUT    /api/users/me            (bearer)
//	GET    /api/users/preferences   (bearer)
//	PUT    /api/users/preferences   (bearer)
//	POST   /api/users/api-keys      (bearer)
//	GET    /api/users/api-keys      (bearer)
//	DELETE /api/users/api-keys/{id} (bearer)
//	GET    /metrics
func NewRouter(deps RouterDeps) http.Handler {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	logger := deps.Logger.With("module", "http")
	h := &handler{gw: deps.Gateway, logger: logger}

	r := chi.NewRouter()
	r.Use(recoverer(logger))
	r.Use(accessLog(logger, rec))

	requireUser := bearerAuth(deps.Gateway, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.loginForm)
		r.Post("/login/json", h.loginJSON)
		r.Post("/refresh-token", h.refreshToken)

		r.With(requireUser).Get("/me", h.me)
		r.With(requireUser).Put("/me", h.updateMe)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/me", h.me)
		r.Put("/me", h.updateMe)
		r.Get("/preferences", h.preferences)
		r.Put("/preferences", h.updatePreferences)

		r.Route("/api-keys", func(r chi.Router) {
			r.Post("/", h.createAPIKey)
			r.Get("/", h.listAPIKeys)
			r.Delete("/{id}", h.deleteAPIKey)
		})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
