package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/dmitrijs2005/gideon/internal/server/services"
	"github.com/stretchr/testify/require"
)

const goodToken = "good-token"

var testUser = &models.User{
	ID:          "11111111-1111-1111-1111-111111111111",
	Username:    "alice",
	Email:       "alice@example.com",
	Active:      true,
	Preferences: map[string]any{"theme": "dark"},
	CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

// fakeGateway resolves goodToken to testUser and delegates the rest to the
// optional func fields.
type fakeGateway struct {
	register    func(username, email, password string) (*models.User, error)
	login       func(username, password string) (*services.Token, error)
	resolveErr  error
	refresh     func(token string) (*services.Token, error)
	update      func(upd models.UserUpdate) (*models.User, error)
	updatePrefs func(prefs map[string]any) (map[string]any, error)
	issue       func(userID, provider, name, plaintext string) (*services.IssuedSecret, error)
	list        func(userID string) ([]models.APIKey, error)
	revoke      func(userID, secretID string) error
}

func (g *fakeGateway) Register(_ context.Context, username, email, password string) (*models.User, error) {
	return g.register(username, email, password)
}

func (g *fakeGateway) Login(_ context.Context, username, password string) (*services.Token, error) {
	return g.login(username, password)
}

func (g *fakeGateway) ResolveIdentity(_ context.Context, token string) (*models.User, error) {
	if g.resolveErr != nil {
		return nil, g.resolveErr
	}
	if token != goodToken {
		return nil, common.ErrTokenSignature
	}
	return testUser, nil
}

func (g *fakeGateway) RefreshToken(_ context.Context, token string) (*services.Token, error) {
	return g.refresh(token)
}

func (g *fakeGateway) UpdateProfile(_ context.Context, _ *models.User, upd models.UserUpdate) (*models.User, error) {
	return g.update(upd)
}

func (g *fakeGateway) UpdatePreferences(_ context.Context, _ *models.User, prefs map[string]any) (map[string]any, error) {
	return g.updatePrefs(prefs)
}

func (g *fakeGateway) IssueSecret(_ context.Context, userID, provider, name, plaintext string) (*services.IssuedSecret, error) {
	return g.issue(userID, provider, name, plaintext)
}

func (g *fakeGateway) ListSecrets(_ context.Context, userID string) ([]models.APIKey, error) {
	return g.list(userID)
}

func (g *fakeGateway) RevokeSecret(_ context.Context, userID, secretID string) error {
	return g.revoke(userID, secretID)
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger, _, err := logging.New(logging.FormatText, io.Discard)
	require.NoError(t, err)
	return logger
}

func newTestRouter(t *testing.T, gw Gateway) http.Handler {
	t.Helper()
	return NewRouter(RouterDeps{Gateway: gw, Logger: testLogger(t)})
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
