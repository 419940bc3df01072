package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/dmitrijs2005/gideon/internal/server/models"
)

// Token is what a successful login or refresh hands to the client.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// IssuedSecret is a freshly stored API key with a masked preview of the
// plaintext. The preview is not persisted.
type IssuedSecret struct {
	Key     *models.APIKey
	Preview string
}

// AuthGateway ties the credential store, password hasher, token service and
// secret cipher together for registration, login, identity resolution and
// API key handling. It holds no state of its own.
type AuthGateway struct {
	store   *CredentialStore
	hasher  *cryptox.PasswordHasher
	tokens  *auth.TokenService
	cipher  *cryptox.SecretCipher
	logger  logging.Logger
	metrics metrics.Recorder
}

func NewAuthGateway(store *CredentialStore, hasher *cryptox.PasswordHasher, tokens *auth.TokenService,
	cipher *cryptox.SecretCipher, logger logging.Logger, rec metrics.Recorder) *AuthGateway {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthGateway{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		cipher:  cipher,
		logger:  logger.With("module", "auth_gateway"),
		metrics: rec,
	}
}

// Register creates an account. Errors are reported in this order: weak
// password, malformed username or email, username taken, email taken.
func (g *AuthGateway) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if ok, reason := g.hasher.MeetsStrengthPolicy(password); !ok {
		g.metrics.RecordRegistration("weak_password")
		return nil, common.NewValidationError("password", reason)
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateUsername(username); err != nil {
		g.metrics.RecordRegistration("invalid")
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		g.metrics.RecordRegistration("invalid")
		return nil, err
	}

	if err := g.ensureUnused(ctx, "username", func() (*models.User, error) {
		return g.store.FindByUsername(ctx, username)
	}); err != nil {
		return nil, err
	}
	if err := g.ensureUnused(ctx, "email", func() (*models.User, error) {
		return g.store.FindByEmail(ctx, email)
	}); err != nil {
		return nil, err
	}

	digest, err := g.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := g.store.Create(ctx, username, email, digest)
	if err != nil {
		if field, ok := common.DuplicateField(err); ok {
			g.metrics.RecordRegistration("duplicate_" + field)
		}
		return nil, err
	}

	g.metrics.RecordRegistration("success")
	return user, nil
}

func (g *AuthGateway) ensureUnused(ctx context.Context, field string, lookup func() (*models.User, error)) error {
	_, err := lookup()
	switch {
	case err == nil:
		g.metrics.RecordRegistration("duplicate_" + field)
		return &common.DuplicateError{Field: field}
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		g.logger.Error(ctx, "registration lookup failed", "field", field, "error", err)
		return err
	}
}

// Login checks credentials and issues a session token with the configured
// lifetime. Bad credentials always yield common.ErrInvalidCredentials.
// A deactivated account that presents the right password gets
// common.ErrInactiveUser.
func (g *AuthGateway) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := g.store.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			g.metrics.RecordLogin("invalid_credentials")
			return nil, common.ErrInvalidCredentials
		}
		g.logger.Error(ctx, "login failed", "error", err)
		return nil, err
	}

	if !user.Active {
		g.metrics.RecordLogin("inactive")
		return nil, common.ErrInactiveUser
	}

	tok, err := g.issue(user)
	if err != nil {
		return nil, err
	}

	g.metrics.RecordLogin("success")
	g.logger.Info(ctx, "login", "user_id", user.ID)
	return tok, nil
}

// ResolveIdentity maps a session token to an active user. Token problems and
// unknown subjects are auth errors; a deactivated account is
// common.ErrInactiveUser.
func (g *AuthGateway) ResolveIdentity(ctx context.Context, token string) (*models.User, error) {
	subject, err := g.tokens.Verify(token)
	if err != nil {
		g.metrics.RecordTokenRejected(rejectionReason(err))
		return nil, err
	}

	user, err := g.store.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.metrics.RecordTokenRejected("unknown_subject")
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}

	if !user.Active {
		g.metrics.RecordTokenRejected("inactive")
		return nil, common.ErrInactiveUser
	}

	return user, nil
}

// RefreshToken issues a new token for the holder of a still-valid one without
// asking for the password again. The subject must still be an active user.
func (g *AuthGateway) RefreshToken(ctx context.Context, token string) (*Token, error) {
	if _, err := g.ResolveIdentity(ctx, token); err != nil {
		return nil, err
	}

	access, err := g.tokens.Refresh(token)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &Token{AccessToken: access, TokenType: common.TokenTypeBearer}, nil
}

func (g *AuthGateway) issue(user *models.User) (*Token, error) {
	access, err := g.tokens.Issue(user.Username, g.tokens.TTL())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Token{AccessToken: access, TokenType: common.TokenTypeBearer}, nil
}

// UpdateProfile applies a partial update to user. Renaming the user
// invalidates outstanding tokens since they carry the username.
func (g *AuthGateway) UpdateProfile(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error) {
	if upd.Empty() {
		return user, nil
	}
	return g.store.Update(ctx, user.ID, upd)
}

// UpdatePreferences replaces the user's preferences map.
func (g *AuthGateway) UpdatePreferences(ctx context.Context, user *models.User, prefs map[string]any) (map[string]any, error) {
	updated, err := g.store.Update(ctx, user.ID, models.UserUpdate{Preferences: models.Some(prefs)})
	if err != nil {
		return nil, err
	}
	return updated.Preferences, nil
}

// DeactivateUser flips the active flag off. Existing tokens stop resolving.
func (g *AuthGateway) DeactivateUser(ctx context.Context, userID string) error {
	if _, err := g.store.Update(ctx, userID, models.UserUpdate{Active: models.Some(false)}); err != nil {
		return err
	}
	g.logger.Info(ctx, "user deactivated", "user_id", userID)
	return nil
}

// IssueSecret sanitizes the labels, encrypts plaintext and stores it. The
// returned record carries no plaintext.
func (g *AuthGateway) IssueSecret(ctx context.Context, userID, provider, name, plaintext string) (*IssuedSecret, error) {
	provider = common.SanitizeLabel(provider, MaxProviderLength)
	name = common.SanitizeLabel(name, MaxKeyNameLength)

	switch {
	case provider == "":
		return nil, common.NewValidationError("provider", "must not be empty")
	case name == "":
		return nil, common.NewValidationError("name", "must not be empty")
	case strings.TrimSpace(plaintext) == "":
		return nil, common.NewValidationError("api_key", "must not be empty")
	}

	key, err := g.store.CreateSecret(ctx, userID, provider, name, plaintext)
	if err != nil {
		g.metrics.RecordSecretOperation("issue", "error")
		return nil, err
	}

	g.metrics.RecordSecretOperation("issue", "success")
	return &IssuedSecret{Key: key, Preview: cryptox.MaskSecret(plaintext)}, nil
}

// ListSecrets returns the user's active secrets without plaintext.
func (g *AuthGateway) ListSecrets(ctx context.Context, userID string) ([]models.APIKey, error) {
	return g.store.ListSecrets(ctx, userID)
}

// RevealSecret decrypts a secret for an in-process caller such as a provider
// client. The plaintext must not be sent back to HTTP clients. A ciphertext
// that fails authentication is reported with cryptox.ErrIntegrity.
func (g *AuthGateway) RevealSecret(ctx context.Context, userID, secretID string) (string, error) {
	key, err := g.store.GetSecret(ctx, userID, secretID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.metrics.RecordSecretOperation("reveal", "not_found")
		}
		return "", err
	}

	plaintext, err := g.cipher.Decrypt(key.EncryptedKey)
	if err != nil {
		g.metrics.RecordSecretOperation("reveal", "integrity_error")
		g.logger.Error(ctx, "secret integrity check failed", "user_id", userID, "secret_id", secretID)
		return "", fmt.Errorf("secret %s: %w", secretID, err)
	}

	g.metrics.RecordSecretOperation("reveal", "success")
	return plaintext, nil
}

// RevokeSecret soft-deletes a secret owned by userID.
func (g *AuthGateway) RevokeSecret(ctx context.Context, userID, secretID string) error {
	if err := g.store.DeactivateSecret(ctx, userID, secretID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.metrics.RecordSecretOperation("revoke", "not_found")
		}
		return err
	}
	g.metrics.RecordSecretOperation("revoke", "success")
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrTokenSignature):
		return "signature"
	case errors.Is(err, common.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
