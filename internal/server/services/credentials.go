package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/dmitrijs2005/gideon/internal/dbx"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/users"
)

// CredentialStore owns user accounts and their encrypted API keys. It hashes
// passwords and encrypts secrets on the way in; it never returns plaintext.
type CredentialStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.PasswordHasher
	cipher      *cryptox.SecretCipher
	logger      logging.Logger
	metrics     metrics.Recorder

	// verified against when the username is unknown, so both failure paths
	// cost one hash
	dummyDigest string
}

func NewCredentialStore(db *sql.DB, rm repomanager.RepositoryManager, hasher *cryptox.PasswordHasher,
	cipher *cryptox.SecretCipher, logger logging.Logger, rec metrics.Recorder) (*CredentialStore, error) {

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &CredentialStore{
		db:          db,
		repomanager: rm,
		hasher:      hasher,
		cipher:      cipher,
		logger:      logger.With("module", "credential_store"),
		metrics:     rec,
		dummyDigest: dummy,
	}, nil
}

// Create stores a new active user. passwordHash must already be a digest.
// A taken username or email comes back as *common.DuplicateError.
func (s *CredentialStore) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		Preferences:  map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user created", "user_id", u.ID)
	return u, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUsername(ctx, username)
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, email)
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// Update applies the set fields of upd. A new password must pass the strength
// policy and is stored hashed. Username and email changes are checked for
// conflicts inside the same transaction as the write; the unique constraints
// still decide concurrent races.
func (s *CredentialStore) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	patch, err := s.toPatch(upd)
	if err != nil {
		return nil, err
	}

	var updated *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if patch.Username.Set {
			if err := ensureFree(id, "username", func() (*models.User, error) {
				return repo.GetByUsername(ctx, patch.Username.Value)
			}); err != nil {
				return err
			}
		}
		if patch.Email.Set {
			if err := ensureFree(id, "email", func() (*models.User, error) {
				return repo.GetByEmail(ctx, patch.Email.Value)
			}); err != nil {
				return err
			}
		}

		var err error
		updated, err = repo.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		if dup, ok := users.AsDuplicate(err); ok {
			return nil, dup
		}
		return nil, err
	}

	if patch.PasswordHash.Set {
		s.logger.Info(ctx, "password changed", "user_id", id)
	}
	return updated, nil
}

// Authenticate returns the user when password matches. An unknown username
// and a wrong password produce the same error after the same amount of work.
// Digests made by an older scheme are upgraded on success.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	return user, nil
}

func (s *CredentialStore) rehash(ctx context.Context, user *models.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}

	patch := models.UserPatch{PasswordHash: models.Some(digest)}
	if _, err := s.repomanager.Users(s.db).Update(ctx, user.ID, patch); err != nil {
		s.logger.Warn(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
		return
	}

	user.PasswordHash = digest
	s.metrics.RecordPasswordRehash()
	s.logger.Info(ctx, "password digest upgraded", "user_id", user.ID)
}

// CreateSecret encrypts plaintext and stores it for userID.
func (s *CredentialStore) CreateSecret(ctx context.Context, userID, provider, name, plaintext string) (*models.APIKey, error) {
	token, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	key, err := s.repomanager.APIKeys(s.db).Create(ctx, &models.APIKey{
		UserID:       userID,
		Provider:     provider,
		Name:         name,
		EncryptedKey: token,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "secret stored", "user_id", userID, "secret_id", key.ID, "provider", provider)
	return key, nil
}

// ListSecrets returns the user's active secrets, still encrypted.
func (s *CredentialStore) ListSecrets(ctx context.Context, userID string) ([]models.APIKey, error) {
	return s.repomanager.APIKeys(s.db).ListActive(ctx, userID)
}

// GetSecret returns an active secret owned by userID. Secrets of other users
// are common.ErrorNotFound.
func (s *CredentialStore) GetSecret(ctx context.Context, userID, secretID string) (*models.APIKey, error) {
	return s.repomanager.APIKeys(s.db).Get(ctx, userID, secretID)
}

// DeactivateSecret soft-deletes a secret owned by userID.
func (s *CredentialStore) DeactivateSecret(ctx context.Context, userID, secretID string) error {
	if err := s.repomanager.APIKeys(s.db).Deactivate(ctx, userID, secretID); err != nil {
		return err
	}
	s.logger.Info(ctx, "secret deactivated", "user_id", userID, "secret_id", secretID)
	return nil
}

func (s *CredentialStore) toPatch(upd models.UserUpdate) (models.UserPatch, error) {
	patch := models.UserPatch{
		Active:      upd.Active,
		Preferences: upd.Preferences,
	}

	if upd.Username.Set {
		name := strings.TrimSpace(upd.Username.Value)
		if err := validateUsername(name); err != nil {
			return patch, err
		}
		patch.Username = models.Some(name)
	}
	if upd.Email.Set {
		email := strings.TrimSpace(upd.Email.Value)
		if err := validateEmail(email); err != nil {
			return patch, err
		}
		patch.Email = models.Some(email)
	}
	if upd.Password.Set {
		if ok, reason := s.hasher.MeetsStrengthPolicy(upd.Password.Value); !ok {
			return patch, common.NewValidationError("password", reason)
		}
		digest, err := s.hasher.Hash(upd.Password.Value)
		if err != nil {
			return patch, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = models.Some(digest)
	}
	if patch.Preferences.Set && patch.Preferences.Value == nil {
		patch.Preferences.Value = map[string]any{}
	}

	return patch, nil
}

// ensureFree fails with *common.DuplicateError when lookup finds a user other
// than selfID.
func ensureFree(selfID, field string, lookup func() (*models.User, error)) error {
	other, err := lookup()
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != selfID:
		return &common.DuplicateError{Field: field}
	default:
		return nil
	}
}
