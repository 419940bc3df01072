package services

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/dmitrijs2005/gideon/internal/dbx"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testParams = cryptox.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// --- users ---

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	failGet error
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return nil, &common.DuplicateError{Field: "username"}
		}
		if existing.Email == u.Email {
			return nil, &common.DuplicateError{Field: "email"}
		}
	}
	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	for _, u := range r.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == name })
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) Update(_ context.Context, id string, p models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Username.Set {
		u.Username = p.Username.Value
	}
	if p.Email.Set {
		u.Email = p.Email.Value
	}
	if p.PasswordHash.Set {
		u.PasswordHash = p.PasswordHash.Value
	}
	if p.Active.Set {
		u.Active = p.Active.Value
	}
	if p.Preferences.Set {
		u.Preferences = p.Preferences.Value
	}
	c := *u
	return &c, nil
}

// --- api keys ---

type memKeys struct {
	mu   sync.Mutex
	keys []*models.APIKey
}

func (r *memKeys) Create(_ context.Context, k *models.APIKey) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *k
	c.ID = uuid.NewString()
	c.Active = true
	c.CreatedAt = time.Now().Add(time.Duration(len(r.keys)) * time.Millisecond)
	r.keys = append(r.keys, &c)
	out := c
	return &out, nil
}

func (r *memKeys) ListActive(_ context.Context, userID string) ([]models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.APIKey{}
	for _, k := range r.keys {
		if k.UserID == userID && k.Active {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memKeys) Get(_ context.Context, userID, id string) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.ID == id && k.UserID == userID && k.Active {
			c := *k
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memKeys) Deactivate(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.ID == id && k.UserID == userID && k.Active {
			k.Active = false
			return nil
		}
	}
	return common.ErrorNotFound
}

// tamper replaces the stored ciphertext of key id.
func (r *memKeys) tamper(id string, f func(string) string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.ID == id {
			k.EncryptedKey = f(k.EncryptedKey)
		}
	}
}

type fakeRepoManager struct {
	users *memUsers
	keys  *memKeys
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) APIKeys(dbx.DBTX) apikeys.Repository          { return m.keys }

// --- metrics ---

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder { return &countingRecorder{counts: map[string]int{}} }

func (c *countingRecorder) inc(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[k]++
}

func (c *countingRecorder) get(k string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[k]
}

func (c *countingRecorder) RecordRegistration(o string)                          { c.inc("registration:" + o) }
func (c *countingRecorder) RecordLogin(o string)                                 { c.inc("login:" + o) }
func (c *countingRecorder) RecordTokenRejected(r string)                         { c.inc("token:" + r) }
func (c *countingRecorder) RecordPasswordRehash()                                { c.inc("rehash") }
func (c *countingRecorder) RecordSecretOperation(op, o string)                   { c.inc("secret:" + op + ":" + o) }
func (c *countingRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}

var _ metrics.Recorder = (*countingRecorder)(nil)

// --- fixture ---

type fixture struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	rm      *fakeRepoManager
	hasher  *cryptox.PasswordHasher
	cipher  *cryptox.SecretCipher
	tokens  *auth.TokenService
	clock   *time.Time
	rec     *countingRecorder
	store   *CredentialStore
	gateway *AuthGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := cryptox.NewSecretCipher(cryptox.GenerateMasterKey())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		db:     db,
		mock:   mock,
		rm:     &fakeRepoManager{users: newMemUsers(), keys: &memKeys{}},
		hasher: cryptox.NewPasswordHasher(testParams),
		cipher: cipher,
		clock:  &now,
		rec:    newCountingRecorder(),
	}
	f.tokens = auth.NewTokenService([]byte("test-signing-key"), 30*time.Minute,
		auth.WithClock(func() time.Time { return *f.clock }))

	logger, _, err := logging.New(logging.FormatText, io.Discard)
	require.NoError(t, err)

	f.store, err = NewCredentialStore(db, f.rm, f.hasher, cipher, logger, f.rec)
	require.NoError(t, err)
	f.gateway = NewAuthGateway(f.store, f.hasher, f.tokens, cipher, logger, f.rec)
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

// expectTx registers the BEGIN/COMMIT (or ROLLBACK) that dbx.WithTx issues.
func (f *fixture) expectTx(commit bool) {
	f.mock.ExpectBegin()
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}

func (f *fixture) mustRegister(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	u, err := f.gateway.Register(context.Background(), username, email, password)
	require.NoError(t, err)
	return u
}
