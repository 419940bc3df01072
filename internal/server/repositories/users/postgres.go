// Package users provides a PostgreSQL-backed repository for user accounts.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/dbx"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, is_active, preferences, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user with a fresh id. A username or email that is already
// taken yields *common.DuplicateError naming the field.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	prefs, err := encodePreferences(user.Preferences)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO users (id, username, email, password_hash, is_active, preferences)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), user.Username, user.Email, user.PasswordHash, user.Active, prefs)

	created, err := scanUser(row)
	if err != nil {
		return nil, translateError(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

// Update applies only the set fields of patch and bumps updated_at. An empty
// patch returns the current row unchanged.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Username.Set {
		set("username", patch.Username.Value)
	}
	if patch.Email.Set {
		set("email", patch.Email.Value)
	}
	if patch.PasswordHash.Set {
		set("password_hash", patch.PasswordHash.Value)
	}
	if patch.Active.Set {
		set("is_active", patch.Active.Value)
	}
	if patch.Preferences.Set {
		prefs, err := encodePreferences(patch.Preferences.Value)
		if err != nil {
			return nil, err
		}
		set("preferences", prefs)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	updated, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, translateError(err)
	}
	return updated, nil
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var prefs []byte

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &prefs,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	u.Preferences = map[string]any{}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return u, nil
}

func encodePreferences(p map[string]any) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}
	return string(b), nil
}

// AsDuplicate reports whether err carries a unique violation on
// users_username_key or users_email_key and returns it as
// *common.DuplicateError. It also matches violations surfaced at commit.
func AsDuplicate(err error) (*common.DuplicateError, bool) {
	constraint, ok := dbx.UniqueViolation(err)
	if !ok {
		return nil, false
	}
	switch {
	case strings.Contains(constraint, "email"):
		return &common.DuplicateError{Field: "email"}, true
	case strings.Contains(constraint, "username"):
		return &common.DuplicateError{Field: "username"}, true
	default:
		return &common.DuplicateError{}, true
	}
}

func translateError(err error) error {
	if dup, ok := AsDuplicate(err); ok {
		return dup
	}
	return fmt.Errorf("db error: %w", err)
}
