// Package apikeys provides a PostgreSQL-backed repository for users'
// encrypted third-party API keys.
package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/dbx"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/google/uuid"
)

const keyColumns = `id, user_id, provider, key_name, encrypted_key, is_active, created_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores key as active under a fresh id.
func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	query :=
		`INSERT INTO user_api_keys (id, user_id, provider, key_name, encrypted_key, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 RETURNING ` + keyColumns

	row := r.db.QueryRowContext(ctx, query, uuid.NewString(), key.UserID, key.Provider, key.Name, key.EncryptedKey)

	created := &models.APIKey{}
	if err := scanKey(row, created); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

// ListActive returns the user's active keys, oldest first.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]models.APIKey, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []models.APIKey{}, nil
	}

	query :=
		`SELECT ` + keyColumns + `
		 FROM user_api_keys
		 WHERE user_id = $1 AND is_active
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		if err := scanKey(rows, &k); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// Get returns an active key owned by userID.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.APIKey, error) {
	if !validIDs(userID, id) {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT ` + keyColumns + `
		 FROM user_api_keys
		 WHERE id = $1 AND user_id = $2 AND is_active`

	k := &models.APIKey{}
	if err := scanKey(r.db.QueryRowContext(ctx, query, id, userID), k); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

// Deactivate soft-deletes an active key owned by userID.
func (r *PostgresRepository) Deactivate(ctx context.Context, userID, id string) error {
	if !validIDs(userID, id) {
		return common.ErrorNotFound
	}

	query :=
		`UPDATE user_api_keys SET is_active = FALSE
		 WHERE id = $1 AND user_id = $2 AND is_active`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner, k *models.APIKey) error {
	return s.Scan(&k.ID, &k.UserID, &k.Provider, &k.Name, &k.EncryptedKey, &k.Active, &k.CreatedAt)
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
