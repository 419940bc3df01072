package models

import "time"

// APIKey is an encrypted third-party API key owned by a user. EncryptedKey
// holds a cipher token, never the plaintext.
type APIKey struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Name         string    `json:"name"`
	EncryptedKey string    `json:"-"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
