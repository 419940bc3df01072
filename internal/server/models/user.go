// Package models defines server-side records persisted by the credential store
// and the request shapes that update them.
package models

import "time"

// User is an account. PasswordHash is an opaque digest and never leaves the
// server.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Active       bool           `json:"is_active"`
	Preferences  map[string]any `json:"preferences"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UserUpdate is a partial profile update as submitted by a client. Only
// fields with Set == true are applied.
type UserUpdate struct {
	Username    Optional[string]         `json:"username"`
	Email       Optional[string]         `json:"email"`
	Password    Optional[string]         `json:"password"`
	Active      Optional[bool]           `json:"is_active"`
	Preferences Optional[map[string]any] `json:"preferences"`
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return !u.Username.Set && !u.Email.Set && !u.Password.Set && !u.Active.Set && !u.Preferences.Set
}

// UserPatch is the storage-level form of UserUpdate: the password has
// already been hashed.
type UserPatch struct {
	Username     Optional[string]
	Email        Optional[string]
	PasswordHash Optional[string]
	Active       Optional[bool]
	Preferences  Optional[map[string]any]
}

func (p UserPatch) Empty() bool {
	return !p.Username.Set && !p.Email.Set && !p.PasswordHash.Set && !p.Active.Set && !p.Preferences.Set
}
