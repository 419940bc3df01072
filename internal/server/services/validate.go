package services

import (
	"net/mail"
	"unicode/utf8"

	"github.com/dmitrijs2005/gideon/internal/common"
)

const (
	maxUsernameLength = 50
	maxEmailLength    = 254

	// MaxProviderLength and MaxKeyNameLength bound stored API key labels.
	MaxProviderLength = 50
	MaxKeyNameLength  = 100
)

func validateUsername(name string) error {
	switch {
	case name == "":
		return common.NewValidationError("username", "must not be empty")
	case utf8.RuneCountInString(name) > maxUsernameLength:
		return common.NewValidationError("username", "too long")
	case common.HasBlockedPattern(name):
		return common.NewValidationError("username", "contains forbidden characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return common.NewValidationError("email", "must not be empty")
	}
	if len(email) > maxEmailLength {
		return common.NewValidationError("email", "too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.NewValidationError("email", "invalid address")
	}
	return nil
}
