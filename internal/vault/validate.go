package vault

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	MaxIDLength       = 256
	MaxUsernameLength = 1024
	MaxPasswordLength = 4096
)

// ErrInvalidField is returned for an ID or username that may not be stored.
var ErrInvalidField = errors.New("invalid field")

func validateText(field, s string, max int, allowEmpty bool) error {
	if !allowEmpty && s == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidField, field)
	}
	if len(s) > max {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidField, field, max)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidField, field)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control character %U", ErrInvalidField, field, r)
		}
	}
	return nil
}

// ValidateID checks a credential ID: non-empty, bounded, printable.
func ValidateID(id string) error {
	return validateText("id", id, MaxIDLength, false)
}

// ValidateUsername checks a username: bounded and printable. It may be empty.
func ValidateUsername(username string) error {
	return validateText("username", username, MaxUsernameLength, true)
}

// ValidatePassword only bounds the password length; its bytes are opaque.
func ValidatePassword(password []byte) error {
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password longer than %d bytes", ErrInvalidField, MaxPasswordLength)
	}
	return nil
}
