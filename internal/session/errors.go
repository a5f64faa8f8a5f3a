package session

import "errors"

var (
	// ErrWrongPassword is returned when the vault does not authenticate under
	// the derived key. A modified file produces the same error.
	ErrWrongPassword = errors.New("wrong master password or damaged vault")

	// ErrCorruptVault is returned when the vault file or its decrypted
	// payload is structurally invalid.
	ErrCorruptVault = errors.New("vault file is corrupt")

	ErrNotFound      = errors.New("credential not found")
	ErrDuplicateID   = errors.New("credential id already exists")
	ErrVaultExists   = errors.New("vault already exists")
	ErrSessionActive = errors.New("a vault session is already open in this process")
	ErrClosed        = errors.New("vault session is closed")
)
