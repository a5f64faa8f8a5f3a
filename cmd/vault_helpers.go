package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/session"
	"github.com/credvault/credvault/internal/vault"
)

var stdin = bufio.NewReader(os.Stdin)

// readPassword prompts for a secret without echoing it
func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readNewPassword prompts twice and returns the password once both entries match
func readNewPassword(prompt, confirmPrompt string) ([]byte, error) {
	password1, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}
	password2, err := readPassword(confirmPrompt)
	if err != nil {
		crypto.Zeroize(password1)
		return nil, err
	}
	defer crypto.Zeroize(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		crypto.Zeroize(password1)
		return nil, fmt.Errorf("passwords do not match")
	}
	if len(password1) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	return password1, nil
}

// readLine reads one line of visible input
func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question; anything but y or yes is no
func confirm(prompt string) bool {
	response, err := readLine(prompt + " (y/n): ")
	if err != nil {
		return false
	}
	return isYes(response)
}

func isYes(response string) bool {
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// checkID rejects ids the vault would refuse before any password prompt
func checkID(id string) error {
	if err := vault.ValidateID(id); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	return nil
}

func checkUsername(username string) error {
	if err := vault.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	return nil
}

// openSession prompts for the master password and unlocks the vault
func openSession() (*session.Session, error) {
	if !localStore.Exists() {
		return nil, fmt.Errorf("vault not found at %s. Run 'credvault init' first", cfg.VaultPath)
	}

	password, err := readPassword("Enter master password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(password)

	s, err := session.Open(localStore, password, cfg.SessionOptions())
	if err != nil {
		return nil, describe(err)
	}
	return s, nil
}

// withSession unlocks the vault, runs fn, and saves any changes fn made
// before the session is closed.
func withSession(fn func(s *session.Session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(s); err != nil {
		return err
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("failed to save vault: %w", err)
	}
	return nil
}

// describe turns engine errors into messages for the terminal
func describe(err error) error {
	switch {
	case errors.Is(err, session.ErrWrongPassword):
		return fmt.Errorf("unable to unlock vault: wrong master password or the vault file was modified")
	case errors.Is(err, session.ErrCorruptVault):
		return fmt.Errorf("vault file %s is corrupt or from a newer version: %w", cfg.VaultPath, err)
	}
	return err
}
