package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Nonce size for ChaCha20-Poly1305 and AES-GCM (96 bits)
	NonceSize = 12

	// Authentication tag size (128 bits)
	TagSize = 16
)

// Supported ciphers
const (
	CipherChaCha20Poly1305 = "chacha20poly1305"
	CipherAES256GCM        = "aes-256-gcm"
)

var (
	// ErrAuthentication is returned by Open when the tag does not verify.
	ErrAuthentication = errors.New("message authentication failed")
	ErrUnknownCipher  = errors.New("unknown cipher")
)

// ValidCipher reports whether name is a cipher this build can open.
func ValidCipher(name string) bool {
	return name == CipherChaCha20Poly1305 || name == CipherAES256GCM
}

func newAEAD(name string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size %d", len(key))
	}
	switch name {
	case CipherChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// NewNonce draws a fresh random nonce. Every Seal gets its own.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext under key and nonce, authenticating ad, and returns
// the ciphertext and the detached tag.
func Seal(cipherName string, key, nonce, plaintext, ad []byte) ([]byte, []byte, error) {
	aead, err := newAEAD(cipherName, key)
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != NonceSize {
		return nil, nil, errors.New("invalid nonce size")
	}

	sealed := aead.Seal(nil, nonce, plaintext, ad)
	split := len(sealed) - TagSize
	return sealed[:split:split], sealed[split:], nil
}

// Open verifies the tag and decrypts. Any mismatch in key, nonce, ciphertext,
// tag or ad yields ErrAuthentication and no plaintext.
func Open(cipherName string, key, nonce, ciphertext, tag, ad []byte) ([]byte, error) {
	aead, err := newAEAD(cipherName, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, ErrAuthentication
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, ad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
