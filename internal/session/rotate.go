package session

import (
	"fmt"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/storage"
)

// RotateMasterPassword re-keys the vault under newPassword: a new salt, the
// session's configured KDF parameters and cipher, a fresh nonce, and one
// atomic replace of the vault file. Unsaved changes are persisted with it.
//
// The session switches to the new key only after the store confirms the
// write. If anything fails first, both the file and the session still use
// the old password.
func (s *Session) RotateMasterPassword(newPassword []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.opts.validate(); err != nil {
		return err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	newKey := crypto.Derive(newPassword, salt, s.opts.KDF)
	defer crypto.Zeroize(newKey)

	hdr := s.header.Clone()
	hdr.Cipher = s.opts.Cipher
	hdr.KDF = storage.KDFHeader{KDFParams: s.opts.KDF, Salt: salt}

	ev, err := s.seal(newKey, hdr)
	if err != nil {
		return err
	}
	if err := s.store.Persist(ev); err != nil {
		return fmt.Errorf("failed to persist rotated vault: %w", err)
	}

	old := s.key
	s.key = lockKey(newKey)
	old.Destroy()
	s.header = ev
	s.dirty = false
	log.Info().Str("vault_id", ev.VaultID).Uint64("revision", ev.Revision).
		Stringer("kdf", ev.KDF.KDFParams).Msg("master password rotated")
	return nil
}
