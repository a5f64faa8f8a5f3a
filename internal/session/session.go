package session

import (
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/awnumar/memguard"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/storage"
	"github.com/credvault/credvault/internal/vault"
)

// Store is the durable home of the envelope.
type Store interface {
	Exists() bool
	Load() (*storage.Envelope, error)
	Persist(ev *storage.Envelope) error
}

// Options control how new envelopes are sealed.
type Options struct {
	// Cipher and KDF apply when a vault is created or its password rotated.
	// Existing vaults keep the parameters recorded in their envelope.
	Cipher string
	KDF    crypto.KDFParams

	// Now stamps records and envelopes; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default cipher and KDF parameters
func DefaultOptions() Options {
	return Options{
		Cipher: crypto.CipherChaCha20Poly1305,
		KDF:    crypto.DefaultKDFParams(),
	}
}

func (o Options) validate() error {
	if !crypto.ValidCipher(o.Cipher) {
		return fmt.Errorf("%w: %q", crypto.ErrUnknownCipher, o.Cipher)
	}
	return o.KDF.Validate()
}

// Update lists the fields Modify changes; nil fields are left as they are.
type Update struct {
	Username *string
	Password []byte
}

// active guards the one-session-per-process rule.
var active atomic.Bool

// Session is an unlocked vault: the derived key, the decrypted credentials
// and the header of the envelope they were last persisted in.
type Session struct {
	store  Store
	opts   Options
	key    *memguard.LockedBuffer
	header *storage.Envelope

	records vault.Mapping
	dirty   bool
	closed  bool
}

func acquire() error {
	if !active.CompareAndSwap(false, true) {
		return ErrSessionActive
	}
	return nil
}

func release() {
	active.Store(false)
}

// lockKey moves key into locked memory; key itself is wiped.
func lockKey(key []byte) *memguard.LockedBuffer {
	buf := memguard.NewBufferFromBytes(key)
	buf.Freeze()
	return buf
}

// Create initializes a new, empty vault protected by password and returns a
// session for it.
func Create(store Store, password []byte, opts Options) (_ *Session, err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	if store.Exists() {
		return nil, ErrVaultExists
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := crypto.Derive(password, salt, opts.KDF)
	defer crypto.Zeroize(key)

	s := &Session{
		store:   store,
		opts:    opts,
		records: make(vault.Mapping),
	}
	hdr := storage.NewEnvelope(opts.Cipher, opts.KDF, salt)
	ev, err := s.seal(key, hdr)
	if err != nil {
		return nil, err
	}
	if err := store.Persist(ev); err != nil {
		return nil, fmt.Errorf("failed to write new vault: %w", err)
	}

	s.header = ev
	s.key = lockKey(key)
	log.Info().Str("vault_id", ev.VaultID).Str("cipher", ev.Cipher).Stringer("kdf", ev.KDF.KDFParams).Msg("vault created")
	return s, nil
}

// Open loads the vault from store and unlocks it with password.
//
// Authentication failures are reported as ErrWrongPassword whether the
// password was wrong or the file was modified; only the debug log says more.
func Open(store Store, password []byte, opts Options) (_ *Session, err error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	ev, err := store.Load()
	if err != nil {
		if errors.Is(err, storage.ErrMalformedEnvelope) || errors.Is(err, storage.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %w", ErrCorruptVault, err)
		}
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}

	key := crypto.Derive(password, ev.KDF.Salt, ev.KDF.KDFParams)
	defer crypto.Zeroize(key)

	plaintext, err := crypto.Open(ev.Cipher, key, ev.Nonce, ev.Ciphertext, ev.Tag, ev.AssociatedData())
	if err != nil {
		if errors.Is(err, crypto.ErrAuthentication) {
			log.Debug().Str("vault_id", ev.VaultID).Uint64("revision", ev.Revision).
				Msg("authentication failed: wrong password or modified envelope")
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptVault, err)
	}
	defer crypto.Zeroize(plaintext)

	records, err := vault.Decode(plaintext)
	if err != nil {
		log.Debug().Str("vault_id", ev.VaultID).Err(err).Msg("authenticated payload failed to decode")
		return nil, fmt.Errorf("%w: %w", ErrCorruptVault, err)
	}

	s := &Session{
		store:   store,
		opts:    opts,
		key:     lockKey(key),
		header:  ev,
		records: records,
	}
	log.Debug().Str("vault_id", ev.VaultID).Uint64("revision", ev.Revision).Int("entries", len(records)).Msg("vault unlocked")
	return s, nil
}

func (s *Session) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}

func (s *Session) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// seal encodes the records into a copy of hdr under key with a fresh nonce.
// The revision is bumped so every persisted envelope is distinct.
func (s *Session) seal(key []byte, hdr *storage.Envelope) (*storage.Envelope, error) {
	plaintext, err := vault.Encode(s.records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vault: %w", err)
	}
	defer crypto.Zeroize(plaintext)

	ev := hdr.Clone()
	ev.Revision++
	ev.SetModifiedAt(s.now())
	ev.Nonce, err = crypto.NewNonce()
	if err != nil {
		return nil, err
	}
	ev.Ciphertext, ev.Tag, err = crypto.Seal(ev.Cipher, key, ev.Nonce, plaintext, ev.AssociatedData())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt vault: %w", err)
	}
	return ev, nil
}

// List returns the credential IDs in ascending order. The IDs are read when
// iteration starts; later changes to the session do not affect a running loop.
// Secret fields are never exposed. A closed session yields nothing; use Len
// to tell a closed session from an empty one.
func (s *Session) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.closed {
			return
		}
		for _, id := range s.records.IDs() {
			if !yield(id) {
				return
			}
		}
	}
}

// Len returns the number of credentials.
func (s *Session) Len() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return len(s.records), nil
}

// Get returns a copy of the record stored under id.
func (s *Session) Get(id string) (vault.Record, error) {
	if err := s.check(); err != nil {
		return vault.Record{}, err
	}
	r, ok := s.records[id]
	if !ok {
		return vault.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Add stores a new credential. It never replaces an existing one.
func (s *Session) Add(id, username string, password []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := vault.ValidateID(id); err != nil {
		return err
	}
	if err := vault.ValidateUsername(username); err != nil {
		return err
	}
	if err := vault.ValidatePassword(password); err != nil {
		return err
	}
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s.records[id] = &vault.Record{
		ID:         id,
		Username:   username,
		Password:   append([]byte{}, password...),
		ModifiedAt: vault.Timestamp(s.now()),
	}
	s.dirty = true
	return nil
}

// Modify applies upd to the credential stored under id.
func (s *Session) Modify(id string, upd Update) error {
	if err := s.check(); err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if upd.Username != nil {
		if err := vault.ValidateUsername(*upd.Username); err != nil {
			return err
		}
	}
	if upd.Password != nil {
		if err := vault.ValidatePassword(upd.Password); err != nil {
			return err
		}
	}

	if upd.Username != nil {
		r.Username = *upd.Username
	}
	if upd.Password != nil {
		crypto.Zeroize(r.Password)
		r.Password = append([]byte{}, upd.Password...)
	}
	r.ModifiedAt = vault.Timestamp(s.now())
	s.dirty = true
	return nil
}

// Delete removes the credential stored under id.
func (s *Session) Delete(id string) error {
	if err := s.check(); err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Wipe()
	delete(s.records, id)
	s.dirty = true
	return nil
}

// Dirty reports whether there are changes Save has not persisted.
func (s *Session) Dirty() bool {
	return s.dirty
}

// VaultID returns the identifier recorded in the envelope.
func (s *Session) VaultID() string {
	if s.header == nil {
		return ""
	}
	return s.header.VaultID
}

// Revision returns the revision of the last persisted envelope.
func (s *Session) Revision() uint64 {
	if s.header == nil {
		return 0
	}
	return s.header.Revision
}

// Save re-seals the credentials under the session key with a fresh nonce and
// persists them. It does nothing when there are no unsaved changes. The dirty
// flag is cleared only once the store reports the write durable.
func (s *Session) Save() error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.dirty {
		return nil
	}

	ev, err := s.seal(s.key.Bytes(), s.header)
	if err != nil {
		return err
	}
	if err := s.store.Persist(ev); err != nil {
		return fmt.Errorf("failed to save vault: %w", err)
	}

	s.header = ev
	s.dirty = false
	log.Debug().Str("vault_id", ev.VaultID).Uint64("revision", ev.Revision).Int("entries", len(s.records)).Msg("vault saved")
	return nil
}

// Close destroys the key and wipes every password held by the session.
// Unsaved changes are discarded. Close is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.dirty {
		log.Warn().Int("entries", len(s.records)).Msg("closing session with unsaved changes")
	}
	s.key.Destroy()
	s.records.Wipe()
	s.header = nil
	s.dirty = false
	s.closed = true
	release()
	return nil
}
