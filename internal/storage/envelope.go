package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/credvault/credvault/internal/crypto"
)

// FormatVersion is the envelope layout written by this build.
const FormatVersion = 1

// adDomain prefixes the associated data so it cannot collide with other uses of the key.
const adDomain = "credvault/envelope"

// Envelope is the encrypted vault as stored on disk
type Envelope struct {
	FormatVersion int       `json:"format_version"`
	VaultID       string    `json:"vault_id"`
	Cipher        string    `json:"cipher"`
	KDF           KDFHeader `json:"kdf"`
	Revision      uint64    `json:"revision"`
	ModifiedAt    string    `json:"modified_at"` // RFC 3339
	Nonce         []byte    `json:"nonce"`       // base64
	Ciphertext    []byte    `json:"ciphertext"`  // base64
	Tag           []byte    `json:"tag"`         // base64
}

// KDFHeader holds the salt and cost parameters needed to re-derive the key.
type KDFHeader struct {
	crypto.KDFParams
	Salt []byte `json:"salt"` // base64
}

// NewEnvelope returns an unsealed envelope for a fresh vault.
func NewEnvelope(cipher string, params crypto.KDFParams, salt []byte) *Envelope {
	return &Envelope{
		FormatVersion: FormatVersion,
		VaultID:       uuid.New().String(),
		Cipher:        cipher,
		KDF:           KDFHeader{KDFParams: params, Salt: salt},
	}
}

// Clone returns a deep copy of the envelope.
func (ev *Envelope) Clone() *Envelope {
	c := *ev
	c.KDF.Salt = append([]byte(nil), ev.KDF.Salt...)
	c.Nonce = append([]byte(nil), ev.Nonce...)
	c.Ciphertext = append([]byte(nil), ev.Ciphertext...)
	c.Tag = append([]byte(nil), ev.Tag...)
	return &c
}

// GetModifiedAtTime parses the ModifiedAt timestamp
func (ev *Envelope) GetModifiedAtTime() (time.Time, error) {
	return time.Parse(time.RFC3339, ev.ModifiedAt)
}

// SetModifiedAt sets the ModifiedAt timestamp
func (ev *Envelope) SetModifiedAt(t time.Time) {
	ev.ModifiedAt = t.UTC().Format(time.RFC3339)
}

// AssociatedData is the byte string the AEAD authenticates alongside the
// payload: every header field, so none of them can be swapped or edited
// without Open failing. Nonce, ciphertext and tag are not part of it.
func (ev *Envelope) AssociatedData() []byte {
	var b []byte
	b = appendField(b, []byte(adDomain))
	b = binary.BigEndian.AppendUint16(b, uint16(ev.FormatVersion))
	b = appendField(b, []byte(ev.VaultID))
	b = appendField(b, []byte(ev.Cipher))
	b = appendField(b, []byte(ev.KDF.Algo))
	b = binary.BigEndian.AppendUint32(b, ev.KDF.Memory)
	b = binary.BigEndian.AppendUint32(b, ev.KDF.Iterations)
	b = append(b, ev.KDF.Parallelism)
	b = appendField(b, ev.KDF.Salt)
	b = binary.BigEndian.AppendUint64(b, ev.Revision)
	b = appendField(b, []byte(ev.ModifiedAt))
	return b
}

func appendField(b, field []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(field)))
	return append(b, field...)
}

// Validate checks that every field is present and usable by this build.
func (ev *Envelope) Validate() error {
	if ev.FormatVersion != FormatVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", ev.FormatVersion)
	}
	if _, err := uuid.Parse(ev.VaultID); err != nil {
		return errors.Wrapf(ErrMalformedEnvelope, "vault_id: %v", err)
	}
	if !crypto.ValidCipher(ev.Cipher) {
		return errors.Wrapf(ErrMalformedEnvelope, "cipher %q", ev.Cipher)
	}
	if err := ev.KDF.Validate(); err != nil {
		return errors.Wrapf(ErrMalformedEnvelope, "kdf: %v", err)
	}
	if len(ev.KDF.Salt) < crypto.MinSaltSize {
		return errors.Wrapf(ErrMalformedEnvelope, "salt is %d bytes", len(ev.KDF.Salt))
	}
	if _, err := ev.GetModifiedAtTime(); err != nil {
		return errors.Wrapf(ErrMalformedEnvelope, "modified_at: %v", err)
	}
	if len(ev.Nonce) != crypto.NonceSize {
		return errors.Wrapf(ErrMalformedEnvelope, "nonce is %d bytes", len(ev.Nonce))
	}
	if len(ev.Tag) != crypto.TagSize {
		return errors.Wrapf(ErrMalformedEnvelope, "tag is %d bytes", len(ev.Tag))
	}
	if ev.Ciphertext == nil {
		return errors.Wrap(ErrMalformedEnvelope, "ciphertext missing")
	}
	return nil
}

// MarshalEnvelope serializes a sealed envelope.
func MarshalEnvelope(ev *Envelope) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot marshal envelope")
	}
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal envelope")
	}
	return data, nil
}

// UnmarshalEnvelope parses an envelope. The format version is read on its own
// first so a file from a newer build is refused before the rest is trusted.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var probe struct {
		FormatVersion *int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "%v", err)
	}
	if probe.FormatVersion == nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, "format_version missing")
	}
	if *probe.FormatVersion != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", *probe.FormatVersion)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var ev Envelope
	if err := dec.Decode(&ev); err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Wrap(ErrMalformedEnvelope, "trailing data")
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
