package vault

import (
	"sort"
	"time"

	"github.com/credvault/credvault/internal/crypto"
)

// Record represents a single credential entry
type Record struct {
	ID         string
	Username   string
	Password   []byte
	ModifiedAt time.Time
}

// Clone returns a deep copy so callers never alias the session's password buffer.
func (r *Record) Clone() Record {
	c := *r
	c.Password = append([]byte(nil), r.Password...)
	return c
}

// Wipe zeroes the password bytes in place.
func (r *Record) Wipe() {
	crypto.Zeroize(r.Password)
	r.Password = nil
}

// Mapping is the plaintext content of a vault: credential records keyed by ID.
type Mapping map[string]*Record

// IDs returns the mapping's IDs in ascending order.
func (m Mapping) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wipe zeroes every password and empties the mapping.
func (m Mapping) Wipe() {
	for id, r := range m {
		r.Wipe()
		delete(m, id)
	}
}

// Timestamp normalizes t to the precision and location the codec stores.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}
