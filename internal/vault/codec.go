package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const SchemaVersion = 1

// ErrFormat is returned when a payload is not a well-formed credential set.
var ErrFormat = errors.New("malformed vault payload")

type payload struct {
	SchemaVersion int     `json:"schema_version"`
	Entries       []entry `json:"entries"`
}

type entry struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Password   []byte `json:"password"` // base64 in JSON
	ModifiedAt string `json:"modified_at"`
}

// wire form used on decode, so missing fields can be told apart from empty ones
type decodedPayload struct {
	SchemaVersion *int            `json:"schema_version"`
	Entries       *[]decodedEntry `json:"entries"`
}

type decodedEntry struct {
	ID         *string `json:"id"`
	Username   *string `json:"username"`
	Password   *[]byte `json:"password"`
	ModifiedAt *string `json:"modified_at"`
}

// Encode serializes the mapping. The output depends only on the mapping's
// contents: entries are sorted by ID and timestamps are rendered in UTC.
func Encode(m Mapping) ([]byte, error) {
	p := payload{
		SchemaVersion: SchemaVersion,
		Entries:       make([]entry, 0, len(m)),
	}
	for _, id := range m.IDs() {
		r := m[id]
		if r.ID != id {
			return nil, fmt.Errorf("record keyed %q carries id %q", id, r.ID)
		}
		password := r.Password
		if password == nil {
			password = []byte{}
		}
		p.Entries = append(p.Entries, entry{
			ID:         r.ID,
			Username:   r.Username,
			Password:   password,
			ModifiedAt: r.ModifiedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return json.Marshal(p)
}

// Decode parses a payload produced by Encode. It validates every entry and
// returns ErrFormat without a partial mapping on the first violation.
func Decode(data []byte) (Mapping, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p decodedPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after payload", ErrFormat)
	}
	if p.SchemaVersion == nil || p.Entries == nil {
		return nil, fmt.Errorf("%w: missing schema_version or entries", ErrFormat)
	}
	if *p.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrFormat, *p.SchemaVersion)
	}

	m := make(Mapping, len(*p.Entries))
	for i, e := range *p.Entries {
		r, err := decodeEntry(e)
		if err != nil {
			m.Wipe()
			return nil, fmt.Errorf("%w: entry %d: %v", ErrFormat, i, err)
		}
		if _, dup := m[r.ID]; dup {
			r.Wipe()
			m.Wipe()
			return nil, fmt.Errorf("%w: duplicate id %q", ErrFormat, r.ID)
		}
		m[r.ID] = r
	}
	return m, nil
}

func decodeEntry(e decodedEntry) (*Record, error) {
	if e.ID == nil || e.Username == nil || e.Password == nil || e.ModifiedAt == nil {
		return nil, errors.New("missing field")
	}
	if err := ValidateID(*e.ID); err != nil {
		return nil, err
	}
	if err := ValidateUsername(*e.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(*e.Password); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, *e.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("modified_at: %v", err)
	}
	return &Record{
		ID:         *e.ID,
		Username:   *e.Username,
		Password:   *e.Password,
		ModifiedAt: Timestamp(ts),
	}, nil
}
