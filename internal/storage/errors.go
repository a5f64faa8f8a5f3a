package storage

import (
	"github.com/pkg/errors"
)

var (
	// ErrVaultNotFound is returned by Load when no vault file exists.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrUnsupportedVersion is returned for an envelope written by a newer build.
	ErrUnsupportedVersion = errors.New("unsupported vault format version")

	// ErrMalformedEnvelope is returned when the file is not a valid envelope.
	ErrMalformedEnvelope = errors.New("malformed vault envelope")

	// ErrIO matches every file system failure reported by this package.
	ErrIO = errors.New("vault i/o error")
)

// IOError records the step of a read or write that failed.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIO) hold for every IOError.
func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioErr(op string, err error) error {
	return &IOError{Op: op, Err: err}
}
