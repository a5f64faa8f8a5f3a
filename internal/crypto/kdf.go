package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

const (
	// Salt sizes
	SaltSize    = 32
	MinSaltSize = 16

	// Derived key size (AES-256 / ChaCha20)
	KeySize = 32

	// Argon2id parameters
	DefaultMemory      = 64 * 1024 // 64 MB
	DefaultIterations  = 3
	DefaultParallelism = 1

	// Upper bounds accepted from an envelope. Derivation runs before the tag
	// is checked, so these cap what an edited file can make us allocate.
	maxKDFMemoryBytes  = 1 << 30                  // 1 GiB
	maxArgonMemory     = maxKDFMemoryBytes / 1024 // KiB
	maxArgonIterations = 64
	maxParallelism     = 16
	maxScryptN         = 1 << 22
	maxScryptR         = 32
)

// Supported KDF algorithms
const (
	KDFArgon2id = "argon2id"
	KDFScrypt   = "scrypt"
)

var ErrInvalidKDFParams = errors.New("invalid kdf parameters")

// KDFParams holds the cost parameters recorded next to the salt.
// For scrypt, Iterations is N, Memory is r and Parallelism is p.
type KDFParams struct {
	Algo        string `json:"algo"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams returns sensible default parameters
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algo:        KDFArgon2id,
		Memory:      DefaultMemory,
		Iterations:  DefaultIterations,
		Parallelism: DefaultParallelism,
	}
}

// Validate rejects unknown algorithms and costs outside what this build will run.
func (p KDFParams) Validate() error {
	switch p.Algo {
	case KDFArgon2id:
		if p.Iterations == 0 || p.Iterations > maxArgonIterations {
			return fmt.Errorf("%w: argon2id iterations %d", ErrInvalidKDFParams, p.Iterations)
		}
		if p.Parallelism == 0 || p.Parallelism > maxParallelism {
			return fmt.Errorf("%w: argon2id parallelism %d", ErrInvalidKDFParams, p.Parallelism)
		}
		if p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxArgonMemory {
			return fmt.Errorf("%w: argon2id memory %d KiB", ErrInvalidKDFParams, p.Memory)
		}
	case KDFScrypt:
		n := p.Iterations
		if n < 2 || n > maxScryptN || n&(n-1) != 0 {
			return fmt.Errorf("%w: scrypt N %d", ErrInvalidKDFParams, n)
		}
		if p.Memory == 0 || p.Memory > maxScryptR {
			return fmt.Errorf("%w: scrypt r %d", ErrInvalidKDFParams, p.Memory)
		}
		if p.Parallelism == 0 || p.Parallelism > maxParallelism {
			return fmt.Errorf("%w: scrypt p %d", ErrInvalidKDFParams, p.Parallelism)
		}
		if mem := 128 * uint64(p.Memory) * (uint64(n) + uint64(p.Parallelism)); mem > maxKDFMemoryBytes {
			return fmt.Errorf("%w: scrypt needs %d bytes", ErrInvalidKDFParams, mem)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidKDFParams, p.Algo)
	}
	return nil
}

// String renders the parameters for logs.
func (p KDFParams) String() string {
	return fmt.Sprintf("%s(m=%d,t=%d,p=%d)", p.Algo, p.Memory, p.Iterations, p.Parallelism)
}

// Derive derives a KeySize key from the master password, salt and params.
// Params must have passed Validate; the same inputs always yield the same key.
func Derive(password []byte, salt []byte, params KDFParams) []byte {
	switch params.Algo {
	case KDFScrypt:
		key, err := scrypt.Key(password, salt, int(params.Iterations), int(params.Memory), int(params.Parallelism), KeySize)
		if err != nil {
			// only reachable with params that Validate rejects
			panic(fmt.Sprintf("crypto: scrypt: %v", err))
		}
		return key
	default:
		return argon2.IDKey(password, salt, params.Iterations, params.Memory, params.Parallelism, KeySize)
	}
}

// GenerateSalt generates a random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
