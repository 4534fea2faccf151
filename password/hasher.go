package password

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm names accepted by NewHasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// ErrUnsupportedDigest is returned when a stored digest matches no known scheme.
var ErrUnsupportedDigest = errors.New("unsupported password digest")

type scheme interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Hasher writes new digests with one algorithm and verifies any digest
// whose prefix it recognises, so bcrypt records keep working after a
// switch to argon2id and vice versa.
type Hasher struct {
	algorithm string
	argon     *Argon2
	bcrypt    *Bcrypt
}

// NewHasher builds a Hasher that hashes with algorithm ("" means argon2id).
func NewHasher(algorithm string, argonCfg Config, bcryptCost int) (*Hasher, error) {
	switch algorithm {
	case "":
		algorithm = AlgorithmArgon2id
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("password: unknown algorithm %q", algorithm)
	}

	argon, err := NewArgon2(argonCfg)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		algorithm: algorithm,
		argon:     argon,
		bcrypt:    NewBcrypt(bcryptCost, argonCfg.MinPasswordBytes),
	}, nil
}

// Algorithm returns the algorithm used for new digests.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmBcrypt {
		return h.bcrypt.Hash(password)
	}
	return h.argon.Hash(password)
}

func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	s, err := h.schemeFor(encodedHash)
	if err != nil {
		return false, err
	}
	return s.Verify(password, encodedHash)
}

// NeedsUpgrade is true when the digest uses a different algorithm than
// the configured one or weaker parameters.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	s, err := h.schemeFor(encodedHash)
	if err != nil {
		return false, err
	}
	if s != h.current() {
		return true, nil
	}
	return s.NeedsUpgrade(encodedHash)
}

func (h *Hasher) current() scheme {
	if h.algorithm == AlgorithmBcrypt {
		return h.bcrypt
	}
	return h.argon
}

func (h *Hasher) schemeFor(encodedHash string) (scheme, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon, nil
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return h.bcrypt, nil
	default:
		return nil, ErrUnsupportedDigest
	}
}
