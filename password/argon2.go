package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMaxPasswordBytes caps hashing work for hostile inputs.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned when a password is below MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedDigest wraps every argon2id digest parse failure.
	ErrMalformedDigest = errors.New("malformed argon2id digest")
)

// Config holds Argon2id cost parameters and the accepted password length.
// MinPasswordBytes of zero still rejects the empty password; a
// MaxPasswordBytes of zero selects DefaultMaxPasswordBytes.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MinPasswordBytes < 0 || c.MaxPasswordBytes < 0:
		return errors.New("password length bounds must be >= 0")
	case c.MaxPasswordBytes > 0 && c.MinPasswordBytes > c.MaxPasswordBytes:
		return errors.New("password min length exceeds max length")
	}
	return nil
}

// Argon2 hashes new passwords as argon2id PHC strings.
type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.MinPasswordBytes = max(cfg.MinPasswordBytes, 1)
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// phc is a decoded argon2id digest.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// String renders the digest in PHC form with unpadded base64.
func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
}

// Hash returns a PHC-encoded argon2id digest with a fresh random salt.
// Password bytes are used as given, with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, a.config.MinPasswordBytes, a.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	d := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := rand.Read(d.salt); err != nil {
		return "", err
	}
	d.key = d.derive(password)
	return d.String(), nil
}

// Verify recomputes the key with the parameters stored in encodedHash.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	d, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.derive(password), d.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	d, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.config.Memory ||
		d.time < a.config.Time ||
		d.parallelism < a.config.Parallelism ||
		uint32(len(d.key)) != a.config.KeyLength
	return weaker, nil
}

func parsePHC(encoded string) (phc, error) {
	var d phc

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return d, fmt.Errorf("%w: not an argon2id PHC string", ErrMalformedDigest)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return d, fmt.Errorf("%w: version: %v", ErrMalformedDigest, err)
	}
	if version != argon2.Version {
		return d, fmt.Errorf("%w: unsupported version %d", ErrMalformedDigest, version)
	}

	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.parallelism); err != nil || n != 3 {
		return d, fmt.Errorf("%w: parameters %q", ErrMalformedDigest, parts[3])
	}
	if d.memory < minMemoryKB || d.time < minTimeCost || d.parallelism < minParallelism {
		return d, fmt.Errorf("%w: parameters below minimum", ErrMalformedDigest)
	}

	var err error
	if d.salt, err = decodeB64(parts[4]); err != nil || len(d.salt) < int(minSaltLength) {
		return d, fmt.Errorf("%w: salt", ErrMalformedDigest)
	}
	if d.key, err = decodeB64(parts[5]); err != nil || len(d.key) == 0 {
		return d, fmt.Errorf("%w: key", ErrMalformedDigest)
	}
	return d, nil
}

// decodeB64 accepts padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func checkLength(password string, minBytes, maxBytes int) error {
	if password == "" || len(password) < minBytes {
		return ErrPasswordTooShort
	}
	if len(password) > maxBytes {
		return ErrPasswordTooLong
	}
	return nil
}
