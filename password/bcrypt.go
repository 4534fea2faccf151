package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes and verifies $2a$/$2b$/$2y$ digests.
type Bcrypt struct {
	cost     int
	minBytes int
}

// NewBcrypt clamps cost into bcrypt's accepted range; zero selects
// bcrypt.DefaultCost.
func NewBcrypt(cost, minPasswordBytes int) *Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if minPasswordBytes < 1 {
		minPasswordBytes = 1
	}
	return &Bcrypt{cost: cost, minBytes: minPasswordBytes}
}

// bcrypt only reads the first 72 bytes; longer input is refused rather
// than silently truncated.
const bcryptMaxPasswordBytes = 72

func (b *Bcrypt) Hash(password string) (string, error) {
	if err := checkLength(password, b.minBytes, bcryptMaxPasswordBytes); err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify returns (false, nil) on mismatch and an error only for
// digests bcrypt cannot parse.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, err
	}
}

// NeedsUpgrade reports a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}
