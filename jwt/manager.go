package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token classes carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid wraps every verification failure: bad signature,
	// wrong algorithm, expiry, malformed input, missing subject.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrWrongTokenType is returned when a well-signed token carries the
	// other class in typ.
	ErrWrongTokenType = errors.New("token type mismatch")
)

// Config configures a Manager. AccessKey and RefreshKey must both be set
// and must differ.
type Config struct {
	AccessKey    []byte
	RefreshKey   []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// Now overrides the clock used for minting and verification.
	Now func() time.Time
}

// Manager is safe for concurrent use once built.
type Manager struct {
	config Config
}

// Claims is the payload of both token classes.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessKey) == 0 || len(cfg.RefreshKey) == 0 {
		return nil, errors.New("access and refresh keys are required")
	}
	if bytes.Equal(cfg.AccessKey, cfg.RefreshKey) {
		return nil, errors.New("access and refresh keys must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cfg.AccessKey = bytes.Clone(cfg.AccessKey)
	cfg.RefreshKey = bytes.Clone(cfg.RefreshKey)

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// MintAccess signs an access token for username and returns it with its expiry.
func (j *Manager) MintAccess(username string) (string, time.Time, error) {
	return j.mint(username, TypeAccess, j.config.AccessKey, j.config.AccessTTL)
}

// MintRefresh signs a refresh token for username and returns it with its expiry.
func (j *Manager) MintRefresh(username string) (string, time.Time, error) {
	return j.mint(username, TypeRefresh, j.config.RefreshKey, j.config.RefreshTTL)
}

// VerifyAccess returns the subject of a valid access token.
func (j *Manager) VerifyAccess(token string) (string, error) {
	return j.verify(token, TypeAccess, j.config.AccessKey)
}

// VerifyRefresh returns the subject of a valid refresh token.
func (j *Manager) VerifyRefresh(token string) (string, error) {
	return j.verify(token, TypeRefresh, j.config.RefreshKey)
}

func (j *Manager) mint(username, typ string, key []byte, ttl time.Duration) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, errors.New("subject is required")
	}

	now := j.config.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Truncate(time.Second), nil
}

func (j *Manager) verify(tokenStr, typ string, key []byte) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Type != typ {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, ErrWrongTokenType)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(j.config.Now().Add(j.config.MaxFutureIAT)) {
			return "", fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}

	return claims.Subject, nil
}
