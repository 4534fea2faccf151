package offsetauth

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/neenza/offsetauth/password"
)

// Config is resolved once at startup and copied into the Engine. Changing
// it after Build has no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Store    StoreConfig
	Password PasswordConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two HS256 signing keys. They must both be set and
// must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	// EnforceSingleDevice revokes every other session of a user on login.
	EnforceSingleDevice bool
	// Fingerprinting binds a session to the user agent and IP seen on its
	// first validation.
	Fingerprinting bool
	// InheritFingerprint carries the binding across refresh rotation. With
	// false every rotated session is unbound again and trusts whichever
	// client validates it first.
	InheritFingerprint bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the access_token and session_id cookies. Both are
// always HttpOnly.
type CookieConfig struct {
	Secure          bool
	SameSite        http.SameSite
	Domain          string
	Path            string
	AccessTokenName string
	SessionIDName   string
	// ExposeAccessTokenInBody also returns the access token in the login
	// and refresh JSON bodies, where page scripts can read it. Off by
	// default; enable only for non-browser bearer clients.
	ExposeAccessTokenInBody bool
}

/*
====================================
STORE CONFIG
====================================
*/

type StoreConfig struct {
	// Namespace prefixes every Redis key as "<namespace>:".
	Namespace string
	// Timeout bounds every Redis round trip.
	Timeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm        string // "argon2id" (default) or "bcrypt"
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	BcryptCost       int
	MinPasswordBytes int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults without signing keys; callers
// must supply both secrets.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			EnforceSingleDevice: false,
			Fingerprinting:      false,
			InheritFingerprint:  true,
		},
		Cookie: CookieConfig{
			Secure:          true,
			SameSite:        http.SameSiteLaxMode,
			Path:            "/",
			AccessTokenName: "access_token",
			SessionIDName:   "session_id",
		},
		Store: StoreConfig{
			Timeout: 3 * time.Second,
		},
		Password: PasswordConfig{
			Algorithm:        password.AlgorithmArgon2id,
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			BcryptCost:       12,
			MinPasswordBytes: 1,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the engine cannot run with. It is called
// by Build.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 {
		return errors.New("JWT AccessSecret is required")
	}
	if len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT RefreshSecret is required")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Cookie
	if c.Cookie.AccessTokenName == "" || c.Cookie.SessionIDName == "" {
		return errors.New("Cookie names must be set")
	}
	if c.Cookie.AccessTokenName == c.Cookie.SessionIDName {
		return errors.New("Cookie names must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Store
	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 1 {
		return errors.New("Password MinPasswordBytes must be >= 1")
	}
	if c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes {
		return errors.New("Password MaxPasswordBytes must be >= MinPasswordBytes")
	}

	return nil
}
