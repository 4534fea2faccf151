package flows

import (
	"context"
	"time"

	"github.com/neenza/offsetauth/session"
)

// SessionManagerConfig is resolved once at startup. Behavior never changes
// mid-process.
type SessionManagerConfig struct {
	EnforceSingleDevice bool
	Fingerprinting      bool
	AccessTTL           time.Duration
	RefreshTTL          time.Duration

	// InheritFingerprint carries a bound fingerprint from the rotated
	// session into its replacement.
	InheritFingerprint bool
}

// RefreshCredentials mints and checks the server-held refresh credential.
type RefreshCredentials interface {
	MintRefresh(username string) (string, time.Time, error)
	VerifyRefresh(token string) (string, error)
}

// SessionMetricIDs maps session events to host metric ids.
type SessionMetricIDs struct {
	Created             int
	Rotated             int
	Revoked             int
	Superseded          int
	FingerprintBound    int
	FingerprintMismatch int
	InvalidCredential   int
}

// SessionDeps captures session manager dependencies.
type SessionDeps struct {
	Config      SessionManagerConfig
	Store       session.Store
	Credentials RefreshCredentials

	Now                  func() time.Time
	NewSessionID         func() (string, error)
	ValidSessionID       func(string) bool
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	HashBindingValue     func(string) string
	BindingEqual         func(a, b string) bool

	MetricInc func(int)
	Metrics   SessionMetricIDs
	Warn      func(string, ...any)
}
