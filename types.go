package offsetauth

import (
	"time"

	"github.com/neenza/offsetauth/users"
)

// UserProfile is the public view of a user. It never carries the password
// digest.
type UserProfile struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Disabled bool   `json:"disabled"`
}

func profileOf(rec *users.Record) UserProfile {
	return UserProfile{
		Username: rec.Username,
		Email:    rec.Email,
		FullName: rec.FullName,
		Disabled: rec.Disabled,
	}
}

// TokenPair is what the transport hands to the client: a signed access
// token and an opaque session id. The refresh credential stays server-side.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	SessionID        string
	SessionExpiresAt time.Time
}

// LoginResult is returned by Login.
type LoginResult struct {
	TokenPair
	User UserProfile
}

// RegisterRequest carries the fields accepted by Register.
type RegisterRequest struct {
	Username string
	Email    string
	FullName string
	Password string
}

// SecurityFlags reports the session policy in force and whether the
// session is bound to a client.
type SecurityFlags struct {
	SingleDeviceEnforcement bool `json:"single_device_enforcement"`
	SessionFingerprinting   bool `json:"session_fingerprinting"`
	FingerprintStored       bool `json:"fingerprint_stored"`
}

// ClientInfo echoes the client attributes seen on the current request.
type ClientInfo struct {
	CurrentIP        string `json:"current_ip"`
	CurrentUserAgent string `json:"current_user_agent"`
}

// SessionStatus is the diagnostic view of a session. SessionID is redacted.
type SessionStatus struct {
	SessionID string        `json:"session_id"`
	Username  string        `json:"username"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Security  SecurityFlags `json:"security_features"`
	Client    ClientInfo    `json:"client_info"`
}

// HealthStatus reports store reachability. Degraded stores are serving
// from process memory and Ready stays true.
type HealthStatus struct {
	Ready            bool          `json:"ready"`
	UsersDegraded    bool          `json:"users_degraded"`
	SessionsDegraded bool          `json:"sessions_degraded"`
	Latency          time.Duration `json:"-"`
}

// SeedUser describes an account created at startup when absent.
type SeedUser struct {
	Username string
	Password string
	Email    string
	FullName string
	Disabled bool
}

// DefaultSeedUsers are the demo accounts shipped with the quoting backend.
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{Username: "admin", Password: "admin123", Email: "admin@example.com", FullName: "Admin User"},
		{Username: "user1", Password: "user123", Email: "user1@example.com", FullName: "User One"},
	}
}
