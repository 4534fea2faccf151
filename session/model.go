package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fingerprint is the client binding captured on first use of a session.
// Both fields are hex SHA-256 digests.
type Fingerprint struct {
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`
}

// Record is the stored form of a session. RefreshToken never leaves the
// server.
type Record struct {
	SessionID    string       `json:"session_id"`
	Username     string       `json:"username"`
	RefreshToken string       `json:"refresh_token"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Fingerprint  *Fingerprint `json:"fingerprint,omitempty"`
}

// Expired reports whether the record must be treated as absent at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Fingerprint != nil {
		fp := *r.Fingerprint
		out.Fingerprint = &fp
	}
	return &out
}

func (r *Record) validate() error {
	switch {
	case r.SessionID == "":
		return fmt.Errorf("%w: missing session_id", ErrMalformed)
	case r.Username == "":
		return fmt.Errorf("%w: missing username", ErrMalformed)
	case r.RefreshToken == "":
		return fmt.Errorf("%w: missing refresh_token", ErrMalformed)
	case r.CreatedAt.IsZero(), r.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing timestamps", ErrMalformed)
	case r.Fingerprint != nil && (r.Fingerprint.UserAgent == "" || r.Fingerprint.IP == ""):
		return fmt.Errorf("%w: partial fingerprint", ErrMalformed)
	}
	return nil
}

// Encode serializes a record after checking its required fields.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformed)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Decode parses a stored value. Any shape problem is reported as ErrMalformed.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
