package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is 256 bits of entropy; its string form is 43 base64url chars.
type SessionID [32]byte

const redactedPrefixLen = 8

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, cookie-safe
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// ValidSessionID reports whether sessionID has the shape NewSessionID emits.
func ValidSessionID(sessionID string) bool {
	_, err := ParseSessionID(sessionID)
	return err == nil
}

// RedactSessionID keeps a short prefix for diagnostics. The prefix carries
// 48 bits at most and cannot be used to look a session up.
func RedactSessionID(sessionID string) string {
	if len(sessionID) <= redactedPrefixLen {
		return "..."
	}
	return sessionID[:redactedPrefixLen] + "..."
}
