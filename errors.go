package offsetauth

import "errors"

var (
	// ErrUnauthorized is returned for a missing, expired or forged access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for an unknown user and for a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionInvalid is matched by every *SessionError.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrAccountExists is returned by Register for a taken username.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountDisabled is returned for a disabled account after its
	// credentials were accepted.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidRegistration is returned for an empty username or password.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// SessionError reports a rejected session. Callers must drop both the
// access token and the session id: the session no longer exists or must
// not be used again.
type SessionError struct {
	Reason string
}

func (e *SessionError) Error() string {
	return "session invalid: " + e.Reason
}

// Is makes SessionError match ErrSessionInvalid and ErrUnauthorized.
func (e *SessionError) Is(target error) bool {
	return target == ErrSessionInvalid || target == ErrUnauthorized
}

// SessionRejectReason returns the reason carried by err, if any.
func SessionRejectReason(err error) (string, bool) {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Reason, true
	}
	return "", false
}
