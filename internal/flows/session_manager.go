package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neenza/offsetauth/session"
)

// RejectReason names why a session was refused.
type RejectReason string

const (
	ReasonNotFound            RejectReason = "not_found"
	ReasonSuperseded          RejectReason = "superseded"
	ReasonFingerprintMismatch RejectReason = "fingerprint_mismatch"
	ReasonInvalidCredential   RejectReason = "invalid_credential"
)

// RejectedError is returned by Validate and Rotate for every session the
// caller must treat as logged out.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return "session rejected: " + string(e.Reason)
}

// ReasonOf extracts the rejection reason from err.
func ReasonOf(err error) (RejectReason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

func reject(reason RejectReason) error {
	return &RejectedError{Reason: reason}
}

// Created describes a freshly persisted session.
type Created struct {
	SessionID string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager runs create, validate, rotate and terminate against the
// injected store.
type SessionManager struct {
	deps SessionDeps
}

// NewSessionManager returns a manager with immutable dependency wiring.
func NewSessionManager(deps SessionDeps) (*SessionManager, error) {
	if deps.Store == nil || deps.Credentials == nil {
		return nil, errors.New("session manager requires a store and refresh credentials")
	}
	if deps.Config.RefreshTTL <= 0 {
		return nil, errors.New("session manager requires a positive refresh TTL")
	}
	if deps.NewSessionID == nil {
		return nil, errors.New("session manager requires a session id source")
	}
	if deps.ValidSessionID == nil {
		deps.ValidSessionID = func(string) bool { return true }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.HashBindingValue == nil || deps.BindingEqual == nil {
		return nil, errors.New("session manager requires binding hash functions")
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	return &SessionManager{deps: deps}, nil
}

// Config returns the resolved policy.
func (m *SessionManager) Config() SessionManagerConfig {
	return m.deps.Config
}

// CreateSession persists a new session for username and returns its id.
//
// Under single-device enforcement every prior session of the user is
// deleted first. Two concurrent logins race here and the last writer of the
// user-session index wins; no cross-request lock is taken.
func (m *SessionManager) CreateSession(ctx context.Context, username string) (Created, error) {
	return m.create(ctx, username, nil)
}

func (m *SessionManager) create(ctx context.Context, username string, fp *session.Fingerprint) (Created, error) {
	if username == "" {
		return Created{}, errors.New("session username is required")
	}
	cfg := m.deps.Config

	if cfg.EnforceSingleDevice {
		n, err := m.deps.Store.DeleteAllForUser(ctx, username)
		if err != nil {
			return Created{}, fmt.Errorf("revoke prior sessions: %w", err)
		}
		for i := 0; i < n; i++ {
			m.deps.MetricInc(m.deps.Metrics.Revoked)
		}
	}

	id, err := m.deps.NewSessionID()
	if err != nil {
		return Created{}, err
	}
	refresh, _, err := m.deps.Credentials.MintRefresh(username)
	if err != nil {
		return Created{}, err
	}

	now := m.deps.Now()
	rec := &session.Record{
		SessionID:    id,
		Username:     username,
		RefreshToken: refresh,
		CreatedAt:    now,
		ExpiresAt:    now.Add(cfg.RefreshTTL),
		Fingerprint:  fp,
	}
	if err := m.deps.Store.Put(ctx, rec, cfg.RefreshTTL); err != nil {
		return Created{}, err
	}
	if cfg.EnforceSingleDevice {
		if err := m.deps.Store.SetCurrent(ctx, username, id, cfg.RefreshTTL); err != nil {
			return Created{}, err
		}
	}

	m.deps.MetricInc(m.deps.Metrics.Created)
	return Created{
		SessionID: id,
		Username:  username,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Validate loads sessionID and enforces single-device and fingerprint
// policy. The first validation of an unbound session under fingerprinting
// captures the client's user agent and IP. Superseded, mismatched and
// credential-invalid sessions are deleted before the rejection returns.
func (m *SessionManager) Validate(ctx context.Context, sessionID string) (*session.Record, error) {
	rec, fp, err := m.check(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if fp != nil {
		rec.Fingerprint = fp
		err := m.deps.Store.Replace(ctx, rec)
		switch {
		case errors.Is(err, session.ErrNotFound):
			// Terminated or rotated since check loaded it.
			return nil, reject(ReasonNotFound)
		case err != nil:
			return nil, err
		}
		m.deps.MetricInc(m.deps.Metrics.FingerprintBound)
	}
	return rec, nil
}

// Rotate validates sessionID, deletes it and creates a replacement for the
// same user. The old id is unusable once Rotate returns successfully.
func (m *SessionManager) Rotate(ctx context.Context, sessionID string) (Created, error) {
	rec, fp, err := m.check(ctx, sessionID)
	if err != nil {
		return Created{}, err
	}
	if err := m.deps.Store.Delete(ctx, rec.SessionID); err != nil {
		return Created{}, err
	}

	var carry *session.Fingerprint
	if m.deps.Config.InheritFingerprint {
		carry = rec.Fingerprint
		if carry == nil {
			carry = fp
		}
	}
	created, err := m.create(ctx, rec.Username, carry)
	if err != nil {
		return Created{}, err
	}
	m.deps.MetricInc(m.deps.Metrics.Rotated)
	return created, nil
}

// Terminate deletes sessionID. Absent sessions are not an error. Under
// single-device enforcement the user-session index is cleared only while it
// still points at sessionID.
func (m *SessionManager) Terminate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	rec, err := m.deps.Store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil
	case err != nil:
		return err
	}

	if err := m.deps.Store.Delete(ctx, sessionID); err != nil {
		return err
	}
	if m.deps.Config.EnforceSingleDevice {
		if err := m.deps.Store.ClearCurrent(ctx, rec.Username, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// Inspect reports the stored session without binding a fingerprint or
// deleting anything. It applies the same rejection rules as Validate.
func (m *SessionManager) Inspect(ctx context.Context, sessionID string) (*session.Record, error) {
	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if reason, ok := m.superseded(ctx, rec); ok {
		return nil, reject(reason)
	}
	if m.deps.Config.Fingerprinting && rec.Fingerprint != nil && !m.fingerprintMatches(ctx, rec.Fingerprint) {
		return nil, reject(ReasonFingerprintMismatch)
	}
	if !m.credentialValid(rec) {
		return nil, reject(ReasonInvalidCredential)
	}
	return rec, nil
}

// check runs every rejection rule. When fingerprinting is on and the
// session is unbound it returns the fingerprint to bind; persisting it is
// left to the caller.
func (m *SessionManager) check(ctx context.Context, sessionID string) (*session.Record, *session.Fingerprint, error) {
	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if reason, ok := m.superseded(ctx, rec); ok {
		m.revoke(ctx, rec, reason)
		m.deps.MetricInc(m.deps.Metrics.Superseded)
		return nil, nil, reject(reason)
	}

	var bind *session.Fingerprint
	if m.deps.Config.Fingerprinting {
		if rec.Fingerprint == nil {
			bind = m.currentFingerprint(ctx)
		} else if !m.fingerprintMatches(ctx, rec.Fingerprint) {
			m.revoke(ctx, rec, ReasonFingerprintMismatch)
			m.deps.MetricInc(m.deps.Metrics.FingerprintMismatch)
			return nil, nil, reject(ReasonFingerprintMismatch)
		}
	}

	if !m.credentialValid(rec) {
		m.revoke(ctx, rec, ReasonInvalidCredential)
		m.deps.MetricInc(m.deps.Metrics.InvalidCredential)
		return nil, nil, reject(ReasonInvalidCredential)
	}

	return rec, bind, nil
}

func (m *SessionManager) load(ctx context.Context, sessionID string) (*session.Record, error) {
	// Ids the generator could never have produced skip the store.
	if sessionID == "" || !m.deps.ValidSessionID(sessionID) {
		return nil, reject(ReasonNotFound)
	}
	rec, err := m.deps.Store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, reject(ReasonNotFound)
	case err != nil:
		return nil, err
	}
	return rec, nil
}

// superseded treats a missing index entry the same as one naming another
// session: the index is written on every create under enforcement.
func (m *SessionManager) superseded(ctx context.Context, rec *session.Record) (RejectReason, bool) {
	if !m.deps.Config.EnforceSingleDevice {
		return "", false
	}
	current, err := m.deps.Store.Current(ctx, rec.Username)
	if err != nil {
		m.deps.Warn("offsetauth: user session index read failed", "error", err)
		return "", false
	}
	if current != rec.SessionID {
		return ReasonSuperseded, true
	}
	return "", false
}

func (m *SessionManager) credentialValid(rec *session.Record) bool {
	sub, err := m.deps.Credentials.VerifyRefresh(rec.RefreshToken)
	return err == nil && sub == rec.Username
}

func (m *SessionManager) currentFingerprint(ctx context.Context) *session.Fingerprint {
	return &session.Fingerprint{
		UserAgent: m.deps.HashBindingValue(m.deps.UserAgentFromContext(ctx)),
		IP:        m.deps.HashBindingValue(m.deps.ClientIPFromContext(ctx)),
	}
}

func (m *SessionManager) fingerprintMatches(ctx context.Context, stored *session.Fingerprint) bool {
	cur := m.currentFingerprint(ctx)
	uaOK := m.deps.BindingEqual(stored.UserAgent, cur.UserAgent)
	ipOK := m.deps.BindingEqual(stored.IP, cur.IP)
	return uaOK && ipOK
}

func (m *SessionManager) revoke(ctx context.Context, rec *session.Record, reason RejectReason) {
	if err := m.deps.Store.Delete(ctx, rec.SessionID); err != nil {
		m.deps.Warn("offsetauth: rejected session delete failed", "reason", string(reason), "error", err)
		return
	}
	m.deps.MetricInc(m.deps.Metrics.Revoked)
}
