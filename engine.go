package offsetauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neenza/offsetauth/internal"
	"github.com/neenza/offsetauth/internal/flows"
	"github.com/neenza/offsetauth/jwt"
	"github.com/neenza/offsetauth/password"
	"github.com/neenza/offsetauth/session"
	"github.com/neenza/offsetauth/users"
)

// Engine is the auth gateway. It is safe for concurrent use once built.
type Engine struct {
	config       Config
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
	jwtManager   *jwt.Manager
	hasher       *password.Hasher
	userStore    *users.FallbackStore
	sessionStore *session.FallbackStore
	directory    *users.Directory
	sessions     *flows.SessionManager
}

// Config returns a copy of the resolved configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.sessions != nil && e.directory != nil
}

func (e *Engine) onFallback(store string, cause error) {
	e.metricInc(MetricStoreFallback)
	e.logger.Warn("offsetauth: store degraded to in-memory fallback",
		"store", store,
		"error", cause,
	)
}

// Login checks username and password and opens a session. Unknown users and
// wrong passwords both return ErrInvalidCredentials. A disabled account
// returns ErrAccountDisabled only after its password was accepted.
func (e *Engine) Login(ctx context.Context, username, pass string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	rec, err := e.directory.Authenticate(ctx, username, pass)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		if errors.Is(err, users.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if rec.Disabled {
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricAccountDisabled)
		return nil, ErrAccountDisabled
	}

	e.upgradeDigest(ctx, rec, pass)

	created, err := e.sessions.CreateSession(ctx, rec.Username)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("create session: %w", err)
	}
	pair, err := e.issue(created)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	return &LoginResult{TokenPair: pair, User: profileOf(rec)}, nil
}

// upgradeDigest rehashes a password stored with weaker parameters or the
// other algorithm. Failures are logged and never fail the login.
func (e *Engine) upgradeDigest(ctx context.Context, rec *users.Record, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(rec.HashedPassword)
	if err != nil || !stale {
		return
	}
	digest, err := e.hasher.Hash(pass)
	if err != nil {
		e.logger.Warn("offsetauth: password rehash failed", "username", rec.Username, "error", err)
		return
	}
	if err := e.directory.Update(ctx, rec.Username, users.Patch{HashedPassword: &digest}); err != nil {
		e.logger.Warn("offsetauth: password rehash not stored", "username", rec.Username, "error", err)
	}
}

// Refresh rotates sessionID into a new session and mints a new access
// token. Every rejection is a *SessionError; the old id is dead either way.
func (e *Engine) Refresh(ctx context.Context, sessionID string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	defer func() {
		e.metrics.Observe(MetricRefreshLatency, e.now().Sub(start))
	}()

	created, err := e.sessions.Rotate(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if reason, ok := flows.ReasonOf(err); ok {
			return nil, &SessionError{Reason: string(reason)}
		}
		return nil, err
	}

	pair, err := e.issue(created)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	return &pair, nil
}

func (e *Engine) issue(created flows.Created) (TokenPair, error) {
	access, accessExp, err := e.jwtManager.MintAccess(created.Username)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		SessionID:        created.SessionID,
		SessionExpiresAt: created.ExpiresAt,
	}, nil
}

// Logout terminates sessionID. It succeeds for unknown, expired and already
// terminated sessions.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.sessions.Terminate(ctx, sessionID); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

// Register creates an enabled account. A taken username returns
// ErrAccountExists.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidRegistration
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
		}
		return nil, err
	}

	rec := &users.Record{
		Username:       username,
		Email:          strings.TrimSpace(req.Email),
		FullName:       strings.TrimSpace(req.FullName),
		HashedPassword: digest,
	}
	if err := e.directory.Create(ctx, rec); err != nil {
		if errors.Is(err, users.ErrExists) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrAccountExists
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	profile := profileOf(rec)
	return &profile, nil
}

// VerifyAccess returns the username carried by a valid access token. It
// never touches the session store.
func (e *Engine) VerifyAccess(token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if token == "" {
		return "", ErrUnauthorized
	}
	username, err := e.jwtManager.VerifyAccess(token)
	if err != nil {
		return "", ErrUnauthorized
	}
	return username, nil
}

// WhoAmI resolves an access token to its user's profile.
func (e *Engine) WhoAmI(ctx context.Context, accessToken string) (*UserProfile, error) {
	username, err := e.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return e.Profile(ctx, username)
}

// Profile loads the profile of an already authenticated username. A user
// deleted since the token was minted is ErrUnauthorized; a disabled one is
// ErrAccountDisabled.
func (e *Engine) Profile(ctx context.Context, username string) (*UserProfile, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	rec, err := e.directory.Get(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if rec.Disabled {
		return nil, ErrAccountDisabled
	}
	profile := profileOf(rec)
	return &profile, nil
}

// SessionStatus describes sessionID without binding or deleting it. The
// returned id is redacted to a short prefix.
func (e *Engine) SessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	rec, err := e.sessions.Inspect(ctx, sessionID)
	if err != nil {
		if reason, ok := flows.ReasonOf(err); ok {
			return nil, &SessionError{Reason: string(reason)}
		}
		return nil, err
	}

	return &SessionStatus{
		SessionID: internal.RedactSessionID(rec.SessionID),
		Username:  rec.Username,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		Security: SecurityFlags{
			SingleDeviceEnforcement: e.config.Session.EnforceSingleDevice,
			SessionFingerprinting:   e.config.Session.Fingerprinting,
			FingerprintStored:       rec.Fingerprint != nil,
		},
		Client: ClientInfo{
			CurrentIP:        clientIPFromContext(ctx),
			CurrentUserAgent: userAgentFromContext(ctx),
		},
	}, nil
}

// Health pings both stores. A store on its in-memory fallback is reported
// as degraded but ready.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	start := e.now()
	usersErr := e.userStore.Ping(ctx)
	sessionsErr := e.sessionStore.Ping(ctx)
	return HealthStatus{
		Ready:            usersErr == nil && sessionsErr == nil,
		UsersDegraded:    e.userStore.Degraded(),
		SessionsDegraded: e.sessionStore.Degraded(),
		Latency:          e.now().Sub(start),
	}
}

// SeedUsers creates each missing account. Existing accounts are left as
// they are.
func (e *Engine) SeedUsers(ctx context.Context, seeds []SeedUser) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	created := 0
	for _, s := range seeds {
		digest, err := e.hasher.Hash(s.Password)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", s.Username, err)
		}
		err = e.directory.Create(ctx, &users.Record{
			Username:       s.Username,
			Email:          s.Email,
			FullName:       s.FullName,
			HashedPassword: digest,
			Disabled:       s.Disabled,
		})
		switch {
		case errors.Is(err, users.ErrExists):
			continue
		case err != nil:
			return created, fmt.Errorf("seed %q: %w", s.Username, err)
		}
		created++
	}
	if created > 0 {
		e.logger.Info("offsetauth: seeded users", "count", created)
	}
	return created, nil
}
