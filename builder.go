package offsetauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/neenza/offsetauth/internal"
	"github.com/neenza/offsetauth/internal/fallback"
	"github.com/neenza/offsetauth/internal/flows"
	"github.com/neenza/offsetauth/jwt"
	"github.com/neenza/offsetauth/password"
	"github.com/neenza/offsetauth/session"
	"github.com/neenza/offsetauth/users"
	"github.com/redis/go-redis/v9"
)

const (
	storeNameUsers    = "users"
	storeNameSessions = "sessions"
)

var errNoRedis = errors.New("no redis client configured")

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the durable store. Without it both stores run in memory
// from the start.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for token expiry and session
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires stores and pings Redis. A
// failed ping is not fatal: the affected store switches to its in-memory
// fallback and a warning is logged.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessKey:  cfg.JWT.AccessSecret,
		RefreshKey: cfg.JWT.RefreshSecret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- PASSWORD HASHING --------
	hasher, err := password.NewHasher(cfg.Password.Algorithm, password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinPasswordBytes,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	}, cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// Verified against on unknown usernames so both login failures cost
	// one hash evaluation.
	dummy, err := hasher.Hash("offsetauth-timing-equalizer")
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	onHeal := func(key string, cause error) {
		logger.Warn("offsetauth: deleted malformed store value", "key", key, "error", cause)
	}
	userSwitch := fallback.New(storeNameUsers, engine.onFallback)
	sessionSwitch := fallback.New(storeNameSessions, engine.onFallback)

	var userPrimary users.Store
	var sessionPrimary session.Store
	if b.redis != nil {
		userPrimary = users.NewRedisStore(b.redis, users.RedisOptions{
			Namespace: cfg.Store.Namespace,
			Timeout:   cfg.Store.Timeout,
			OnHeal:    onHeal,
		})
		sessionPrimary = session.NewRedisStore(b.redis, session.RedisOptions{
			Namespace: cfg.Store.Namespace,
			Timeout:   cfg.Store.Timeout,
			Now:       now,
			OnHeal:    onHeal,
		})
	} else {
		userSwitch.Trip(errNoRedis)
		sessionSwitch.Trip(errNoRedis)
	}

	engine.userStore = users.NewFallbackStore(userPrimary, users.NewMemoryStore(), userSwitch)
	engine.sessionStore = session.NewFallbackStore(sessionPrimary, session.NewMemoryStore(now), sessionSwitch)
	engine.directory = users.NewDirectory(engine.userStore, hasher, dummy)

	if b.redis != nil {
		// Each store bounds its own round trip; an unreachable server trips
		// the switch and is logged by onFallback.
		ctx := context.Background()
		_ = engine.userStore.Ping(ctx)
		_ = engine.sessionStore.Ping(ctx)
	}

	// -------- SESSION MANAGER --------
	sm, err := flows.NewSessionManager(flows.SessionDeps{
		Config: flows.SessionManagerConfig{
			EnforceSingleDevice: cfg.Session.EnforceSingleDevice,
			Fingerprinting:      cfg.Session.Fingerprinting,
			AccessTTL:           cfg.JWT.AccessTTL,
			RefreshTTL:          cfg.JWT.RefreshTTL,
			InheritFingerprint:  cfg.Session.InheritFingerprint,
		},
		Store:       engine.sessionStore,
		Credentials: jm,
		Now:         now,
		NewSessionID: func() (string, error) {
			id, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
		ValidSessionID:       internal.ValidSessionID,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		HashBindingValue:     internal.HashBindingValue,
		BindingEqual:         internal.BindingEqual,
		MetricInc:            func(id int) { engine.metricInc(MetricID(id)) },
		Metrics: flows.SessionMetricIDs{
			Created:             int(MetricSessionCreated),
			Rotated:             int(MetricSessionRotated),
			Revoked:             int(MetricSessionRevoked),
			Superseded:          int(MetricSessionSuperseded),
			FingerprintBound:    int(MetricFingerprintBound),
			FingerprintMismatch: int(MetricFingerprintMismatch),
			InvalidCredential:   int(MetricSessionCredentialInvalid),
		},
		Warn: logger.Warn,
	})
	if err != nil {
		return nil, err
	}
	engine.sessions = sm

	b.built = true

	return engine, nil
}
