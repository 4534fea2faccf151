package offsetauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/neenza/offsetauth/users"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0000000000000")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-000000000000")
	cfg.JWT.Issuer = "offsetauth-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *testClock
}

func newTestEngine(t testing.TB, mutate func(*Config)) *testEngine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &testClock{now: time.Now().Truncate(time.Second)}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(discardLogger()).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return &testEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock}
}

func mustRegister(t testing.TB, e *Engine, username, pass string) {
	t.Helper()
	if _, err := e.Register(context.Background(), RegisterRequest{Username: username, Password: pass}); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestAliceScenario(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	mustRegister(t, e.Engine, "alice", "pw123")

	res, err := e.Login(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(res.SessionID) < 43 || !urlSafe.MatchString(res.SessionID) {
		t.Fatalf("session id must be >= 43 url-safe chars, got %q", res.SessionID)
	}
	if sub, err := e.jwtManager.VerifyAccess(res.AccessToken); err != nil || sub != "alice" {
		t.Fatalf("access token subject: sub=%q err=%v", sub, err)
	}
	if res.User.Username != "alice" {
		t.Fatalf("unexpected login profile %+v", res.User)
	}

	me, err := e.WhoAmI(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if me.Username != "alice" || me.Disabled {
		t.Fatalf("unexpected profile %+v", me)
	}

	pair, err := e.Refresh(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.SessionID == res.SessionID {
		t.Fatal("refresh must return a different session id")
	}
	if _, err := e.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	_, wrongPass := e.Login(ctx, "alice", "wrong")
	_, ghost := e.Login(ctx, "ghost", "anything")

	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(ghost, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPass, ghost)
	}
	if wrongPass.Error() != ghost.Error() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", wrongPass, ghost)
	}
	if got := e.metrics.Value(MetricLoginFailure); got != 2 {
		t.Fatalf("expected 2 login failures, got %d", got)
	}
}

func TestLoginNeverReturnsRefreshCredential(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	res, err := e.Login(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.jwtManager.VerifyRefresh(res.SessionID); err == nil {
		t.Fatal("session id must not be a refresh credential")
	}
	if _, err := e.jwtManager.VerifyRefresh(res.AccessToken); err == nil {
		t.Fatal("access token must not verify as refresh")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.SeedUsers(ctx, []SeedUser{{Username: "bob", Password: "pw", Disabled: true}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := e.Login(ctx, "bob", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password on disabled account must look like any failure, got %v", err)
	}
	if _, err := e.Login(ctx, "bob", "pw"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestWhoAmIDisabledAfterLogin(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	res, err := e.Login(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	disabled := true
	if err := e.directory.Update(ctx, "alice", users.Patch{Disabled: &disabled}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := e.WhoAmI(ctx, res.AccessToken); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestWhoAmIIgnoresSessionState(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	res, _ := e.Login(ctx, "alice", "pw123")
	if err := e.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Access tokens are stateless and live out their TTL.
	if _, err := e.WhoAmI(ctx, res.AccessToken); err != nil {
		t.Fatalf("whoami after logout: %v", err)
	}

	e.clock.Advance(e.config.JWT.AccessTTL + time.Second)
	if _, err := e.WhoAmI(ctx, res.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expiry to unauthorize, got %v", err)
	}
}

func TestWhoAmIRejectsGarbage(t *testing.T) {
	e := newTestEngine(t, nil)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		if _, err := e.WhoAmI(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q: expected ErrUnauthorized, got %v", tok, err)
		}
	}
}

func TestLogoutIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	res, _ := e.Login(ctx, "alice", "pw123")
	for i := 0; i < 2; i++ {
		if err := e.Logout(ctx, res.SessionID); err != nil {
			t.Fatalf("logout #%d: %v", i+1, err)
		}
	}

	_, err := e.Refresh(ctx, res.SessionID)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("refresh after logout: %v", err)
	}
	if reason, _ := SessionRejectReason(err); reason != "not_found" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestRefreshOldSessionRejected(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustRegister(t, e.Engine, "alice", "pw123")

	res, _ := e.Login(ctx, "alice", "pw123")
	pair, err := e.Refresh(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := e.Refresh(ctx, res.SessionID); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("old session id must be dead, got %v", err)
	}
	if _, err := e.Refresh(ctx, pair.SessionID); err != nil {
		t.Fatalf("new session id must refresh: %v", err)
	}
}

func TestSingleDeviceRefreshSuperseded(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Session.EnforceSingleDevice = true })
	ctx := context.Background()
	mustRegister(t, e.Engine, "u", "pw")

	a, _ := e.Login(ctx, "u", "pw")

	// Simulate a replica that lost the race to delete A: restore A's
	// record after B's login so only the index tells them apart.
	raw, err := e.mr.Get("session:" + a.SessionID)
	if err != nil {
		t.Fatalf("read A: %v", err)
	}
	b, err := e.Login(ctx, "u", "pw")
	if err != nil {
		t.Fatalf("login B: %v", err)
	}
	if err := e.mr.Set("session:"+a.SessionID, raw); err != nil {
		t.Fatalf("restore A: %v", err)
	}

	_, err = e.Refresh(ctx, a.SessionID)
	if reason, _ := SessionRejectReason(err); reason != "superseded" {
		t.Fatalf("expected superseded, got %v", err)
	}
	if _, err := e.Refresh(ctx, b.SessionID); err != nil {
		t.Fatalf("refresh B: %v", err)
	}
	if e.metrics.Value(MetricSessionSuperseded) != 1 {
		t.Fatal("expected superseded metric")
	}
}

func TestFingerprintingThroughEngine(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Session.Fingerprinting = true })
	mustRegister(t, e.Engine, "alice", "pw123")

	laptop := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "Firefox")
	res, err := e.Login(laptop, "alice", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	status, err := e.SessionStatus(laptop, res.SessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Security.FingerprintStored {
		t.Fatal("fingerprint must not be bound before first refresh")
	}

	pair, err := e.Refresh(laptop, res.SessionID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	status, err = e.SessionStatus(laptop, pair.SessionID)
	if err != nil {
		t.Fatalf("status after refresh: %v", err)
	}
	if !status.Security.FingerprintStored || !status.Security.SessionFingerprinting {
		t.Fatalf("expected bound fingerprint, got %+v", status.Security)
	}

	phone := WithUserAgent(WithClientIP(context.Background(), "198.51.100.2"), "Firefox")
	_, err = e.Refresh(phone, pair.SessionID)
	if reason, _ := SessionRejectReason(err); reason != "fingerprint_mismatch" {
		t.Fatalf("expected fingerprint_mismatch, got %v", err)
	}
	if _, err := e.Refresh(laptop, pair.SessionID); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("mismatched session must be revoked, got %v", err)
	}
}

func TestSessionStatusRedactsID(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Session.EnforceSingleDevice = true })
	ctx := WithUserAgent(WithClientIP(context.Background(), "10.1.2.3"), "curl/8")
	mustRegister(t, e.Engine, "alice", "pw123")

	res, _ := e.Login(ctx, "alice", "pw123")
	status, err := e.SessionStatus(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SessionID != res.SessionID[:8]+"..." {
		t.Fatalf("unexpected redaction %q", status.SessionID)
	}
	if status.Username != "alice" || !status.Security.SingleDeviceEnforcement {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Client.CurrentIP != "10.1.2.3" || status.Client.CurrentUserAgent != "curl/8" {
		t.Fatalf("unexpected client info %+v", status.Client)
	}
	if !status.ExpiresAt.Equal(status.CreatedAt.Add(e.config.JWT.RefreshTTL)) {
		t.Fatalf("unexpected lifetime %v..%v", status.CreatedAt, status.ExpiresAt)
	}

	if _, err := e.SessionStatus(ctx, "unknown"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	profile, err := e.Register(ctx, RegisterRequest{Username: "alice", Email: "a@example.com", FullName: "Alice", Password: "pw123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.Username != "alice" || profile.Email != "a@example.com" || profile.Disabled {
		t.Fatalf("unexpected profile %+v", profile)
	}

	if _, err := e.Register(ctx, RegisterRequest{Username: "alice", Password: "other"}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := e.Register(ctx, RegisterRequest{Username: "  ", Password: "x"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration for blank username, got %v", err)
	}
	if _, err := e.Register(ctx, RegisterRequest{Username: "carol"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration for empty password, got %v", err)
	}

	if e.metrics.Value(MetricRegisterSuccess) != 1 || e.metrics.Value(MetricRegisterDuplicate) != 1 {
		t.Fatal("unexpected register metrics")
	}
}

func TestSeedUsersIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	n, err := e.SeedUsers(ctx, DefaultSeedUsers())
	if err != nil || n != 2 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	n, err = e.SeedUsers(ctx, DefaultSeedUsers())
	if err != nil || n != 0 {
		t.Fatalf("second seed: n=%d err=%v", n, err)
	}

	res, err := e.Login(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if res.User.FullName != "Admin User" || res.User.Email != "admin@example.com" {
		t.Fatalf("unexpected admin profile %+v", res.User)
	}
}

func TestLoginUpgradesLegacyBcryptDigest(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Password.Algorithm = "bcrypt" })
	ctx := context.Background()
	mustRegister(t, e.Engine, "legacy", "pw123")

	// Rebuild with argon2id over the same Redis.
	cfg := testConfig()
	upgraded, err := New().WithConfig(cfg).WithRedis(e.rdb).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := upgraded.Login(ctx, "legacy", "pw123"); err != nil {
		t.Fatalf("login with bcrypt digest: %v", err)
	}
	rec, err := upgraded.directory.Get(ctx, "legacy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.HashedPassword[:10] != "$argon2id$" {
		t.Fatalf("expected argon2id digest after login, got %q", rec.HashedPassword[:10])
	}
	if _, err := upgraded.Login(ctx, "legacy", "pw123"); err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Logout(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if snap := e.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatal("nil engine snapshot must be empty")
	}
}
