package offsetauth

import (
	"context"
	"testing"
)

func BenchmarkVerifyAccess(b *testing.B) {
	e := newBenchmarkEngine(b)

	res, err := e.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.VerifyAccess(res.AccessToken); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	e := newBenchmarkEngine(b)

	res, err := e.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	sessionID := res.SessionID

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := e.Refresh(context.Background(), sessionID)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		sessionID = pair.SessionID
	}
}

func BenchmarkLogin(b *testing.B) {
	e := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := e.Login(context.Background(), "alice", "correct-password-123")
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		_ = e.Logout(context.Background(), res.SessionID)
	}
}

func newBenchmarkEngine(tb testing.TB) *testEngine {
	tb.Helper()

	e := newTestEngine(tb, func(cfg *Config) {
		cfg.Metrics.Enabled = false
		cfg.Metrics.EnableLatencyHistograms = false
	})
	mustRegister(tb, e.Engine, "alice", "correct-password-123")
	return e
}
