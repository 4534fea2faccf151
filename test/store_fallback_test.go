//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestStoreFallbackSurvivesRedisLoss stops Redis mid-run: requests keep
// being served from memory and the engine reports degraded stores.
func TestStoreFallbackSurvivesRedisLoss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	engine := newIntegrationEngine(t, rdb, nil)
	ctx := context.Background()
	register(t, engine, "alice", "pw123")

	mr.Close()

	register(t, engine, "bob", "pw")
	res, err := engine.Login(ctx, "bob", "pw")
	if err != nil {
		t.Fatalf("login after redis loss: %v", err)
	}
	if _, err := engine.Refresh(ctx, res.SessionID); err != nil {
		t.Fatalf("refresh after redis loss: %v", err)
	}

	h := engine.Health(ctx)
	if !h.Ready || !h.UsersDegraded || !h.SessionsDegraded {
		t.Fatalf("expected degraded but ready, got %+v", h)
	}
}
