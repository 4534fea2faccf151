package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// runStoreContract checks behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T, now func() time.Time) Store) {
	t.Run("put get delete idempotent", func(t *testing.T) {
		store := newStore(t, nil)
		ctx := context.Background()
		rec := testRecord("sid-1", "alice", time.Now())

		if err := store.Put(ctx, rec, time.Hour); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := store.Get(ctx, rec.SessionID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Username != "alice" || got.RefreshToken != rec.RefreshToken {
			t.Fatalf("unexpected record %+v", got)
		}

		if err := store.Delete(ctx, rec.SessionID); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		if err := store.Delete(ctx, rec.SessionID); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := store.Get(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("expired record is absent before backend reclaims it", func(t *testing.T) {
		now := time.Now()
		clock := func() time.Time { return now }
		store := newStore(t, clock)
		ctx := context.Background()

		rec := testRecord("sid-exp", "alice", now.Add(-2*time.Hour))
		rec.ExpiresAt = now.Add(-time.Second)
		// The backend lifetime outlives expires_at on purpose.
		if err := store.Put(ctx, rec, time.Hour); err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := store.Get(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for expired record, got %v", err)
		}
	})

	t.Run("delete all for user", func(t *testing.T) {
		store := newStore(t, nil)
		ctx := context.Background()
		now := time.Now()

		for i := 0; i < 5; i++ {
			if err := store.Put(ctx, testRecord(fmt.Sprintf("a-%d", i), "alice", now), time.Hour); err != nil {
				t.Fatalf("put alice: %v", err)
			}
		}
		if err := store.Put(ctx, testRecord("b-0", "bob", now), time.Hour); err != nil {
			t.Fatalf("put bob: %v", err)
		}

		n, err := store.DeleteAllForUser(ctx, "alice")
		if err != nil {
			t.Fatalf("delete all: %v", err)
		}
		if n != 5 {
			t.Fatalf("expected 5 deletions, got %d", n)
		}
		if _, err := store.Get(ctx, "a-3"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected alice session gone, got %v", err)
		}
		if _, err := store.Get(ctx, "b-0"); err != nil {
			t.Fatalf("bob session must survive: %v", err)
		}
	})

	t.Run("user session index compare and clear", func(t *testing.T) {
		store := newStore(t, nil)
		ctx := context.Background()

		if got, err := store.Current(ctx, "alice"); err != nil || got != "" {
			t.Fatalf("expected empty index, got %q err=%v", got, err)
		}
		if err := store.SetCurrent(ctx, "alice", "sid-a", time.Hour); err != nil {
			t.Fatalf("set current: %v", err)
		}
		if err := store.SetCurrent(ctx, "alice", "sid-b", time.Hour); err != nil {
			t.Fatalf("overwrite current: %v", err)
		}
		// A stale terminate must not clear the newer entry.
		if err := store.ClearCurrent(ctx, "alice", "sid-a"); err != nil {
			t.Fatalf("clear stale: %v", err)
		}
		if got, _ := store.Current(ctx, "alice"); got != "sid-b" {
			t.Fatalf("expected sid-b, got %q", got)
		}
		if err := store.ClearCurrent(ctx, "alice", "sid-b"); err != nil {
			t.Fatalf("clear current: %v", err)
		}
		if got, _ := store.Current(ctx, "alice"); got != "" {
			t.Fatalf("expected cleared index, got %q", got)
		}
	})

	t.Run("replace only overwrites live records", func(t *testing.T) {
		store := newStore(t, nil)
		ctx := context.Background()
		rec := testRecord("sid-rep", "alice", time.Now())

		if err := store.Replace(ctx, rec); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound replacing absent record, got %v", err)
		}
		if _, err := store.Get(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("replace created a record: %v", err)
		}

		if err := store.Put(ctx, rec, time.Hour); err != nil {
			t.Fatalf("put: %v", err)
		}
		updated := *rec
		updated.Fingerprint = &Fingerprint{UserAgent: "ua", IP: "203.0.113.9"}
		if err := store.Replace(ctx, &updated); err != nil {
			t.Fatalf("replace: %v", err)
		}
		got, err := store.Get(ctx, rec.SessionID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Fingerprint == nil || got.Fingerprint.IP != "203.0.113.9" {
			t.Fatalf("expected replaced fingerprint, got %+v", got.Fingerprint)
		}

		if err := store.Delete(ctx, rec.SessionID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := store.Replace(ctx, &updated); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := store.Get(ctx, rec.SessionID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("replace revived a deleted record: %v", err)
		}
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		store := newStore(t, nil)
		if err := store.Put(context.Background(), testRecord("sid", "alice", time.Now()), 0); !errors.Is(err, ErrInvalidTTL) {
			t.Fatalf("expected ErrInvalidTTL, got %v", err)
		}
	})
}

func testRecord(id, username string, createdAt time.Time) *Record {
	return &Record{
		SessionID:    id,
		Username:     username,
		RefreshToken: "refresh-" + id,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(30 * 24 * time.Hour),
	}
}
