package session

import (
	"context"
	"errors"
	"time"

	"github.com/neenza/offsetauth/internal/fallback"
)

// FallbackStore routes to primary until it reports ErrRedisUnavailable, then
// trips its switch and serves every later call from secondary.
type FallbackStore struct {
	primary   Store
	secondary Store
	sw        *fallback.Switch
}

func NewFallbackStore(primary, secondary Store, sw *fallback.Switch) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary, sw: sw}
}

// Degraded reports whether the in-memory backend is active.
func (f *FallbackStore) Degraded() bool {
	return f.sw.Active()
}

func call[T any](f *FallbackStore, op func(Store) (T, error)) (T, error) {
	if !f.sw.Active() {
		v, err := op(f.primary)
		if !errors.Is(err, ErrRedisUnavailable) {
			return v, err
		}
		f.sw.Trip(err)
	}
	return op(f.secondary)
}

func (f *FallbackStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Put(ctx, rec, ttl)
	})
	return err
}

func (f *FallbackStore) Replace(ctx context.Context, rec *Record) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Replace(ctx, rec)
	})
	return err
}

func (f *FallbackStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	return call(f, func(s Store) (*Record, error) {
		return s.Get(ctx, sessionID)
	})
}

func (f *FallbackStore) Delete(ctx context.Context, sessionID string) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Delete(ctx, sessionID)
	})
	return err
}

func (f *FallbackStore) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	return call(f, func(s Store) (int, error) {
		return s.DeleteAllForUser(ctx, username)
	})
}

func (f *FallbackStore) SetCurrent(ctx context.Context, username, sessionID string, ttl time.Duration) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.SetCurrent(ctx, username, sessionID, ttl)
	})
	return err
}

func (f *FallbackStore) Current(ctx context.Context, username string) (string, error) {
	return call(f, func(s Store) (string, error) {
		return s.Current(ctx, username)
	})
}

func (f *FallbackStore) ClearCurrent(ctx context.Context, username, sessionID string) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.ClearCurrent(ctx, username, sessionID)
	})
	return err
}

// Ping checks whichever backend is currently serving. A failed primary ping
// trips the switch like any other operation.
func (f *FallbackStore) Ping(ctx context.Context) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	})
	return err
}
