package users

import (
	"context"
	"errors"

	"github.com/neenza/offsetauth/internal/fallback"
)

// FallbackStore routes to primary until it reports ErrRedisUnavailable, then
// serves every later call from secondary.
type FallbackStore struct {
	primary   Store
	secondary Store
	sw        *fallback.Switch
}

func NewFallbackStore(primary, secondary Store, sw *fallback.Switch) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary, sw: sw}
}

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

func (f *FallbackStore) Create(ctx context.Context, rec *Record) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Create(ctx, rec)
	})
	return err
}

func (f *FallbackStore) Get(ctx context.Context, username string) (*Record, error) {
	return call(f, func(s Store) (*Record, error) {
		return s.Get(ctx, username)
	})
}

func (f *FallbackStore) Update(ctx context.Context, username string, patch Patch) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Update(ctx, username, patch)
	})
	return err
}

func (f *FallbackStore) Delete(ctx context.Context, username string) (bool, error) {
	return call(f, func(s Store) (bool, error) {
		return s.Delete(ctx, username)
	})
}

func (f *FallbackStore) Ping(ctx context.Context) error {
	_, err := call(f, func(s Store) (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	})
	return err
}
