package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOpTimeout  = 3 * time.Second
	maxUpdateAttempts = 3
)

// RedisOptions tunes a RedisStore. Zero values select defaults.
type RedisOptions struct {
	Namespace string
	Timeout   time.Duration
	OnHeal    func(key string, cause error)
}

// RedisStore implements Store on "user:<username>" keys.
type RedisStore struct {
	redis     redis.UniversalClient
	namespace string
	timeout   time.Duration
	onHeal    func(string, error)
}

func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultOpTimeout
	}
	return &RedisStore{
		redis:     client,
		namespace: opts.Namespace,
		timeout:   opts.Timeout,
		onHeal:    opts.OnHeal,
	}
}

func (s *RedisStore) key(username string) string {
	return userKey(s.namespace, username)
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Clears a malformed value so SETNX below can claim the key.
	if _, err := s.get(ctx, opCtx, s.redis, rec.Username); err == nil {
		return ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	ok, err := s.redis.SetNX(opCtx, s.key(rec.Username), data, 0).Result()
	if err != nil {
		return s.unavailable(ctx, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, username string) (*Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.get(ctx, opCtx, s.redis, username)
}

// get is the get-or-heal read shared by every operation.
func (s *RedisStore) get(ctx, opCtx context.Context, c redis.Cmdable, username string) (*Record, error) {
	key := s.key(username)
	data, err := c.Get(opCtx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case isWrongType(err):
		return nil, s.heal(ctx, opCtx, key, err)
	case err != nil:
		return nil, s.unavailable(ctx, err)
	}

	rec, err := decode(data)
	if err == nil && rec.Username != username {
		err = fmt.Errorf("%w: stored username does not match key", ErrMalformed)
	}
	if err != nil {
		return nil, s.heal(ctx, opCtx, key, err)
	}
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, username string, patch Patch) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.key(username)
	update := func(tx *redis.Tx) error {
		rec, err := s.get(ctx, opCtx, tx, username)
		if err != nil {
			return err
		}
		patch.apply(rec)
		data, err := encode(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
			pipe.Set(opCtx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.redis.Watch(opCtx, update, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformed), errors.Is(err, ErrRedisUnavailable):
			return err
		default:
			return s.unavailable(ctx, err)
		}
	}
	return fmt.Errorf("update %s: concurrent modification", username)
}

func (s *RedisStore) Delete(ctx context.Context, username string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.redis.Del(opCtx, s.key(username)).Result()
	if err != nil {
		return false, s.unavailable(ctx, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Ping(opCtx).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	return nil
}

func (s *RedisStore) heal(ctx, opCtx context.Context, key string, cause error) error {
	if err := s.redis.Del(opCtx, key).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	if s.onHeal != nil {
		s.onHeal(key, cause)
	}
	return ErrNotFound
}

func (s *RedisStore) unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}
