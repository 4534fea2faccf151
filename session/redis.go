package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 3 * time.Second

const clearCurrentScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var clearCurrentLua = redis.NewScript(clearCurrentScript)

// RedisOptions tunes a RedisStore. Zero values select defaults.
type RedisOptions struct {
	// Namespace is prepended to every key as "<namespace>:".
	Namespace string
	// Timeout bounds each store operation.
	Timeout time.Duration
	// Now overrides the wall clock used for expires_at checks.
	Now func() time.Time
	// OnHeal observes every malformed key that was deleted.
	OnHeal func(key string, cause error)
}

// RedisStore implements Store on a Redis keyspace.
type RedisStore struct {
	redis   redis.UniversalClient
	keys    keyspace
	timeout time.Duration
	now     func() time.Time
	onHeal  func(string, error)
}

func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultOpTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisStore{
		redis:   client,
		keys:    newKeyspace(opts.Namespace),
		timeout: opts.Timeout,
		now:     opts.Now,
		onHeal:  opts.OnHeal,
	}
}

func (s *RedisStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Set(opCtx, s.keys.session(rec.SessionID), data, ttl).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	return nil
}

// Replace is SET XX KEEPTTL.
func (s *RedisStore) Replace(ctx context.Context, rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.redis.SetArgs(opCtx, s.keys.session(rec.SessionID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case err != nil:
		return s.unavailable(ctx, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.keys.session(sessionID)
	data, err := s.redis.Get(opCtx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case isWrongType(err):
		return nil, s.heal(ctx, opCtx, key, err)
	case err != nil:
		return nil, s.unavailable(ctx, err)
	}

	rec, err := Decode(data)
	if err == nil && rec.SessionID != sessionID {
		err = fmt.Errorf("%w: stored id does not match key", ErrMalformed)
	}
	if err != nil {
		return nil, s.heal(ctx, opCtx, key, err)
	}

	if rec.Expired(s.now()) {
		// Redis has not reclaimed the key yet.
		if err := s.redis.Del(opCtx, key).Err(); err != nil {
			return nil, s.unavailable(ctx, err)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Del(opCtx, s.keys.session(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return s.unavailable(ctx, err)
	}
	return nil
}

// DeleteAllForUser scans the whole session keyspace; cost is O(total sessions).
// On a cluster client every master is scanned.
//
// ATOMICITY NOTE: the scan and the deletes are separate round trips. A
// session created for the same user while the scan runs may survive. Callers
// that need the newest session to win (single-device login) create it after
// this call returns, so the race only ever spares the newer session.
func (s *RedisStore) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cluster, ok := s.redis.(*redis.ClusterClient)
	if !ok {
		return s.deleteAllOnNode(ctx, opCtx, s.redis, username)
	}

	var (
		mu      sync.Mutex
		deleted int
	)
	err := cluster.ForEachMaster(opCtx, func(nodeCtx context.Context, node *redis.Client) error {
		n, err := s.deleteAllOnNode(ctx, nodeCtx, node, username)
		mu.Lock()
		deleted += n
		mu.Unlock()
		return err
	})
	if err != nil && !errors.Is(err, ErrRedisUnavailable) {
		err = s.unavailable(ctx, err)
	}
	return deleted, err
}

func (s *RedisStore) deleteAllOnNode(ctx, opCtx context.Context, node redis.Cmdable, username string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := node.Scan(opCtx, cursor, s.keys.sessionPattern(), 1000).Result()
		if err != nil {
			return deleted, s.unavailable(ctx, err)
		}

		if len(keys) > 0 {
			n, err := s.deleteOwned(ctx, opCtx, keys, username)
			deleted += n
			if err != nil {
				return deleted, err
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

func (s *RedisStore) deleteOwned(ctx, opCtx context.Context, keys []string, username string) (int, error) {
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(opCtx, key)
	}
	// Per-command errors (redis.Nil, WRONGTYPE) are inspected below.
	if _, err := pipe.Exec(opCtx); err != nil && !errors.Is(err, redis.Nil) && !isWrongType(err) {
		return 0, s.unavailable(ctx, err)
	}

	owned := make([]string, 0, len(keys))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case isWrongType(err):
			if healErr := s.heal(ctx, opCtx, keys[i], err); !errors.Is(healErr, ErrNotFound) {
				return 0, healErr
			}
			continue
		case err != nil:
			return 0, s.unavailable(ctx, err)
		}

		rec, err := Decode(data)
		if err != nil {
			if healErr := s.heal(ctx, opCtx, keys[i], err); !errors.Is(healErr, ErrNotFound) {
				return 0, healErr
			}
			continue
		}
		if rec.Username == username {
			owned = append(owned, keys[i])
		}
	}

	if len(owned) == 0 {
		return 0, nil
	}

	// One DEL per key: session keys hash to different cluster slots.
	pipe = s.redis.Pipeline()
	dels := make([]*redis.IntCmd, len(owned))
	for i, key := range owned {
		dels[i] = pipe.Del(opCtx, key)
	}
	if _, err := pipe.Exec(opCtx); err != nil {
		return 0, s.unavailable(ctx, err)
	}
	n := 0
	for _, cmd := range dels {
		n += int(cmd.Val())
	}
	return n, nil
}

func (s *RedisStore) SetCurrent(ctx context.Context, username, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Set(opCtx, s.keys.index(username), sessionID, ttl).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	return nil
}

func (s *RedisStore) Current(ctx context.Context, username string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.keys.index(username)
	sessionID, err := s.redis.Get(opCtx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", nil
	case isWrongType(err):
		if healErr := s.heal(ctx, opCtx, key, err); !errors.Is(healErr, ErrNotFound) {
			return "", healErr
		}
		return "", nil
	case err != nil:
		return "", s.unavailable(ctx, err)
	}
	return sessionID, nil
}

func (s *RedisStore) ClearCurrent(ctx context.Context, username, sessionID string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := clearCurrentLua.Run(opCtx, s.redis, []string{s.keys.index(username)}, sessionID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return s.unavailable(ctx, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Ping(opCtx).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	return nil
}

// heal deletes a key holding a value of the wrong shape and reports the
// entity as absent. It is the only place malformed data is handled.
func (s *RedisStore) heal(ctx, opCtx context.Context, key string, cause error) error {
	if err := s.redis.Del(opCtx, key).Err(); err != nil {
		return s.unavailable(ctx, err)
	}
	if s.onHeal != nil {
		s.onHeal(key, cause)
	}
	return ErrNotFound
}

// unavailable wraps a backend failure. A cancelled caller context is passed
// through unwrapped so it never triggers the in-memory fallback.
func (s *RedisStore) unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}
