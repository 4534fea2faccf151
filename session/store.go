package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for absent, expired, and healed records.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps connection and operation failures of the durable backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrMalformed marks a stored value of the wrong shape.
	ErrMalformed = errors.New("malformed session record")
	// ErrInvalidTTL is returned by Put for non-positive lifetimes.
	ErrInvalidTTL = errors.New("session ttl must be > 0")
)

// Store is the session persistence contract shared by every backend.
type Store interface {
	// Put stores rec under its SessionID with the given lifetime.
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
	// Replace overwrites an existing record and keeps its remaining
	// lifetime. It returns ErrNotFound when the record is gone, so a
	// concurrent delete is never undone.
	Replace(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound for absent, expired or malformed records;
	// the latter two are deleted before returning.
	Get(ctx context.Context, sessionID string) (*Record, error)
	// Delete is idempotent.
	Delete(ctx context.Context, sessionID string) error
	// DeleteAllForUser removes every session owned by username and
	// reports how many were removed.
	DeleteAllForUser(ctx context.Context, username string) (int, error)

	// SetCurrent overwrites the user-session index.
	SetCurrent(ctx context.Context, username, sessionID string, ttl time.Duration) error
	// Current returns "" when no index entry exists.
	Current(ctx context.Context, username string) (string, error)
	// ClearCurrent removes the index entry only while it still points at sessionID.
	ClearCurrent(ctx context.Context, username, sessionID string) error

	Ping(ctx context.Context) error
}

const (
	sessionKeyPrefix = "session:"
	indexKeyPrefix   = "user_session:"
)

type keyspace struct {
	namespace string
}

func (k keyspace) session(sessionID string) string {
	return k.namespace + sessionKeyPrefix + sessionID
}

func (k keyspace) index(username string) string {
	return k.namespace + indexKeyPrefix + username
}

func (k keyspace) sessionPattern() string {
	return k.namespace + sessionKeyPrefix + "*"
}

func newKeyspace(namespace string) keyspace {
	if namespace != "" {
		namespace += ":"
	}
	return keyspace{namespace: namespace}
}
