package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for absent and healed records.
	ErrNotFound = errors.New("user not found")
	// ErrExists is returned by Create when a valid record already holds the username.
	ErrExists = errors.New("user already exists")
	// ErrRedisUnavailable wraps connection and operation failures of the durable backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrMalformed marks a stored value of the wrong shape.
	ErrMalformed = errors.New("malformed user record")
	// ErrInvalidCredentials is returned by Directory.Authenticate for unknown
	// users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the credential persistence contract shared by every backend.
type Store interface {
	// Create fails with ErrExists if the username is taken by a valid record.
	Create(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound for absent or malformed records.
	Get(ctx context.Context, username string) (*Record, error)
	// Update returns ErrNotFound when there is nothing to patch.
	Update(ctx context.Context, username string, patch Patch) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, username string) (bool, error)
	Ping(ctx context.Context) error
}

const userKeyPrefix = "user:"

func userKey(namespace, username string) string {
	if namespace != "" {
		namespace += ":"
	}
	return namespace + userKeyPrefix + username
}
