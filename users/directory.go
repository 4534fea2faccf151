package users

import (
	"context"
	"errors"
)

// Verifier checks a plaintext password against a stored digest.
type Verifier interface {
	Verify(password, digest string) (bool, error)
}

// Directory is the credential store as seen by the gateway: a Store plus
// password authentication.
type Directory struct {
	store    Store
	verifier Verifier
	// dummyDigest is verified against when the user does not exist so both
	// failure paths cost one hash evaluation.
	dummyDigest string
}

func NewDirectory(store Store, verifier Verifier, dummyDigest string) *Directory {
	return &Directory{store: store, verifier: verifier, dummyDigest: dummyDigest}
}

func (d *Directory) Store() Store { return d.store }

func (d *Directory) Create(ctx context.Context, rec *Record) error {
	return d.store.Create(ctx, rec)
}

func (d *Directory) Get(ctx context.Context, username string) (*Record, error) {
	return d.store.Get(ctx, username)
}

func (d *Directory) Update(ctx context.Context, username string, patch Patch) error {
	return d.store.Update(ctx, username, patch)
}

func (d *Directory) Delete(ctx context.Context, username string) (bool, error) {
	return d.store.Delete(ctx, username)
}

// Authenticate returns ErrInvalidCredentials for an unknown user and for a
// wrong password. Store failures other than a miss are returned as is.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*Record, error) {
	rec, err := d.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if d.dummyDigest != "" {
				_, _ = d.verifier.Verify(password, d.dummyDigest)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := d.verifier.Verify(password, rec.HashedPassword)
	if err != nil || !ok {
		// An unparseable digest is indistinguishable from a wrong password.
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}
