// Package users is the credential store: user records keyed by username,
// plus password-based authentication over them.
//
// Records are JSON documents under "user:<username>". A value of the wrong
// shape under that key is deleted and treated as absent.
//
// # Architecture boundaries
//
// [Store] persists records; [Directory] adds authentication on top of any
// Store using an opaque password verifier. Password hashing itself lives in
// the password package.
package users
