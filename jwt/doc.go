// Package jwt mints and verifies the two token classes used by offsetauth:
// short-lived access tokens and long-lived refresh tokens. Each class is
// signed with its own HS256 key and carries a typ claim, so a token of one
// class never verifies as the other.
package jwt
