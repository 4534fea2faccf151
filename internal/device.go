package internal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashBindingValue returns the hex SHA-256 of a client attribute (user agent
// or IP) so fingerprints never persist the raw values.
func HashBindingValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// BindingEqual compares two stored binding hashes in constant time.
func BindingEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
