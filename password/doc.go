// Package password hashes and verifies account passwords.
//
// New digests are argon2id PHC strings by default:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt digests ($2a$, $2b$, $2y$) are verified alongside argon2id so
// records written by older deployments keep working. [Hasher] picks the
// scheme from the digest prefix.
//
// The package never stores passwords and never logs them.
package password
