// Package session persists server-side session records for the auth gateway.
//
// # Storage layout
//
// Each session is a JSON document under "session:<id>" written with a native
// Redis expiry equal to the session lifetime. When single-device enforcement
// is on, "user_session:<username>" holds the id of the user's current session.
//
// # Backends
//
//   - [RedisStore]: durable, shared between processes.
//   - [MemoryStore]: process-local, one mutex per map.
//   - [FallbackStore]: serves from Redis until the first connection or
//     operation failure, then from memory for the rest of the process.
//
// # Architecture boundaries
//
// This package owns the [Store] contract and the [Record] model. It does NOT
// mint or verify tokens, and it does NOT decide whether a session is
// superseded or hijacked; that belongs to the session manager.
//
// # What this package must NOT do
//
//   - Import offsetauth, jwt, or users (no upward imports).
//   - Return a record whose expires_at has passed.
//   - Persist raw client attributes; fingerprints hold hashes only.
package session
