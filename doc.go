// Package offsetauth is the authentication and session subsystem of the
// offset-print quoting backend: password login, short-lived JWT access
// tokens, server-side sessions addressed by opaque ids, refresh rotation,
// optional single-device enforcement and client fingerprinting.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// offsetauth is the transport-agnostic surface. It exposes [Engine],
// [Builder], [Config] and value types. Session state transitions live in
// internal/flows, storage in the users and session packages, token signing
// in jwt. HTTP mapping (cookies, bearer header, status codes) lives in
// httpapi and middleware.
//
// # What this package must NOT do
//
//   - Return refresh credentials to callers. Clients only ever hold an
//     access token and a session id.
//   - Distinguish unknown users from wrong passwords in returned errors.
//   - Fail a request because Redis is down. Stores fall back to process
//     memory and log the transition instead.
package offsetauth
