// Package flows contains the session state machine behind the Engine.
//
// [SessionManager] is built once from a resolved [SessionManagerConfig] and a
// [SessionDeps] set. It owns no storage: sessions live in a session.Store and
// refresh credentials come from the token codec, both injected by the root
// package.
//
// # What this package must NOT do
//
//   - Import the root offsetauth package (import cycle).
//   - Read environment variables; policy arrives through SessionManagerConfig.
//   - Return refresh credentials to callers.
package flows
