// Package middleware adapts access-token verification to net/http.
//
// [Guard] reads the Authorization header (or the access cookie), calls
// Engine.VerifyAccess, and injects a [Principal] into the request context.
// It never touches the session store; handlers that need account state
// call the Engine themselves.
package middleware
