// Package httpapi maps the auth engine onto HTTP with echo.
//
// Routes: POST /token, /refresh, /logout, /register; GET /users/me,
// /session/status, /health/live, /health/ready and optionally /metrics.
// The access token travels in the access cookie or a bearer header; the
// session id travels only in its HttpOnly cookie.
package httpapi
