// Package internal holds the session id and client-binding primitives shared
// by the engine and its flows.
//
// # Sub-packages
//
//   - flows: session lifecycle (create, validate, rotate, revoke) over a session.Store
//   - fallback: one-way switch from a Redis store to its in-memory twin
//   - config: environment and .env loading for the server binary
//   - logging: slog construction and request-scoped loggers
//   - telemetry: OpenTelemetry meter provider with optional OTLP push
//
// Nothing here appears in the public offsetauth API.
package internal
