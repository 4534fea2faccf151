// Package otel binds engine counters and the refresh latency histogram to
// OpenTelemetry observable instruments.
//
// Related counters share one instrument and are told apart by a "result"
// or "event" attribute, e.g. offsetauth.login.attempts{result="disabled"}.
// The latency histogram becomes a cumulative gauge keyed by "le" plus a
// sample counter. One callback reads Engine.MetricsSnapshot per collection;
// callers own the MeterProvider.
package otel
