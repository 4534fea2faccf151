// Package prometheus exposes engine counters and the refresh latency
// histogram as a prometheus.Collector.
//
// Counters are named offsetauth_*_total; the histogram is
// offsetauth_refresh_latency_seconds. [Handler] serves the collector from
// its own registry; callers mount it at /metrics.
package prometheus
