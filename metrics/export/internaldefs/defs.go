package internaldefs

import (
	"github.com/neenza/offsetauth"
)

type CounterDef struct {
	ID   offsetauth.MetricID
	Name string
	Help string
}

// HistogramDef names a latency histogram. Name follows Prometheus naming;
// OTelName is the dotted form used by the OpenTelemetry exporter.
type HistogramDef struct {
	ID       offsetauth.MetricID
	Name     string
	OTelName string
	Help     string
}

// CounterDefs lists every exported engine counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: offsetauth.MetricLoginSuccess, Name: "offsetauth_login_success_total", Help: "Successful login attempts."},
	{ID: offsetauth.MetricLoginFailure, Name: "offsetauth_login_failure_total", Help: "Failed login attempts."},
	{ID: offsetauth.MetricRefreshSuccess, Name: "offsetauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: offsetauth.MetricRefreshFailure, Name: "offsetauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: offsetauth.MetricSessionCreated, Name: "offsetauth_session_created_total", Help: "Created sessions."},
	{ID: offsetauth.MetricSessionRotated, Name: "offsetauth_session_rotated_total", Help: "Sessions replaced by refresh rotation."},
	{ID: offsetauth.MetricSessionRevoked, Name: "offsetauth_session_revoked_total", Help: "Sessions deleted by logout, rotation or enforcement."},
	{ID: offsetauth.MetricSessionSuperseded, Name: "offsetauth_session_superseded_total", Help: "Sessions rejected because a newer login took over."},
	{ID: offsetauth.MetricFingerprintBound, Name: "offsetauth_fingerprint_bound_total", Help: "Sessions bound to a client fingerprint."},
	{ID: offsetauth.MetricFingerprintMismatch, Name: "offsetauth_fingerprint_mismatch_total", Help: "Sessions rejected on a fingerprint mismatch."},
	{ID: offsetauth.MetricSessionCredentialInvalid, Name: "offsetauth_session_credential_invalid_total", Help: "Sessions rejected because the stored refresh credential failed verification."},
	{ID: offsetauth.MetricLogout, Name: "offsetauth_logout_total", Help: "Logout operations."},
	{ID: offsetauth.MetricRegisterSuccess, Name: "offsetauth_register_success_total", Help: "Successful registrations."},
	{ID: offsetauth.MetricRegisterDuplicate, Name: "offsetauth_register_duplicate_total", Help: "Registrations rejected for a taken username."},
	{ID: offsetauth.MetricAccountDisabled, Name: "offsetauth_account_disabled_total", Help: "Logins refused for disabled accounts."},
	{ID: offsetauth.MetricStoreFallback, Name: "offsetauth_store_fallback_total", Help: "Stores switched to the in-memory fallback."},
}

var HistogramDefs = []HistogramDef{
	{ID: offsetauth.MetricRefreshLatency, Name: "offsetauth_refresh_latency_seconds", OTelName: "offsetauth.refresh.duration", Help: "Refresh latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds, derived
// from offsetauth.RefreshLatencyBounds. The last engine bucket is +Inf.
var HistogramUpperBounds = upperBounds()

func upperBounds() []float64 {
	out := make([]float64, len(offsetauth.RefreshLatencyBounds))
	for i, d := range offsetauth.RefreshLatencyBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BucketCount is the number of engine buckets including +Inf.
const BucketCount = len(offsetauth.RefreshLatencyBounds) + 1

// NormalizeBuckets copies raw into a fixed-size bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
