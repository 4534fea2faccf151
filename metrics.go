package offsetauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricSessionCreated
	MetricSessionRotated
	MetricSessionRevoked
	MetricSessionSuperseded
	MetricFingerprintBound
	MetricFingerprintMismatch
	MetricSessionCredentialInvalid
	MetricLogout
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricAccountDisabled
	MetricStoreFallback
	MetricRefreshLatency
	metricIDCount
)

// RefreshLatencyBounds are the finite upper bounds of the refresh latency
// histogram. Samples above the last bound land in a final overflow bucket.
var RefreshLatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	histBucketCount = len(RefreshLatencyBounds) + 1
	cacheLineSize   = 64
)

// counterSlot sits alone on a cache line so hot counters updated from
// different cores do not contend.
type counterSlot struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

func (h *latencyHistogram) observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	b := len(RefreshLatencyBounds)
	for i, bound := range RefreshLatencyBounds {
		if d <= bound {
			b = i
			break
		}
	}
	atomic.AddUint64(&h.buckets[b], 1)
	atomic.AddUint64(&h.sumNanos, uint64(d))
}

// Metrics holds lock-free engine counters and the refresh latency
// histogram. A nil or disabled Metrics discards every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counterSlot
	refresh       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram buckets are per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for a histogram id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRefreshLatency {
		return
	}
	m.refresh.observe(d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.refresh.buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
		s.HistogramSums[MetricRefreshLatency] = time.Duration(atomic.LoadUint64(&m.refresh.sumNanos))
	}
	return s
}
