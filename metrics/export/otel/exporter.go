package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neenza/offsetauth"
	"github.com/neenza/offsetauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() offsetauth.MetricsSnapshot
}

// instrument groups engine counters that differ only by one attribute.
type instrument struct {
	name   string
	unit   string
	help   string
	key    attribute.Key
	values map[offsetauth.MetricID]string
}

// instruments folds the flat engine counters into a few attributed
// OpenTelemetry counters. Every counter in internaldefs.CounterDefs appears
// exactly once.
var instruments = []instrument{
	{
		name: "offsetauth.login.attempts",
		unit: "{attempt}",
		help: "Login attempts by result.",
		key:  "result",
		values: map[offsetauth.MetricID]string{
			offsetauth.MetricLoginSuccess:    "success",
			offsetauth.MetricLoginFailure:    "failure",
			offsetauth.MetricAccountDisabled: "disabled",
		},
	},
	{
		name: "offsetauth.refresh.attempts",
		unit: "{attempt}",
		help: "Refresh attempts by result.",
		key:  "result",
		values: map[offsetauth.MetricID]string{
			offsetauth.MetricRefreshSuccess: "success",
			offsetauth.MetricRefreshFailure: "failure",
		},
	},
	{
		name: "offsetauth.session.events",
		unit: "{event}",
		help: "Session lifecycle events.",
		key:  "event",
		values: map[offsetauth.MetricID]string{
			offsetauth.MetricSessionCreated:           "created",
			offsetauth.MetricSessionRotated:           "rotated",
			offsetauth.MetricSessionRevoked:           "revoked",
			offsetauth.MetricSessionSuperseded:        "superseded",
			offsetauth.MetricFingerprintBound:         "fingerprint_bound",
			offsetauth.MetricFingerprintMismatch:      "fingerprint_mismatch",
			offsetauth.MetricSessionCredentialInvalid: "credential_invalid",
			offsetauth.MetricLogout:                   "logout",
		},
	},
	{
		name: "offsetauth.register.attempts",
		unit: "{attempt}",
		help: "Registration attempts by result.",
		key:  "result",
		values: map[offsetauth.MetricID]string{
			offsetauth.MetricRegisterSuccess:   "success",
			offsetauth.MetricRegisterDuplicate: "duplicate",
		},
	},
	{
		name: "offsetauth.store.fallbacks",
		unit: "{switch}",
		help: "Stores switched to the in-memory fallback.",
		values: map[offsetauth.MetricID]string{
			offsetauth.MetricStoreFallback: "",
		},
	},
}

type observation struct {
	id    offsetauth.MetricID
	attrs metric.ObserveOption
}

type observedCounter struct {
	instrument   metric.Int64ObservableCounter
	observations []observation
}

type observedHistogram struct {
	id      offsetauth.MetricID
	buckets metric.Int64ObservableGauge
	bounds  []metric.ObserveOption
	count   metric.Int64ObservableCounter
}

// OTelExporter publishes engine metrics as observable instruments. The
// refresh latency histogram is exposed as a cumulative bucket gauge keyed
// by the "le" attribute plus a sample counter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
}

func NewOTelExporter(meter metric.Meter, engine *offsetauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, inst := range instruments {
		ins, err := meter.Int64ObservableCounter(inst.name,
			metric.WithDescription(inst.help),
			metric.WithUnit(inst.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", inst.name, err)
		}

		oc := observedCounter{instrument: ins}
		for _, def := range internaldefs.CounterDefs {
			value, ok := inst.values[def.ID]
			if !ok {
				continue
			}
			var set attribute.Set
			if inst.key != "" {
				set = attribute.NewSet(inst.key.String(value))
			}
			oc.observations = append(oc.observations, observation{id: def.ID, attrs: metric.WithAttributeSet(set)})
		}
		exporter.counters = append(exporter.counters, oc)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		exporter.histograms = append(exporter.histograms, h)
		observables = append(observables, h.buckets, h.count)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}

	bucketsName := def.OTelName + ".buckets"
	buckets, err := meter.Int64ObservableGauge(bucketsName,
		metric.WithDescription(def.Help+" Cumulative count per upper bound."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return h, fmt.Errorf("create histogram bucket gauge %s: %w", bucketsName, err)
	}
	h.buckets = buckets

	for _, bound := range internaldefs.HistogramUpperBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		h.bounds = append(h.bounds, metric.WithAttributes(attribute.String("le", le)))
	}
	h.bounds = append(h.bounds, metric.WithAttributes(attribute.String("le", "+Inf")))

	countName := def.OTelName + ".count"
	count, err := meter.Int64ObservableCounter(countName,
		metric.WithDescription(def.Help+" Total samples."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return h, fmt.Errorf("create histogram count %s: %w", countName, err)
	}
	h.count = count
	return h, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		for _, o := range c.observations {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[o.id]), o.attrs)
		}
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, opt := range h.bounds {
			observer.ObserveInt64(h.buckets, int64(cumulative[i]), opt)
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	err := e.registration.Unregister()
	e.registration = nil
	return err
}
