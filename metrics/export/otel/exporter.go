package otel

import (
	"context"
	"errors"
	"fmt"

	authclient "github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *authclient.Manager.
type MetricsSource interface {
	MetricsSnapshot() authclient.MetricsSnapshot
	EventsDropped() uint64
}

type observedCounter struct {
	id         authclient.MetricID
	instrument metric.Int64ObservableCounter
}

// OTelExporter observes a MetricsSource on every collection cycle.
//
// Latency buckets are reported as gauges carrying an "le" attribute, with
// the operation attribute added on the per-operation family.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []observedCounter

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge

	opCalls          metric.Int64ObservableCounter
	opFailures       metric.Int64ObservableCounter
	opLatencyBuckets metric.Int64ObservableGauge
	opLatencySum     metric.Float64ObservableGauge

	eventsDropped metric.Int64ObservableCounter

	// Attribute sets are built once; Operations and bounds are fixed.
	opAttrs     map[authclient.Operation]attribute.Set
	boundAttrs  [8]attribute.Set
	opBoundAttr map[authclient.Operation][8]attribute.Set
}

// NewOTelExporter registers instruments on meter that read from m.
func NewOTelExporter(meter metric.Meter, m *authclient.Manager) (*OTelExporter, error) {
	if m == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, m)
}

// NewOTelExporterFromSource registers instruments on meter that read from
// source.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:      source,
		counters:    make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		opAttrs:     make(map[authclient.Operation]attribute.Set, len(authclient.Operations)),
		opBoundAttr: make(map[authclient.Operation][8]attribute.Set, len(authclient.Operations)),
	}
	for i, le := range internaldefs.HistogramBounds {
		e.boundAttrs[i] = attribute.NewSet(attribute.String("le", le))
	}
	for _, op := range authclient.Operations {
		opKV := attribute.String(internaldefs.OperationLabel, op.String())
		e.opAttrs[op] = attribute.NewSet(opKV)
		var sets [8]attribute.Set
		for i, le := range internaldefs.HistogramBounds {
			sets[i] = attribute.NewSet(opKV, attribute.String("le", le))
		}
		e.opBoundAttr[op] = sets
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+7)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	var err error
	latency := internaldefs.HistogramDefs[0]
	if e.latencyBuckets, err = meter.Int64ObservableGauge(latency.Name+"_bucket",
		metric.WithDescription("Cumulative bucket counts of "+latency.Help)); err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	if e.latencyCount, err = meter.Int64ObservableGauge(latency.Name+"_count",
		metric.WithDescription("Sample count of "+latency.Help)); err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	if e.opCalls, err = meter.Int64ObservableCounter(internaldefs.OperationCallsName,
		metric.WithDescription(internaldefs.OperationCallsHelp)); err != nil {
		return nil, fmt.Errorf("create operation calls counter: %w", err)
	}
	if e.opFailures, err = meter.Int64ObservableCounter(internaldefs.OperationFailuresName,
		metric.WithDescription(internaldefs.OperationFailuresHelp)); err != nil {
		return nil, fmt.Errorf("create operation failures counter: %w", err)
	}
	if e.opLatencyBuckets, err = meter.Int64ObservableGauge(internaldefs.OperationLatencyName+"_bucket",
		metric.WithDescription("Cumulative bucket counts of "+internaldefs.OperationLatencyHelp)); err != nil {
		return nil, fmt.Errorf("create operation latency gauge: %w", err)
	}
	if e.opLatencySum, err = meter.Float64ObservableGauge(internaldefs.OperationLatencyName+"_sum",
		metric.WithDescription("Total seconds of "+internaldefs.OperationLatencyHelp), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create operation latency sum gauge: %w", err)
	}
	if e.eventsDropped, err = meter.Int64ObservableCounter("authclient_events_dropped_total",
		metric.WithDescription("Session events dropped due to dispatcher backpressure.")); err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	observables = append(observables,
		e.latencyBuckets, e.latencyCount,
		e.opCalls, e.opFailures, e.opLatencyBuckets, e.opLatencySum,
		e.eventsDropped,
	)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}

	if raw, ok := snap.Histograms[authclient.MetricTransportLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(e.latencyBuckets, int64(v), metric.WithAttributeSet(e.boundAttrs[i]))
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	}

	for _, op := range internaldefs.CalledOperations(snap.Operations) {
		st := snap.Operations[op]
		attrs := metric.WithAttributeSet(e.opAttrs[op])
		o.ObserveInt64(e.opCalls, int64(st.Calls), attrs)
		o.ObserveInt64(e.opFailures, int64(st.Failures), attrs)
		if st.Latency == nil {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(st.Latency))
		bounds := e.opBoundAttr[op]
		for i, v := range cumulative {
			o.ObserveInt64(e.opLatencyBuckets, int64(v), metric.WithAttributeSet(bounds[i]))
		}
		o.ObserveFloat64(e.opLatencySum, st.LatencySum.Seconds(), attrs)
	}

	o.ObserveInt64(e.eventsDropped, int64(e.source.EventsDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
