package authclient

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricTransportLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := len(m.Snapshot().Counters); got != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricTransportLatency, d)
	}
	// Non-histogram ids are ignored.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricTransportLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for counter metric")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricTransportLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected MetricLoginFailure=2 got %d", snap.Counters[MetricLoginFailure])
	}
	if _, ok := snap.Counters[MetricTransportLatency]; ok {
		t.Fatal("latency metric must not appear as a counter")
	}
	if len(snap.Histograms[MetricTransportLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricTransportLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricTransportLatency][0])
	}
}

func TestMetricNames(t *testing.T) {
	seen := map[string]MetricID{}
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "" || name == "unknown" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("metric %d and %d share name %q", prev, id, name)
		}
		seen[name] = id
	}
	if MetricID(metricIDCount).String() != "unknown" {
		t.Fatal("out of range id must be unknown")
	}
}

func TestMetricsObserveCallPerOperation(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.ObserveCall(OpLogin, 3*time.Millisecond, nil)
	m.ObserveCall(OpLogin, 40*time.Millisecond, errors.New("boom"))
	m.ObserveCall(OpRefresh, 700*time.Millisecond, nil)
	m.ObserveCall(operationCount, time.Millisecond, nil)

	snap := m.Snapshot()
	login, ok := snap.Operations[OpLogin]
	if !ok {
		t.Fatal("expected login stats")
	}
	if login.Calls != 2 || login.Failures != 1 {
		t.Fatalf("unexpected login stats %+v", login)
	}
	if login.LatencySum != 43*time.Millisecond {
		t.Fatalf("expected latency sum 43ms, got %s", login.LatencySum)
	}
	if login.Latency[0] != 1 || login.Latency[3] != 1 {
		t.Fatalf("unexpected login buckets %v", login.Latency)
	}
	if _, ok := snap.Operations[OpMe]; ok {
		t.Fatal("operations never called must be absent")
	}
	if got := snap.Counters[MetricTransportFailure]; got != 1 {
		t.Fatalf("expected 1 transport failure, got %d", got)
	}
	agg := snap.Histograms[MetricTransportLatency]
	var total uint64
	for _, v := range agg {
		total += v
	}
	if total != 3 || agg[7] != 1 {
		t.Fatalf("aggregate histogram must include every call, got %v", agg)
	}
}

func TestMetricsObserveCallWithoutHistograms(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.ObserveCall(OpMe, time.Millisecond, nil)

	st := m.Snapshot().Operations[OpMe]
	if st.Calls != 1 {
		t.Fatalf("expected 1 call, got %d", st.Calls)
	}
	if st.Latency != nil || st.LatencySum != 0 {
		t.Fatalf("latency must not be recorded, got %+v", st)
	}
}

func TestParseOperationMatchesNames(t *testing.T) {
	for _, op := range Operations {
		got, ok := ParseOperation(op.String())
		if !ok || got != op {
			t.Fatalf("round trip of %s failed: %v %v", op, got, ok)
		}
	}
	if _, ok := ParseOperation("unknown"); ok {
		t.Fatal("unknown operation must not parse")
	}
	if len(Operations) != int(operationCount) {
		t.Fatalf("Operations lists %d of %d", len(Operations), operationCount)
	}
}
