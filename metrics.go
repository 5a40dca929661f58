package authclient

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authclient APIs.
//
// The numeric values are stable within a release and index the counter array.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	// MetricRefreshSuccess counts successful token refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that ended the session.
	MetricRefreshFailure
	// MetricRefreshShared counts RefreshToken calls that joined an in-flight refresh.
	MetricRefreshShared
	// MetricRenewalScheduled counts renewal timers armed.
	MetricRenewalScheduled
	// MetricRenewalImmediate counts renewals started without waiting.
	MetricRenewalImmediate
	MetricLogout
	// MetricLogoutRemoteFailure counts remote logout calls that failed and were absorbed.
	MetricLogoutRemoteFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricEmailVerificationSuccess
	MetricVerificationResent
	MetricCurrentUserFetched
	MetricFeatureDisabled
	// MetricStorageFallback counts storage adapters that fell back to memory.
	MetricStorageFallback
	// MetricTransportFailure counts failed API round trips of any kind.
	MetricTransportFailure
	// MetricTransportLatency is the latency histogram over all operations.
	// Per-operation latency is reported in MetricsSnapshot.Operations.
	MetricTransportLatency
	metricIDCount
)

// MetricCount is the number of defined MetricIDs.
const MetricCount = int(metricIDCount)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:             "login_success",
	MetricLoginFailure:             "login_failure",
	MetricRegisterSuccess:          "register_success",
	MetricRegisterFailure:          "register_failure",
	MetricRefreshSuccess:           "refresh_success",
	MetricRefreshFailure:           "refresh_failure",
	MetricRefreshShared:            "refresh_shared",
	MetricRenewalScheduled:         "renewal_scheduled",
	MetricRenewalImmediate:         "renewal_immediate",
	MetricLogout:                   "logout",
	MetricLogoutRemoteFailure:      "logout_remote_failure",
	MetricPasswordResetRequest:     "password_reset_request",
	MetricPasswordResetSuccess:     "password_reset_success",
	MetricEmailVerificationSuccess: "email_verification_success",
	MetricVerificationResent:       "verification_resent",
	MetricCurrentUserFetched:       "current_user_fetched",
	MetricFeatureDisabled:          "feature_disabled",
	MetricStorageFallback:          "storage_fallback",
	MetricTransportFailure:         "transport_failure",
	MetricTransportLatency:         "transport_latency",
}

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Operation identifies one auth API call for per-operation statistics.
type Operation uint8

const (
	OpLogin Operation = iota
	OpRegister
	OpRefresh
	OpMe
	OpLogout
	OpForgotPassword
	OpResetPassword
	OpResendVerification
	OpVerifyEmail
	operationCount
)

// Operations lists every Operation in export order.
var Operations = [...]Operation{
	OpLogin, OpRegister, OpRefresh, OpMe, OpLogout,
	OpForgotPassword, OpResetPassword, OpResendVerification, OpVerifyEmail,
}

var operationNames = [operationCount]string{
	OpLogin:              "login",
	OpRegister:           "register",
	OpRefresh:            "refresh",
	OpMe:                 "me",
	OpLogout:             "logout",
	OpForgotPassword:     "forgot_password",
	OpResetPassword:      "reset_password",
	OpResendVerification: "resend_verification",
	OpVerifyEmail:        "verify_email",
}

// String returns the name the transport client reports for op.
func (op Operation) String() string {
	if op >= operationCount {
		return "unknown"
	}
	return operationNames[op]
}

// ParseOperation maps a transport operation name to an Operation.
func ParseOperation(name string) (Operation, bool) {
	for i, n := range operationNames {
		if n == name {
			return Operation(i), true
		}
	}
	return 0, false
}

// OperationStats is the snapshot of one operation's calls.
type OperationStats struct {
	Calls    uint64
	Failures uint64
	// Latency holds non-cumulative bucket counts; nil when latency
	// histograms are disabled.
	Latency    []uint64
	LatencySum time.Duration
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
	// nanoseconds
	sum uint64
}

func (h *metricHistogram) observe(d time.Duration) {
	atomic.AddUint64(&h.buckets[bucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&h.sum, uint64(d))
	}
}

func (h *metricHistogram) load() []uint64 {
	out := make([]uint64, histBucketCount)
	for i := range out {
		out[i] = atomic.LoadUint64(&h.buckets[i])
	}
	return out
}

type operationMetrics struct {
	calls    paddedCounter
	failures paddedCounter
	latency  metricHistogram
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters, the transport latency histogram and
// per-operation call statistics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       metricHistogram
	ops           [operationCount]operationMetrics
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// Operations holds an entry for every operation called at least once.
	Operations map[Operation]OperationStats
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether m records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricTransportLatency has
// a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricTransportLatency {
		return
	}
	m.latency.observe(d)
}

// ObserveCall records one auth API round trip of op: call and failure
// counts always, latency when histograms are enabled. Failures also count
// towards MetricTransportFailure.
func (m *Metrics) ObserveCall(op Operation, d time.Duration, err error) {
	if m == nil || !m.enabled || op >= operationCount {
		return
	}
	om := &m.ops[op]
	atomic.AddUint64(&om.calls.value, 1)
	if err != nil {
		atomic.AddUint64(&om.failures.value, 1)
		atomic.AddUint64(&m.counters[MetricTransportFailure].value, 1)
	}
	if m.enableLatency {
		om.latency.observe(d)
		m.latency.observe(d)
	}
}

// Value returns the current counter value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency histograms are enabled,
// the transport latency buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			Operations: map[Operation]OperationStats{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
		Operations: make(map[Operation]OperationStats, int(operationCount)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricTransportLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		s.Histograms[MetricTransportLatency] = m.latency.load()
	}

	for op := Operation(0); op < operationCount; op++ {
		om := &m.ops[op]
		calls := atomic.LoadUint64(&om.calls.value)
		if calls == 0 {
			continue
		}
		st := OperationStats{
			Calls:    calls,
			Failures: atomic.LoadUint64(&om.failures.value),
		}
		if m.enableLatency {
			st.Latency = om.latency.load()
			st.LatencySum = time.Duration(atomic.LoadUint64(&om.latency.sum))
		}
		s.Operations[op] = st
	}

	return s
}

// Bucket upper bounds in milliseconds: 5, 10, 25, 50, 100, 250, 500, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
