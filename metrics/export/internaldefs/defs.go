package internaldefs

import (
	"time"

	authclient "github.com/MrEthical07/authclient"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: authclient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricRegisterSuccess, Name: "authclient_register_success_total", Help: "Successful registrations."},
	{ID: authclient.MetricRegisterFailure, Name: "authclient_register_failure_total", Help: "Failed registrations."},
	{ID: authclient.MetricRefreshSuccess, Name: "authclient_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authclient.MetricRefreshFailure, Name: "authclient_refresh_failure_total", Help: "Token refreshes that ended the session."},
	{ID: authclient.MetricRefreshShared, Name: "authclient_refresh_shared_total", Help: "Refresh calls that joined an in-flight refresh."},
	{ID: authclient.MetricRenewalScheduled, Name: "authclient_renewal_scheduled_total", Help: "Renewal timers armed."},
	{ID: authclient.MetricRenewalImmediate, Name: "authclient_renewal_immediate_total", Help: "Renewals started without waiting."},
	{ID: authclient.MetricLogout, Name: "authclient_logout_total", Help: "Logouts."},
	{ID: authclient.MetricLogoutRemoteFailure, Name: "authclient_logout_remote_failure_total", Help: "Remote logout calls that failed and were ignored."},
	{ID: authclient.MetricPasswordResetRequest, Name: "authclient_password_reset_request_total", Help: "Password reset emails requested."},
	{ID: authclient.MetricPasswordResetSuccess, Name: "authclient_password_reset_success_total", Help: "Passwords reset."},
	{ID: authclient.MetricEmailVerificationSuccess, Name: "authclient_email_verification_success_total", Help: "Email addresses verified."},
	{ID: authclient.MetricVerificationResent, Name: "authclient_verification_resent_total", Help: "Verification emails resent."},
	{ID: authclient.MetricCurrentUserFetched, Name: "authclient_current_user_fetched_total", Help: "Current user profile fetches."},
	{ID: authclient.MetricFeatureDisabled, Name: "authclient_feature_disabled_total", Help: "Calls rejected because the feature is disabled."},
	{ID: authclient.MetricStorageFallback, Name: "authclient_storage_fallback_total", Help: "Storage adapters that fell back to memory."},
	{ID: authclient.MetricTransportFailure, Name: "authclient_transport_failure_total", Help: "Failed auth API round trips."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricTransportLatency, Name: "authclient_transport_latency_seconds", Help: "Auth API round trip latency histogram."},
}

// Per-operation families. Every sample carries OperationLabel set to
// authclient.Operation.String().
const (
	OperationLabel        = "operation"
	OperationCallsName    = "authclient_api_requests_total"
	OperationCallsHelp    = "Auth API round trips by operation."
	OperationFailuresName = "authclient_api_request_failures_total"
	OperationFailuresHelp = "Failed auth API round trips by operation."
	OperationLatencyName  = "authclient_api_request_duration_seconds"
	OperationLatencyHelp  = "Auth API round trip latency by operation."
)

// CalledOperations returns the operations present in ops in export order.
func CalledOperations(ops map[authclient.Operation]authclient.OperationStats) []authclient.Operation {
	out := make([]authclient.Operation, 0, len(ops))
	for _, op := range authclient.Operations {
		if _, ok := ops[op]; ok {
			out = append(out, op)
		}
	}
	return out
}

// TotalLatency sums the per-operation latency of every call.
func TotalLatency(ops map[authclient.Operation]authclient.OperationStats) time.Duration {
	var total time.Duration
	for _, st := range ops {
		total += st.LatencySum
	}
	return total
}

// HistogramBounds are the upper bounds of the eight latency buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
