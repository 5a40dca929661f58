// Package prometheus renders authclient metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads a [authclient.Manager] and exposes an
// [http.Handler]. Counter names are prefixed authclient_*_total and
// authclient_transport_latency_seconds aggregates every API call. The
// authclient_api_request* families break calls, failures and latency down by
// an operation label.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate manager state.
package prometheus
