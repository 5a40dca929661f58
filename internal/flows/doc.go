// Package flows contains pure decision functions used by the session Manager.
//
// [PlanRenewal] decides when an access token should be renewed from the token,
// the clock reading and the configured threshold. It never arms timers or
// performs I/O; the Manager owns both.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authclient (to avoid import cycles).
//   - Perform I/O directly.
package flows
