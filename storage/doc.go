// Package storage persists the client session as string key/value pairs.
//
// An [Adapter] fronts one [Backend] chosen at construction: durable
// ([SQLite]), session-scoped ([Redis], namespaced per process and expiring
// with a TTL) or in-process ([Memory]). Non-memory backends are probed once by
// writing and deleting a sentinel key. If the probe fails the adapter switches
// to an in-memory map for the rest of its life and logs a warning; callers
// never see the failure.
//
// [Tokens] layers the three session entries (access token, refresh token,
// JSON user) on top of any [Store].
//
// # What this package must NOT do
//
//   - Return errors from Store methods. Backend failures are logged and absorbed.
//   - Retry a failed probe.
//   - Import authclient (no import cycles).
package storage
