// Package middleware exposes client-side HTTP middleware for outgoing calls.
//
// [BearerTransport] is an http.RoundTripper that attaches the stored access
// token to requests bound for the configured API base URL.
//
// # What this package must NOT do
//
//   - Attach credentials to requests for any other origin.
//   - Mutate the caller's *http.Request (requests are cloned).
//   - Refresh, decode or store tokens. It only reads them.
package middleware
