// Package jwt reads claims from self-describing access tokens without
// verifying their signature.
//
// The decoded expiry only drives the client-side renewal schedule. It is never
// an authorization decision: the API verifies every token it receives.
package jwt
