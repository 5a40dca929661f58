// Package authclient is a client-side authentication toolkit: it keeps the
// signed-in user and tokens of one application instance, talks to a remote
// auth API, renews access tokens before they expire and tells the host
// application where to navigate after each operation.
//
// A [Manager] is assembled once through [Builder.Build] and is safe to call
// from multiple goroutines afterwards. Session state is observable through
// [Manager.Subscribe]; credentials are persisted through the storage package
// and attached to outgoing API calls by the middleware package.
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Manager], [Builder], [Config],
// [Session] and the error, event and metric types. Wire shapes live in dto,
// HTTP calls in transport, persistence in storage, token decoding in jwt and
// renewal planning under internal/. Route guards (guard) and form shells
// (forms) are built on top of the Manager and never reach into it.
//
// # What this package must NOT do
//
//   - Verify token signatures. Decoded claims only inform renewal timing.
//   - Surface storage failures to callers; the storage adapter absorbs them.
//   - Touch the network for a disabled feature.
//   - Import guard, forms or any package that re-imports authclient.
package authclient
