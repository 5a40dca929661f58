// Package guard decides whether a session may enter a route. Decisions are
// pure values; [Follow] and [Middleware] apply them to a Navigator or an HTTP
// response.
//
// # What this package must NOT do
//
//   - Change session state or call the auth API.
//   - Treat a disabled role check as a denial. With roles off, only
//     authentication is enforced.
package guard
