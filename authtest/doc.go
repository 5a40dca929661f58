// Package authtest runs an in-process auth API speaking the wire contract the
// transport package expects. It issues HS256 access tokens and rotating
// refresh tokens, counts calls per operation and can be told to fail any
// operation with a given status.
//
// It is meant for tests and the authctl fake-server command. Nothing is
// persisted.
package authtest
