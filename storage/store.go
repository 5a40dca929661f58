package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind selects the persistence backend.
type Kind string

const (
	// KindLocal persists across process restarts.
	KindLocal Kind = "local"
	// KindSession lives for one process run.
	KindSession Kind = "session"
	// KindMemory never leaves the process.
	KindMemory Kind = "memory"
)

// ParseKind maps a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLocal, KindSession, KindMemory:
		return k, nil
	case "localstorage", "durable":
		return KindLocal, nil
	case "sessionstorage":
		return KindSession, nil
	}
	return "", fmt.Errorf("storage: unknown kind %q", s)
}

// ErrBackendUnavailable marks a missing or unreachable backend.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// Store is the synchronous key/value contract used by the session manager.
// Get and Remove of a missing key are not errors.
type Store interface {
	Set(key, value string)
	Get(key string) (string, bool)
	Remove(key string)
	Clear()
}

// Backend is a concrete key/value primitive. Implementations report I/O
// failures; the Adapter decides what callers see.
type Backend interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}
