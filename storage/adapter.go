package storage

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	probeKey       = "__authclient_storage_probe__"
	defaultTimeout = 2 * time.Second
)

// Options tunes an Adapter.
type Options struct {
	Logger *slog.Logger
	// Timeout bounds every backend call. Defaults to 2s.
	Timeout time.Duration
	// OnFallback is called once when the adapter abandons its backend.
	OnFallback func(kind Kind, err error)
}

// Adapter implements Store over a Backend with a permanent in-memory
// fallback. It is safe for concurrent use.
type Adapter struct {
	kind     Kind
	backend  Backend
	fallback *Memory
	useMem   atomic.Bool
	logger   *slog.Logger
	timeout  time.Duration
}

// NewAdapter probes backend (unless kind is KindMemory) and returns a ready
// Adapter. A nil backend counts as a failed probe.
func NewAdapter(kind Kind, backend Backend, opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	a := &Adapter{
		kind:     kind,
		backend:  backend,
		fallback: NewMemory(),
		logger:   opts.Logger,
		timeout:  opts.Timeout,
	}

	if kind == KindMemory {
		a.useMem.Store(true)
		return a
	}

	if err := a.probe(); err != nil {
		a.useMem.Store(true)
		a.logger.Warn("storage backend unavailable, falling back to in-memory storage",
			"storage", string(kind),
			"error", err,
		)
		if opts.OnFallback != nil {
			opts.OnFallback(kind, err)
		}
	}
	return a
}

func (a *Adapter) probe() error {
	if a.backend == nil {
		return ErrBackendUnavailable
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.backend.Set(ctx, probeKey, probeKey); err != nil {
		return err
	}
	return a.backend.Delete(ctx, probeKey)
}

// Kind returns the configured backend kind.
func (a *Adapter) Kind() Kind { return a.kind }

// FellBack reports whether the adapter is serving from its in-memory map
// because the configured backend failed its probe.
func (a *Adapter) FellBack() bool {
	return a.kind != KindMemory && a.useMem.Load()
}

func (a *Adapter) active() Backend {
	if a.useMem.Load() {
		return a.fallback
	}
	return a.backend
}

func (a *Adapter) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.active().Set(ctx, key, value); err != nil {
		a.logger.Warn("storage set failed", "storage", string(a.kind), "key", key, "error", err)
	}
}

func (a *Adapter) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	v, ok, err := a.active().Get(ctx, key)
	if err != nil {
		a.logger.Warn("storage get failed", "storage", string(a.kind), "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (a *Adapter) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.active().Delete(ctx, key); err != nil {
		a.logger.Warn("storage remove failed", "storage", string(a.kind), "key", key, "error", err)
	}
}

func (a *Adapter) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.active().Clear(ctx); err != nil {
		a.logger.Warn("storage clear failed", "storage", string(a.kind), "error", err)
	}
}

// Close releases the backend. The adapter must not be used afterwards.
func (a *Adapter) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}
