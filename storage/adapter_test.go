package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct {
	setErr error
	calls  int
}

func (f *failingBackend) Set(context.Context, string, string) error {
	f.calls++
	return f.setErr
}
func (f *failingBackend) Get(context.Context, string) (string, bool, error) {
	f.calls++
	return "", false, f.setErr
}
func (f *failingBackend) Delete(context.Context, string) error { f.calls++; return f.setErr }
func (f *failingBackend) Clear(context.Context) error          { f.calls++; return f.setErr }
func (f *failingBackend) Close() error                         { return nil }

func TestAdapterFallsBackWhenProbeFails(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	backend := &failingBackend{setErr: errors.New("quota exceeded")}

	var fallbackKind Kind
	a := NewAdapter(KindLocal, backend, Options{
		Logger:     logger,
		OnFallback: func(k Kind, _ error) { fallbackKind = k },
	})

	require.True(t, a.FellBack())
	assert.Equal(t, KindLocal, fallbackKind)
	assert.True(t, strings.Contains(logs.String(), "falling back"), "expected warning, got %q", logs.String())
	assert.True(t, strings.Contains(logs.String(), "level=WARN"))

	probeCalls := backend.calls

	a.Set("k", "v")
	v, ok := a.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	a.Remove("k")
	_, ok = a.Get("k")
	assert.False(t, ok)

	a.Set("x", "1")
	a.Clear()
	_, ok = a.Get("x")
	assert.False(t, ok)

	assert.Equal(t, probeCalls, backend.calls, "backend must not be retried after fallback")
}

func TestAdapterNilBackendFallsBack(t *testing.T) {
	a := NewAdapter(KindSession, nil, Options{})
	require.True(t, a.FellBack())

	a.Set("k", "v")
	v, ok := a.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestAdapterMemoryNeverReportsFallback(t *testing.T) {
	a := NewAdapter(KindMemory, nil, Options{})
	assert.False(t, a.FellBack())

	_, ok := a.Get("missing")
	assert.False(t, ok)
	a.Remove("missing")
}

func TestAdapterUsesHealthyBackend(t *testing.T) {
	backend := NewMemory()
	a := NewAdapter(KindLocal, backend, Options{})
	require.False(t, a.FellBack())

	a.Set("k", "v")
	assert.Equal(t, 1, backend.Len(), "probe key must be removed")

	v, ok, err := backend.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestAdapterAbsorbsRuntimeErrors(t *testing.T) {
	backend := &flakyBackend{Memory: NewMemory()}
	a := NewAdapter(KindLocal, backend, Options{})
	require.False(t, a.FellBack())

	backend.broken = true
	a.Set("k", "v")
	_, ok := a.Get("k")
	assert.False(t, ok)
	a.Remove("k")
	a.Clear()
}

type flakyBackend struct {
	*Memory
	broken bool
}

func (f *flakyBackend) Set(ctx context.Context, k, v string) error {
	if f.broken {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, k, v)
}

func (f *flakyBackend) Get(ctx context.Context, k string) (string, bool, error) {
	if f.broken {
		return "", false, errors.New("io error")
	}
	return f.Memory.Get(ctx, k)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "local", want: KindLocal},
		{in: "localStorage", want: KindLocal},
		{in: "durable", want: KindLocal},
		{in: " Session ", want: KindSession},
		{in: "sessionStorage", want: KindSession},
		{in: "memory", want: KindMemory},
		{in: "disk", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
