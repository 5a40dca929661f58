package authclient

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authclient/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenBackend struct{}

func (brokenBackend) Set(context.Context, string, string) error { return errors.New("quota exceeded") }
func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("quota exceeded")
}
func (brokenBackend) Delete(context.Context, string) error { return errors.New("quota exceeded") }
func (brokenBackend) Clear(context.Context) error          { return errors.New("quota exceeded") }
func (brokenBackend) Close() error                         { return nil }

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(validConfig()).WithTransport(&fakeTransport{}).WithBackend(storage.NewMemory())
	m, err := b.Build()
	require.NoError(t, err)
	defer m.Close()

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderUsed)
}

func TestBuilderStorageFallback(t *testing.T) {
	sink := NewChannelSink(4)
	cfg := validConfig()
	cfg.AutoRefresh = false
	cfg.Events.Enabled = true

	m, err := New().
		WithConfig(cfg).
		WithTransport(&fakeTransport{}).
		WithBackend(brokenBackend{}).
		WithEventSink(sink).
		Build()
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, uint64(1), m.MetricsSnapshot().Counters[MetricStorageFallback])

	_, err = m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, m.IsAuthenticated())
	tok, ok := m.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "access", tok)

	ev := <-sink.Events()
	assert.Equal(t, EventStorageFallback, ev.Type)
	assert.Equal(t, "local", ev.Metadata["storage"])
}

func TestBuilderSessionStorageWithoutRedisFallsBack(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = storage.KindSession

	m, err := New().WithConfig(cfg).WithTransport(&fakeTransport{}).Build()
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, uint64(1), m.MetricsSnapshot().Counters[MetricStorageFallback])
}

func TestBuilderMetricsToggle(t *testing.T) {
	m, err := New().
		WithConfig(validConfig()).
		WithTransport(&fakeTransport{}).
		WithBackend(storage.NewMemory()).
		WithMetricsEnabled(false).
		Build()
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Zero(t, m.MetricsSnapshot().Counters[MetricLoginSuccess])
}
