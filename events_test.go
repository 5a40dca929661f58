package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/storage"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, SessionEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, SessionEvent) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEventsDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	cfg := DefaultConfig()
	cfg.APIURL = "https://api.example.com"
	cfg.Storage = storage.KindMemory
	cfg.AutoRefresh = false
	cfg.Events.Enabled = false

	m, err := New().WithConfig(cfg).WithTransport(&fakeTransport{}).WithEventSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()

	if _, err := m.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	m.Logout(context.Background())
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", sink.Count())
	}
	if m.EventsDropped() != 0 {
		t.Fatalf("expected zero dropped, got %d", m.EventsDropped())
	}
}

func TestEventsBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), SessionEvent{Type: "e1"})
	dispatcher.Emit(context.Background(), SessionEvent{Type: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), SessionEvent{Type: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestEventsBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), SessionEvent{Type: "e1"})
	dispatcher.Emit(context.Background(), SessionEvent{Type: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), SessionEvent{Type: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestEventsEmitHonoursContextWhenBlocking(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), SessionEvent{Type: "e1"})
	dispatcher.Emit(context.Background(), SessionEvent{Type: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	dispatcher.Emit(ctx, SessionEvent{Type: "e3"})
	if time.Since(start) > time.Second {
		t.Fatal("expected emit to give up when the context ends")
	}
}

func TestEventsJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), SessionEvent{
		Timestamp: time.Now().UTC(),
		Type:      EventLogin,
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), SessionEvent{Type: EventLogout})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev SessionEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if ev.Type != EventLogin || ev.UserID != "u1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEventsDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), SessionEvent{Type: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), SessionEvent{Type: "e2"})
}

func TestEventsNilDispatcherIsSafe(t *testing.T) {
	var d *eventDispatcher
	d.Emit(context.Background(), SessionEvent{Type: "e1"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero dropped on nil dispatcher")
	}
}

func TestEventsNoSecrets(t *testing.T) {
	sink := NewChannelSink(32)
	cfg := DefaultConfig()
	cfg.APIURL = "https://api.example.com"
	cfg.Storage = storage.KindMemory
	cfg.AutoRefresh = false
	cfg.Events.Enabled = true
	cfg.Events.DropIfFull = false

	api := &fakeTransport{}
	m, err := New().WithConfig(cfg).WithTransport(api).WithEventSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	const password = "correct-password-123"
	if _, err := m.Login(context.Background(), "a@b.c", password); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := m.RefreshToken(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	m.Logout(context.Background())
	_ = m.Close()

	needles := []string{password, "access", "refresh", "access-2", "refresh-2"}
	seen := 0
	for {
		select {
		case ev := <-sink.Events():
			seen++
			data, _ := json.Marshal(ev)
			for _, needle := range needles {
				if strings.Contains(ev.Error, needle) {
					t.Fatalf("secret %q leaked in event error", needle)
				}
				for k, v := range ev.Metadata {
					if strings.Contains(v, needle) {
						t.Fatalf("secret %q leaked in metadata %q: %s", needle, k, data)
					}
				}
			}
		default:
			if seen < 3 {
				t.Fatalf("expected at least 3 events, got %d", seen)
			}
			return
		}
	}
}
