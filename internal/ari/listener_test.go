package ari

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"

	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/resilience"
	"github.com/tesparr/dragoman/internal/store"
)

// fakeSessions records Teardown calls.
type fakeSessions struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSessions) Teardown(callID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callID)
}

func (f *fakeSessions) teardowns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// newEventServer returns a websocket server that sends the given event
// frames in order, then holds the connection open until the server closes.
func newEventServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/events") {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for _, ev := range events {
			if err := conn.Write(ctx, websocket.MessageText, []byte(ev)); err != nil {
				return
			}
		}
		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

// listenerHarness bundles a running listener with its collaborators.
type listenerHarness struct {
	registry *call.Registry
	sessions *fakeSessions
	rest     *fakeAsterisk
	cancel   context.CancelFunc
	done     chan error
}

func startListener(t *testing.T, events []string) *listenerHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	st, err := store.NewRedis(store.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("store.NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	registry := call.NewRegistry(st, time.Hour)

	// Fake Asterisk REST side for answer/externalMedia commands.
	rest, fake := newFakeAsterisk(t, http.StatusNoContent, "")
	client := newTestClient(t, rest.URL)

	evSrv := newEventServer(t, events)
	sessions := &fakeSessions{}

	l, err := NewListener(ListenerConfig{
		Client:       client,
		Registry:     registry,
		Sessions:     sessions,
		WebsocketURL: "ws" + strings.TrimPrefix(evSrv.URL, "http"),
		Username:     "asterisk",
		Password:     "secret",
		ExternalHost: "media.local:8090",
		Retry:        resilience.NewRetryPolicy(time.Hour, 0),
	})
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	h := &listenerHarness{registry: registry, sessions: sessions, rest: fake, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("listener did not stop after cancellation")
		}
	})
	return h
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

const stasisStartEvent = `{
	"type": "StasisStart",
	"args": ["call-1"],
	"channel": {"id": "chan-1", "state": "Ring", "caller": {"number": "1001"}}
}`

func TestListener_StasisStartActivatesCall(t *testing.T) {
	h := startListener(t, []string{stasisStartEvent})

	ctx := context.Background()
	waitFor(t, func() bool {
		rec, err := h.registry.Get(ctx, "call-1")
		return err == nil && rec.Status == call.StatusActive
	})

	rec, err := h.registry.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ChannelID != "chan-1" {
		t.Errorf("ChannelID = %q, want chan-1", rec.ChannelID)
	}
	if rec.CallerNumber != "1001" {
		t.Errorf("CallerNumber = %q, want 1001", rec.CallerNumber)
	}
	if n, _ := h.registry.ActiveCalls(ctx); n != 1 {
		t.Errorf("ActiveCalls = %d, want 1", n)
	}

	// Answer and external media must both have been issued.
	waitFor(t, func() bool { return len(h.rest.requests()) >= 2 })
	reqs := h.rest.requests()
	paths := []string{reqs[0].path, reqs[1].path}
	if paths[0] != "/channels/chan-1/answer" {
		t.Errorf("first command path = %q, want answer", paths[0])
	}
	if paths[1] != "/channels/externalMedia" {
		t.Errorf("second command path = %q, want externalMedia", paths[1])
	}
	if vals := reqs[1].query["external_host"]; len(vals) != 1 ||
		!strings.HasSuffix(vals[0], "/ws/audio/call-1") {
		t.Errorf("external_host = %v, want target ending in /ws/audio/call-1", vals)
	}
}

func TestListener_FallsBackToChannelID(t *testing.T) {
	h := startListener(t, []string{
		`{"type":"StasisStart","args":[],"channel":{"id":"chan-raw","caller":{"number":"2002"}}}`,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		_, err := h.registry.Get(ctx, "chan-raw")
		return err == nil
	})
}

func TestListener_StasisEndTerminatesAndTearsDown(t *testing.T) {
	h := startListener(t, []string{
		stasisStartEvent,
		`{"type":"StasisEnd","channel":{"id":"chan-1"}}`,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		rec, err := h.registry.Get(ctx, "call-1")
		return err == nil && rec.Status == call.StatusTerminated
	})

	if n, _ := h.registry.ActiveCalls(ctx); n != 0 {
		t.Errorf("ActiveCalls = %d, want 0", n)
	}
	if n, _ := h.registry.TotalProcessed(ctx); n != 1 {
		t.Errorf("TotalProcessed = %d, want 1", n)
	}
	td := h.sessions.teardowns()
	if len(td) != 1 || td[0] != "call-1" {
		t.Errorf("teardowns = %v, want [call-1]", td)
	}
}

func TestListener_DuplicateStasisEndDecrementsOnce(t *testing.T) {
	h := startListener(t, []string{
		stasisStartEvent,
		`{"type":"StasisEnd","channel":{"id":"chan-1"}}`,
		`{"type":"StasisEnd","channel":{"id":"chan-1"}}`,
		`{"type":"ChannelDtmfReceived","channel":{"id":"marker"},"digit":"0"}`,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		rec, err := h.registry.Get(ctx, "call-1")
		return err == nil && rec.Status == call.StatusTerminated
	})

	if n, _ := h.registry.ActiveCalls(ctx); n != 0 {
		t.Errorf("ActiveCalls = %d, want 0 after duplicate terminal events", n)
	}
	if n, _ := h.registry.TotalProcessed(ctx); n != 1 {
		t.Errorf("TotalProcessed = %d, want 1", n)
	}
}

func TestListener_ChannelStateAndDtmfPersisted(t *testing.T) {
	h := startListener(t, []string{
		stasisStartEvent,
		`{"type":"ChannelStateChange","channel":{"id":"chan-1","state":"Up"}}`,
		`{"type":"ChannelDtmfReceived","channel":{"id":"chan-1"},"digit":"4"}`,
		`{"type":"ChannelDtmfReceived","channel":{"id":"chan-1"},"digit":"2"}`,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		digits, err := h.registry.DTMF(ctx, "call-1")
		return err == nil && len(digits) == 2
	})

	rec, err := h.registry.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ChannelState != "Up" {
		t.Errorf("ChannelState = %q, want Up", rec.ChannelState)
	}
	digits, _ := h.registry.DTMF(ctx, "call-1")
	if digits[0] != "4" || digits[1] != "2" {
		t.Errorf("DTMF digits = %v, want [4 2]", digits)
	}
}

func TestListener_SurvivesMalformedAndUnknownEvents(t *testing.T) {
	h := startListener(t, []string{
		`{broken json`,
		`{"type":"PlaybackFinished","playback":{"id":"p1"}}`,
		stasisStartEvent,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		rec, err := h.registry.Get(ctx, "call-1")
		return err == nil && rec.Status == call.StatusActive
	})
}

func TestListener_SkipsExternalMediaChannels(t *testing.T) {
	h := startListener(t, []string{
		`{"type":"StasisStart","args":[],"channel":{"id":"external-call-1"}}`,
		stasisStartEvent,
	})

	ctx := context.Background()
	waitFor(t, func() bool {
		_, err := h.registry.Get(ctx, "call-1")
		return err == nil
	})

	// The external media leg must not have produced its own record.
	if _, err := h.registry.Get(ctx, "external-call-1"); err == nil {
		t.Error("external media channel produced a call record")
	}
	if n, _ := h.registry.ActiveCalls(ctx); n != 1 {
		t.Errorf("ActiveCalls = %d, want 1", n)
	}
}
