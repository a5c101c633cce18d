package ari

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/observe"
	"github.com/tesparr/dragoman/internal/resilience"
)

// externalChannelPrefix marks channel ids created by StartExternalMedia.
// Their Stasis events belong to the media leg and are skipped.
const externalChannelPrefix = "external-"

// SessionManager is the part of the audio session orchestrator the listener
// needs: tearing sessions down when their call leaves Stasis.
type SessionManager interface {
	Teardown(callID string)
}

// Listener maintains the persistent websocket to the ARI event stream and
// drives call registry transitions. Events on one connection are handled
// strictly sequentially; a failure handling one event is logged and does not
// stop the loop. Connection loss triggers reconnection per the retry policy.
type Listener struct {
	client       *Client
	registry     *call.Registry
	sessions     SessionManager
	metrics      *observe.Metrics
	log          *slog.Logger
	wsURL        string
	username     string
	password     string
	externalHost string
	retry        resilience.RetryPolicy

	// channelCalls maps channel id to call id for the lifetime of a call.
	// Only the listener goroutine touches it, so no locking is needed.
	channelCalls map[string]string
}

// ListenerConfig collects the dependencies of a Listener.
type ListenerConfig struct {
	// Client issues control commands back to Asterisk.
	Client *Client

	// Registry receives the call lifecycle transitions.
	Registry *call.Registry

	// Sessions is notified when a call's session must be torn down.
	Sessions SessionManager

	// WebsocketURL is the ARI events endpoint root, e.g.
	// "ws://localhost:8088/ari". The events path and query are appended.
	WebsocketURL string

	// Username and Password authenticate the event stream via the api_key
	// query parameter.
	Username string
	Password string

	// ExternalHost is the host:port of this process's duplex audio
	// endpoint, as reachable from Asterisk. The client turns it into
	// ws://<host>/ws/audio/<call_id> per call.
	ExternalHost string

	// Retry spaces reconnection attempts. Zero value falls back to
	// resilience.DefaultRetryPolicy.
	Retry resilience.RetryPolicy

	// Metrics is optional; nil falls back to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// Logger is optional; nil falls back to slog.Default.
	Logger *slog.Logger
}

// NewListener creates an event listener. Client, Registry, Sessions and
// WebsocketURL are required.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("ari: listener requires a client")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("ari: listener requires a registry")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("ari: listener requires a session manager")
	}
	if cfg.WebsocketURL == "" {
		return nil, fmt.Errorf("ari: listener requires a websocket URL")
	}
	if cfg.Retry == (resilience.RetryPolicy{}) {
		cfg.Retry = resilience.DefaultRetryPolicy()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		client:       cfg.Client,
		registry:     cfg.Registry,
		sessions:     cfg.Sessions,
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		wsURL:        strings.TrimRight(cfg.WebsocketURL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		externalHost: cfg.ExternalHost,
		retry:        cfg.Retry,
	}, nil
}

// eventsURL builds the full websocket URL for the event stream.
func (l *Listener) eventsURL() string {
	params := url.Values{}
	params.Set("app", l.client.AppName())
	params.Set("api_key", l.username+":"+l.password)
	return l.wsURL + "/events?" + params.Encode()
}

// Run connects to the event stream and processes events until ctx is
// cancelled. Connection failures are logged and retried per the policy;
// Run only returns on cancellation or when the retry budget is exhausted.
func (l *Listener) Run(ctx context.Context) error {
	l.channelCalls = make(map[string]string)

	attempt := 0
	for {
		err := l.runConn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		l.log.Error("event stream disconnected, reconnecting",
			"err", err, "attempt", attempt, "interval", l.retry.Interval)
		if werr := l.retry.Wait(ctx, attempt); werr != nil {
			return werr
		}
	}
}

// runConn dials once and reads events until the connection fails.
func (l *Listener) runConn(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.eventsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	// Event frames are a few hundred bytes; the default 32 KiB read limit
	// can be exceeded by channel var dumps on busy systems.
	conn.SetReadLimit(1 << 20)

	l.log.Info("connected to event stream", "app", l.client.AppName())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		l.handle(ctx, data)
	}
}

// handle dispatches one raw event frame. Errors and panics are contained
// here so one bad event never stops the loop.
func (l *Listener) handle(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("panic handling event", "panic", r)
		}
	}()

	ev, err := ParseEvent(data)
	if err != nil {
		l.log.Warn("malformed event dropped", "err", err)
		return
	}

	switch e := ev.(type) {
	case StasisStart:
		l.metrics.RecordAriEvent(ctx, "StasisStart")
		l.onStasisStart(ctx, e)
	case StasisEnd:
		l.metrics.RecordAriEvent(ctx, "StasisEnd")
		l.onStasisEnd(ctx, e)
	case ChannelStateChange:
		l.metrics.RecordAriEvent(ctx, "ChannelStateChange")
		l.onChannelStateChange(ctx, e)
	case ChannelDtmfReceived:
		l.metrics.RecordAriEvent(ctx, "ChannelDtmfReceived")
		l.onDtmf(ctx, e)
	case Unrecognized:
		l.metrics.RecordAriEvent(ctx, e.Type)
		l.log.Debug("ignoring event", "type", e.Type)
	}
}

func (l *Listener) onStasisStart(ctx context.Context, e StasisStart) {
	if strings.HasPrefix(e.Channel.ID, externalChannelPrefix) {
		l.log.Debug("external media channel entered stasis", "channel_id", e.Channel.ID)
		return
	}

	// The call id comes from the Stasis arguments (set by Originate);
	// inbound calls without arguments fall back to the channel id.
	callID := e.Channel.ID
	if len(e.Args) > 0 && e.Args[0] != "" {
		callID = e.Args[0]
	}
	l.channelCalls[e.Channel.ID] = callID

	log := l.log.With("call_id", callID, "channel_id", e.Channel.ID)
	log.Info("call entered stasis", "caller", e.Channel.Caller.Number)

	if _, err := l.registry.Activate(ctx, callID, e.Channel.Caller.Number, e.Channel.ID); err != nil {
		log.Error("activate call record failed", "err", err)
	}
	l.metrics.CallsStarted.Add(ctx, 1)

	// Control commands are fire-and-forget: a failure degrades this call
	// (e.g. media never starts) but must not abort event handling.
	if err := l.client.Answer(ctx, e.Channel.ID); err != nil {
		log.Error("answer failed", "err", err)
	}
	if _, err := l.client.StartExternalMedia(ctx, callID, l.externalHost); err != nil {
		log.Error("start external media failed", "err", err)
	}
}

func (l *Listener) onStasisEnd(ctx context.Context, e StasisEnd) {
	if strings.HasPrefix(e.Channel.ID, externalChannelPrefix) {
		return
	}
	callID, ok := l.channelCalls[e.Channel.ID]
	if !ok {
		l.log.Debug("stasis end for unknown channel", "channel_id", e.Channel.ID)
		return
	}
	delete(l.channelCalls, e.Channel.ID)

	log := l.log.With("call_id", callID, "channel_id", e.Channel.ID)
	log.Info("call left stasis")

	if err := l.registry.SetStatus(ctx, callID, call.StatusTerminated); err != nil {
		log.Error("terminate call record failed", "err", err)
	}
	l.metrics.CallsEnded.Add(ctx, 1)
	l.sessions.Teardown(callID)
}

func (l *Listener) onChannelStateChange(ctx context.Context, e ChannelStateChange) {
	callID, ok := l.channelCalls[e.Channel.ID]
	if !ok {
		return
	}
	if err := l.registry.SetChannelState(ctx, callID, e.Channel.State); err != nil {
		l.log.Error("persist channel state failed", "call_id", callID, "err", err)
	}
}

func (l *Listener) onDtmf(ctx context.Context, e ChannelDtmfReceived) {
	callID, ok := l.channelCalls[e.Channel.ID]
	if !ok {
		return
	}
	// Digits are recorded but have no consumer yet; reserved for language
	// override input.
	if err := l.registry.AppendDTMF(ctx, callID, e.Digit); err != nil {
		l.log.Error("append dtmf failed", "call_id", callID, "err", err)
	}
}
