package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/observe"
	"github.com/tesparr/dragoman/internal/transcript"
)

// ErrSessionExists is returned by Attach when a session for the call id is
// already running.
var ErrSessionExists = errors.New("stream: session already attached for call")

// ManagerConfig collects the dependencies and tuning of a Manager.
type ManagerConfig struct {
	// Pipeline provides the four capability providers.
	Pipeline Pipeline

	// Registry persists detected languages on call records.
	Registry *call.Registry

	// Recorder persists per-chunk translation round trips.
	Recorder *transcript.Recorder

	// PivotLanguage is the fixed intermediate language for this deployment.
	PivotLanguage string

	// Direction of the relay, fixed per session at creation.
	Direction transcript.Direction

	// ChunkBytes is the buffer threshold that triggers a pipeline run.
	// Zero means DefaultChunkBytes.
	ChunkBytes int

	// SampleRate of the inbound PCM, used to report how much audio each
	// chunk carries. Zero means DefaultSampleRate.
	SampleRate int

	// Metrics is optional; nil falls back to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// Logger is optional; nil falls back to slog.Default.
	Logger *slog.Logger
}

// Manager owns the audio sessions of all in-progress calls. Attach blocks
// for the lifetime of a session; Teardown cancels one by call id.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager validates the config and creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Pipeline.STT == nil || cfg.Pipeline.LangID == nil ||
		cfg.Pipeline.Translate == nil || cfg.Pipeline.TTS == nil {
		return nil, errors.New("stream: all four pipeline providers are required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("stream: registry is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("stream: recorder is required")
	}
	if cfg.PivotLanguage == "" {
		return nil, errors.New("stream: pivot language is required")
	}
	if !cfg.Direction.IsValid() {
		return nil, fmt.Errorf("stream: invalid direction %q", cfg.Direction)
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = DefaultChunkBytes
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// Attach runs a session for callID on the given media channel. It blocks
// until the channel closes, Teardown is called, or ctx is cancelled.
// Returns ErrSessionExists when the call already has a session.
func (m *Manager) Attach(ctx context.Context, callID string, ch MediaChannel) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if _, ok := m.cancels[callID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, callID)
	}
	m.cancels[callID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.cancels, callID)
		m.mu.Unlock()
	}()

	log := m.cfg.Logger.With("call_id", callID)
	m.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer m.cfg.Metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	s := &session{
		callID:     callID,
		direction:  m.cfg.Direction,
		pivotLang:  m.cfg.PivotLanguage,
		chunkBytes: m.cfg.ChunkBytes,
		sampleRate: m.cfg.SampleRate,
		pipeline:   m.cfg.Pipeline,
		registry:   m.cfg.Registry,
		recorder:   m.cfg.Recorder,
		metrics:    m.cfg.Metrics,
		log:        log,
	}

	log.Info("audio session attached", "direction", s.direction, "chunk_bytes", s.chunkBytes)
	err := s.run(ctx, ch)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("audio session torn down")
		return nil
	case err != nil:
		// The channel closing is the normal end of a call; session errors
		// never propagate beyond this call.
		log.Info("audio session ended", "reason", err)
		return nil
	}
	return nil
}

// Teardown cancels the session for callID, if one is running. Safe to call
// repeatedly and for unknown call ids.
func (m *Manager) Teardown(callID string) {
	m.mu.Lock()
	cancel, ok := m.cancels[callID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// ActiveSessions reports how many sessions are currently attached.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}
