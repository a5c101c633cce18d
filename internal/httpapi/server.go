// Package httpapi exposes the management HTTP surface: call initiation and
// hangup, status and transcript reads, aggregate stats, health probes, the
// Prometheus metrics endpoint, and the duplex audio websocket that feeds the
// session orchestrator.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tesparr/dragoman/internal/ari"
	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/health"
	"github.com/tesparr/dragoman/internal/observe"
	"github.com/tesparr/dragoman/internal/stream"
	"github.com/tesparr/dragoman/internal/transcript"
)

// Server holds the handlers of the management API. Construct with New and
// mount via Handler.
type Server struct {
	registry *call.Registry
	recorder *transcript.Recorder
	sessions *stream.Manager
	ariCli   *ari.Client
	health   *health.Handler
	metrics  *observe.Metrics
	log      *slog.Logger

	// endpointTemplate formats a destination number into a dialable
	// endpoint, e.g. "PJSIP/%s".
	endpointTemplate string
}

// ServerConfig collects the dependencies of a Server.
type ServerConfig struct {
	Registry *call.Registry
	Recorder *transcript.Recorder
	Sessions *stream.Manager
	ARI      *ari.Client
	Health   *health.Handler

	// EndpointTemplate formats destinations for Originate, e.g. "PJSIP/%s".
	EndpointTemplate string

	// Metrics is optional; nil falls back to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// Logger is optional; nil falls back to slog.Default.
	Logger *slog.Logger
}

// New creates a Server. Registry, Recorder, Sessions, ARI and Health are
// required.
func New(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil || cfg.Recorder == nil || cfg.Sessions == nil ||
		cfg.ARI == nil || cfg.Health == nil {
		return nil, errors.New("httpapi: registry, recorder, sessions, ari and health are required")
	}
	if cfg.EndpointTemplate == "" {
		cfg.EndpointTemplate = "PJSIP/%s"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		registry:         cfg.Registry,
		recorder:         cfg.Recorder,
		sessions:         cfg.Sessions,
		ariCli:           cfg.ARI,
		health:           cfg.Health,
		metrics:          cfg.Metrics,
		log:              cfg.Logger,
		endpointTemplate: cfg.EndpointTemplate,
	}, nil
}

// Handler returns the fully routed handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/call/initiate", s.handleInitiate)
	mux.HandleFunc("POST /api/call/{id}/hangup", s.handleHangup)
	mux.HandleFunc("GET /api/call/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/call/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /ws/audio/{id}", s.handleAudio)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// initiateRequest is the body of POST /api/call/initiate.
type initiateRequest struct {
	// Destination is the number to dial.
	Destination string `json:"destination"`

	// CallerNumber is the caller id presented to the destination.
	CallerNumber string `json:"caller_number"`
}

type initiateResponse struct {
	CallID    string `json:"call_id"`
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Destination == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}

	ctx := r.Context()
	callID := uuid.NewString()
	if _, err := s.registry.Create(ctx, callID, req.CallerNumber, req.Destination); err != nil {
		s.log.Error("create call record failed", "call_id", callID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not create call record")
		return
	}

	endpoint := fmt.Sprintf(s.endpointTemplate, req.Destination)
	channelID, err := s.ariCli.Originate(ctx, callID, endpoint, req.CallerNumber)
	if err != nil {
		s.log.Error("originate failed", "call_id", callID, "endpoint", endpoint, "err", err)
		writeError(w, http.StatusBadGateway, "call origination failed")
		return
	}
	if err := s.registry.AttachChannel(ctx, callID, channelID); err != nil {
		s.log.Error("attach channel failed", "call_id", callID, "err", err)
	}

	s.log.Info("call initiated", "call_id", callID, "destination", req.Destination)
	writeJSON(w, http.StatusCreated, initiateResponse{
		CallID:    callID,
		ChannelID: channelID,
		Status:    string(call.StatusInitiated),
	})
}

func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := r.PathValue("id")

	rec, err := s.registry.Get(ctx, callID)
	if errors.Is(err, call.ErrNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read call record")
		return
	}

	// Hangup failures are logged, not surfaced: the channel may already be
	// gone, and StasisEnd will reconcile the record either way.
	if rec.ChannelID != "" {
		if err := s.ariCli.Hangup(ctx, rec.ChannelID); err != nil {
			s.log.Warn("hangup command failed", "call_id", callID, "err", err)
		}
	}
	if err := s.registry.SetStatus(ctx, callID, call.StatusTerminated); err != nil &&
		!errors.Is(err, call.ErrInvalidTransition) {
		s.log.Error("terminate call record failed", "call_id", callID, "err", err)
	}
	s.sessions.Teardown(callID)

	writeJSON(w, http.StatusOK, map[string]string{
		"call_id": callID,
		"status":  string(call.StatusTerminated),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, call.ErrNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read call record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	entries, err := s.recorder.ReadAll(r.Context(), callID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read transcript")
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id": callID,
		"entries": entries,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active, err := s.registry.ActiveCalls(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read counters")
		return
	}
	total, err := s.registry.TotalProcessed(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read counters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls":          active,
		"total_calls_processed": total,
		"active_sessions":       s.sessions.ActiveSessions(),
	})
}

// handleAudio upgrades to a websocket and attaches the call's audio session.
// The request blocks for the lifetime of the session.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	// The middleware span is active here, so the trace id lands next to
	// call_id on every line.
	log := observe.Logger(r.Context()).With("call_id", callID)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	ch := newWSChannel(conn)

	log.Info("duplex audio channel opened")
	if err := s.sessions.Attach(r.Context(), callID, ch); err != nil {
		log.Warn("session attach failed", "err", err)
		conn.Close(websocket.StatusPolicyViolation, "session already attached")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
