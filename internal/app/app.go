// Package app wires all Dragoman subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the management API and the Asterisk event stream
// until the context is cancelled, and Shutdown tears everything down in
// order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithARIClient, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tesparr/dragoman/internal/ari"
	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/config"
	"github.com/tesparr/dragoman/internal/health"
	"github.com/tesparr/dragoman/internal/httpapi"
	"github.com/tesparr/dragoman/internal/observe"
	"github.com/tesparr/dragoman/internal/resilience"
	"github.com/tesparr/dragoman/internal/store"
	"github.com/tesparr/dragoman/internal/stream"
	"github.com/tesparr/dragoman/internal/transcript"
	"github.com/tesparr/dragoman/pkg/provider/langid"
	"github.com/tesparr/dragoman/pkg/provider/stt"
	"github.com/tesparr/dragoman/pkg/provider/translate"
	"github.com/tesparr/dragoman/pkg/provider/tts"
)

// shutdownGrace bounds the HTTP server drain during Run teardown.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per pipeline slot. All four are
// required. Populated by main.go via the config registry.
type Providers struct {
	STT       stt.Provider
	LangID    langid.Provider
	Translate translate.Provider
	TTS       tts.Provider
}

// App owns all subsystem lifetimes and orchestrates the translation bridge.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store    store.Store
	registry *call.Registry
	recorder *transcript.Recorder
	sessions *stream.Manager
	ariCli   *ari.Client
	listener *ari.Listener
	httpSrv  *http.Server
	metrics  *observe.Metrics

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to Redis from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithARIClient injects an ARI client instead of creating one from config.
func WithARIClient(c *ari.Client) Option {
	return func(a *App) { a.ariCli = c }
}

// WithMetrics injects a metrics set instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		return nil, errors.New("app: providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Call registry + transcript recorder ───────────────────────────
	a.registry = call.NewRegistry(a.store, cfg.Redis.CallTTL)
	a.recorder = transcript.NewRecorder(a.store, cfg.Redis.TranscriptTTL)

	// ── 3. Session manager ───────────────────────────────────────────────
	if err := a.initSessions(); err != nil {
		return nil, fmt.Errorf("app: init sessions: %w", err)
	}

	// ── 4. ARI client + event listener ───────────────────────────────────
	if err := a.initARI(); err != nil {
		return nil, fmt.Errorf("app: init ari: %w", err)
	}

	// ── 5. Management API ────────────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		return nil, fmt.Errorf("app: init http: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to Redis unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		rs, err := store.NewRedis(store.RedisConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.store = rs
		a.closers = append(a.closers, rs.Close)
	}
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// initSessions builds the per-call audio session manager.
func (a *App) initSessions() error {
	m, err := stream.NewManager(stream.ManagerConfig{
		Pipeline: stream.Pipeline{
			STT:       a.providers.STT,
			LangID:    a.providers.LangID,
			Translate: a.providers.Translate,
			TTS:       a.providers.TTS,
		},
		Registry:      a.registry,
		Recorder:      a.recorder,
		PivotLanguage: a.cfg.Pipeline.PivotLanguage,
		Direction:     a.cfg.Pipeline.Direction,
		ChunkBytes:    a.cfg.Audio.ChunkBytes,
		SampleRate:    a.cfg.Audio.SampleRate,
		Metrics:       a.metrics,
	})
	if err != nil {
		return err
	}
	a.sessions = m
	return nil
}

// initARI creates the REST client and the event stream listener.
func (a *App) initARI() error {
	if a.ariCli == nil {
		cli, err := ari.NewClient(
			a.cfg.Asterisk.URL,
			a.cfg.Asterisk.Username,
			a.cfg.Asterisk.Password,
			a.cfg.Asterisk.AppName,
		)
		if err != nil {
			return err
		}
		a.ariCli = cli
	}

	l, err := ari.NewListener(ari.ListenerConfig{
		Client:       a.ariCli,
		Registry:     a.registry,
		Sessions:     a.sessions,
		WebsocketURL: a.cfg.Asterisk.WebsocketURL,
		Username:     a.cfg.Asterisk.Username,
		Password:     a.cfg.Asterisk.Password,
		ExternalHost: a.cfg.Asterisk.ExternalMediaHost,
		Retry: resilience.NewRetryPolicy(
			a.cfg.Asterisk.RetryInterval,
			a.cfg.Asterisk.RetryMaxAttempts,
		),
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	a.listener = l
	return nil
}

// initHTTP assembles the management API and the health checks.
func (a *App) initHTTP() error {
	srv, err := httpapi.New(httpapi.ServerConfig{
		Registry:         a.registry,
		Recorder:         a.recorder,
		Sessions:         a.sessions,
		ARI:              a.ariCli,
		Health:           health.New(health.StoreChecker(a.store)),
		EndpointTemplate: a.cfg.Asterisk.Endpoint,
		Metrics:          a.metrics,
	})
	if err != nil {
		return err
	}
	a.httpSrv = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the management API and the Asterisk event stream until ctx is
// cancelled, then drains the HTTP server. It returns the first serve error,
// or nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("management API listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.listener.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.httpSrv.Shutdown(drainCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
