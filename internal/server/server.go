// Package server wires the sandboxd daemon together: config, the
// install-state store, the Docker VM provisioner, the orchestrator
// pool, the queue/worker fan-out and the HTTP surface — the same
// composition root shape as the teacher's server.New/Start/Stop.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/usesandbox/sandbox/internal/bundler"
	config "github.com/usesandbox/sandbox/internal/config"
	"github.com/usesandbox/sandbox/internal/httpapi"
	"github.com/usesandbox/sandbox/internal/orchestrator"
	"github.com/usesandbox/sandbox/internal/queue"
	"github.com/usesandbox/sandbox/internal/ratelimit"
	"github.com/usesandbox/sandbox/internal/state"
	"github.com/usesandbox/sandbox/internal/vm"
	"github.com/usesandbox/sandbox/internal/vm/docker"
	"github.com/usesandbox/sandbox/internal/worker"
)

type Server struct {
	conf        *config.Config
	logger      *zerolog.Logger
	httpServer  *http.Server
	provisioner vm.Provisioner
	store       state.Store
	pool        *orchestrator.Pool
	queue       *queue.Manager
	workers     []*worker.Worker
	cancelFunc  context.CancelFunc

	manifest atomic.Pointer[bundler.Manifest]
}

func New(conf *config.Config, logger *zerolog.Logger) (*Server, error) {
	store, err := newStateStore(conf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create install-state store: %w", err)
	}

	provisioner, err := docker.New(docker.Config{
		Image:         conf.Sandbox.Image,
		MemoryLimitKb: conf.Sandbox.MemoryLimitKb,
		CPUQuota:      conf.Sandbox.CPUQuota,
		PidsLimit:     conf.Sandbox.PidsLimit,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox provisioner: %w", err)
	}

	s := &Server{conf: conf, logger: logger, provisioner: provisioner, store: store}

	if manifest, err := bundler.ReadManifest(conf.Bundle.Dir); err == nil {
		s.manifest.Store(manifest)
	}

	limiter := ratelimit.New(conf.RateLimit.RequestsPerSecond, conf.RateLimit.MaxConcurrent)
	s.pool = orchestrator.NewPool(provisioner, store, conf.Bundle.Dir, limiter, s.currentManifest, logger)

	q := queue.NewManager(conf.Queue.Capacity)
	s.queue = q

	handler := httpapi.NewHandler(q)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/call", handler.Call)

	s.httpServer = &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      mux,
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	workers := make([]*worker.Worker, conf.Queue.Workers)
	for i := range workers {
		workers[i] = worker.NewWorker(i, s.pool, q, logger)
	}
	s.workers = workers

	return s, nil
}

func newStateStore(conf *config.Config, logger *zerolog.Logger) (state.Store, error) {
	switch conf.State.Backend {
	case "postgres":
		return state.NewPGStore(context.Background(), state.PGConfig{
			Host:     conf.Db.Host,
			Port:     conf.Db.Port,
			User:     conf.Db.User,
			Password: conf.Db.Password,
			Name:     conf.Db.Name,
			SSLMode:  conf.Db.SSLMode,
		}, logger)
	default:
		return state.NewFSStore(conf.State.FSDir)
	}
}

// currentManifest implements spec's cache policy: the manifest is
// cached in production, but in development it's re-read from disk on
// every call so a bundle rebuilt by a separate sandboxc run while
// sandboxd is live still propagates to sessions without a restart.
func (s *Server) currentManifest() *bundler.Manifest {
	if s.conf.Environment == "production" {
		return s.manifest.Load()
	}
	if m, err := bundler.ReadManifest(s.conf.Bundle.Dir); err == nil && m != nil {
		s.manifest.Store(m)
		return m
	}
	return s.manifest.Load()
}

// SetManifest installs a freshly built bundle manifest, making it the
// one new sessions install. Existing sessions pick it up on their next
// call via installer.ensureInstalled's hash comparison.
func (s *Server) SetManifest(m *bundler.Manifest) {
	s.manifest.Store(m)
}

func (s *Server) Start() error {
	s.logger.Info().Str("port", s.conf.Server.Port).Msg("starting sandboxd")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel

	for _, w := range s.workers {
		go w.Start(ctx)
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down sandboxd")

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	if err := s.pool.StopAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to stop all sandbox sessions cleanly")
	}
	if closer, ok := s.store.(*state.PGStore); ok {
		closer.Close()
	}
	return nil
}
