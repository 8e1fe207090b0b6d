// Package httpapi exposes the local trigger/schedule API consumed by the
// configuration CLI and by operators (curl). It is a thin shim over the
// session orchestrator and the schedule runtime; it holds no state of its own.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"promobot/internal/schedule"
	"promobot/internal/state"
	logx "promobot/pkg/logx"
)

type Config struct {
	Addr string
}

type Server struct {
	cfg     Config
	log     logx.Logger
	runner  schedule.SessionRunner
	runtime *schedule.Runtime
	repo    *state.Repo
	started time.Time

	mu  sync.Mutex
	srv *http.Server
}

func New(cfg Config, runner schedule.SessionRunner, runtime *schedule.Runtime, repo *state.Repo, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8931"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log, runner: runner, runtime: runtime, repo: repo}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleRunSession)
		r.Post("/schedules", s.handleCreateSchedule)
		r.Get("/schedules", s.handleListSchedules)
	})
	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	s.started = time.Now()
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.srv = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http api stopped", logx.Err(err))
		}
	}()
	s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
}
