// Package server implements the census HTTP service: the API listener the
// fleet reports to (activate/ping) and an admin listener for health,
// metrics, and population stats.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
	"github.com/LuisBuenanyo/eos-phone-home/internal/metrics"
)

// Options carries the optional collaborators a Server can be wired with.
type Options struct {
	RequestLog *census.RequestLog // nil disables the request log
	Publisher  *Publisher         // nil disables event publishing
	Recorder   metrics.Recorder   // nil falls back to NoopRecorder
	Registry   *prom.Registry     // nil disables the /metrics endpoint
	Now        func() time.Time   // record clock; tests inject
}

// Server manages the API and admin HTTP listeners.
type Server struct {
	cfg          *config.ServerConfig
	store        *census.Store
	requestLog   *census.RequestLog
	publisher    *Publisher
	publishing   atomic.Bool
	recorder     metrics.Recorder
	registry     *prom.Registry
	now          func() time.Time
	startTime    time.Time
	errorAdapter *pherrors.HTTPErrorAdapter

	apiServer   *http.Server
	adminServer *http.Server
	apiLn       net.Listener
	adminLn     net.Listener

	// middleware chain
	mchain func(http.Handler) http.Handler
}

// New constructs a census server around the given store.
func New(cfg *config.ServerConfig, store *census.Store, opts Options) *Server {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:          cfg,
		store:        store,
		requestLog:   opts.RequestLog,
		publisher:    opts.Publisher,
		recorder:     opts.Recorder,
		registry:     opts.Registry,
		now:          opts.Now,
		startTime:    time.Now(),
		errorAdapter: pherrors.NewHTTPErrorAdapter(slog.Default()),
	}
	s.publishing.Store(opts.Publisher != nil)
	s.mchain = Chain(slog.Default(), s.errorAdapter, s.recorder)
	return s
}

func (s *Server) apiMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/activate", s.handleActivate)
	mux.HandleFunc("/v1/ping", s.handlePing)
	return mux
}

func (s *Server) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/stats", s.handleStats)
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	return mux
}

// Start binds both listeners and begins serving. Ports are pre-bound so a
// busy address surfaces as one aggregate error instead of a partial startup.
func (s *Server) Start(ctx context.Context) error {
	type preBind struct {
		name string
		addr string
		ln   net.Listener
	}
	binds := []preBind{
		{name: "api", addr: s.cfg.ListenAddr},
		{name: "admin", addr: s.cfg.AdminAddr},
	}

	var bindErrs []error
	lc := net.ListenConfig{}
	for i := range binds {
		ln, err := lc.Listen(ctx, "tcp", binds[i].addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s listener %s: %w", binds[i].name, binds[i].addr, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("server startup failed: %w", errors.Join(bindErrs...))
	}

	s.apiLn, s.adminLn = binds[0].ln, binds[1].ln
	s.apiServer = &http.Server{
		Handler:      s.mchain(s.apiMux()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.adminServer = &http.Server{
		Handler:      s.mchain(s.adminMux()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.serve("api", s.apiServer, s.apiLn)
	s.serve("admin", s.adminServer, s.adminLn)

	slog.Info("Census server started",
		slog.String("api_addr", s.APIAddr()),
		slog.String("admin_addr", s.AdminAddr()))
	return nil
}

// serve launches an http.Server on its pre-bound listener.
func (s *Server) serve(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s server error", kind), logfields.Error(err))
		}
	}()
}

// Stop gracefully shuts down both listeners.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}
	if s.apiServer != nil {
		if err := s.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Census server stopped")
	return nil
}

// APIAddr reports the bound API address, useful with ":0" listeners.
func (s *Server) APIAddr() string {
	if s.apiLn != nil {
		return s.apiLn.Addr().String()
	}
	return s.cfg.ListenAddr
}

// AdminAddr reports the bound admin address.
func (s *Server) AdminAddr() string {
	if s.adminLn != nil {
		return s.adminLn.Addr().String()
	}
	return s.cfg.AdminAddr
}

// SetPublishing toggles event publishing at runtime. Publishing can only be
// enabled when a connection was established at startup.
func (s *Server) SetPublishing(enabled bool) {
	if enabled && s.publisher == nil {
		slog.Warn("Event publishing enabled in config but no broker connection exists, restart required")
		return
	}
	s.publishing.Store(enabled)
}

// publish hands one event to the publisher. Failures are logged and counted,
// never surfaced to the request that produced the event.
func (s *Server) publish(eventType, channel string, count int, at time.Time) {
	if s.publisher == nil || !s.publishing.Load() {
		return
	}
	event := Event{Type: eventType, Channel: channel, Count: count, At: at}
	if err := s.publisher.Publish(event); err != nil {
		slog.Warn("Event publish failed",
			logfields.Subject(s.publisher.subject),
			logfields.Error(err))
		s.recorder.IncPublished(false)
		return
	}
	s.recorder.IncPublished(true)
}
