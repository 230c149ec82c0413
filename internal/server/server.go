// Package server is roster's HTTP runtime. It owns routing, the middleware
// stack and the listener; every piece of application state it touches lives
// in the *state.Store it is handed at construction.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/roster/internal/config"
	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/conneroisu/roster/internal/logging"
	"github.com/conneroisu/roster/internal/middleware"
	"github.com/conneroisu/roster/internal/monitoring"
	"github.com/conneroisu/roster/internal/state"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server handles HTTP server lifecycle and route registration.
//
// Invariants:
//   - config, store and logger are never nil after construction
//   - httpServer is set once, by New
//   - isShutdown and listener are protected by mu
type Server struct {
	config  *config.Config
	store   *state.Store
	logger  logging.Logger
	metrics *monitoring.Metrics
	limiter *middleware.RateLimiter
	health  *monitoring.HealthMonitor
	router  chi.Router

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	isShutdown bool
	started    chan struct{}
	startOnce  sync.Once

	// done is closed by Shutdown. Websocket streams are hijacked and outlive
	// http.Server.Shutdown, so they watch it instead.
	done chan struct{}
}

// Dependencies are injected into New. Metrics is optional; without it the
// /metrics route is not mounted.
type Dependencies struct {
	Config  *config.Config
	Store   *state.Store
	Logger  logging.Logger
	Metrics *monitoring.Metrics
}

// New wires routes and middleware. It does not bind.
func New(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config cannot be nil")
	}
	if deps.Store == nil {
		return nil, errors.New("server: store cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}

	s := &Server{
		config:  deps.Config,
		store:   deps.Store,
		logger:  deps.Logger.WithComponent("server"),
		metrics: deps.Metrics,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.health = monitoring.NewHealthMonitor(deps.Logger, healthCheckTimeout)
	s.health.RegisterCheck(monitoring.StateHealthChecker(deps.Store, healthSlotTimeout))
	s.health.RegisterCheck(monitoring.GoroutineHealthChecker(0))

	chain := middleware.NewChain(middleware.Dependencies{
		Config:  deps.Config,
		Store:   deps.Store,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chain.Middlewares()...)
	r.Use(chimw.Recoverer)
	s.router = r
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              deps.Config.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.limiter = chain.RateLimiter()

	return s, nil
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the configured address and serves until ctx is cancelled or
// the server fails. Cancellation triggers a graceful shutdown bounded by
// server.shutdown_timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return errors.New("server: already shut down")
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server: already started")
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return apperrors.NewInternalError("ERR_LISTEN", "server: listen on "+s.httpServer.Addr, err)
	}
	s.listener = ln
	s.mu.Unlock()
	s.startOnce.Do(func() { close(s.started) })

	s.logger.Info(ctx, "listening", "addr", ln.Addr().String())

	if s.limiter != nil {
		go s.pruneRateLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- apperrors.NewInternalError("ERR_SERVE", "server: serve", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

const (
	healthCheckTimeout = 2 * time.Second
	healthSlotTimeout  = 250 * time.Millisecond
)

const (
	limiterPruneInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

func (s *Server) pruneRateLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Cleanup(limiterMaxIdle); n > 0 {
				s.logger.Debug(ctx, "pruned idle rate limit buckets", "count", n)
			}
		}
	}
}

// Shutdown stops accepting connections and drains in-flight requests. It is
// idempotent. The drain runs outside mu, so Addr and IsShutdown answer
// while it is in progress.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return nil
	}
	s.isShutdown = true
	close(s.done)
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info(ctx, "stopped")
	return nil
}

// Ready is closed once Start has bound its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.started
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// IsShutdown reports whether Shutdown has run.
func (s *Server) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isShutdown
}
