// Package middleware assembles roster's HTTP middleware stack.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/roster/internal/appstate"
	"github.com/conneroisu/roster/internal/config"
	"github.com/conneroisu/roster/internal/logging"
	"github.com/conneroisu/roster/internal/monitoring"
	"github.com/conneroisu/roster/internal/state"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Chain manages the HTTP middleware stack.
//
// Standard stack (outer to inner):
//  1. Logging and metrics
//  2. Request counting
//  3. Rate limiting (when enabled)
//  4. Request deadline (when state.lock_timeout is set)
//
// The chain is meant to be installed with chi's Router.Use so the logging
// middleware can read the matched route pattern once the request is served.
type Chain struct {
	config      *config.Config
	store       *state.Store
	logger      logging.Logger
	metrics     *monitoring.Metrics
	rateLimiter *RateLimiter
	middlewares []Middleware
}

// Middleware represents a single middleware function.
type Middleware func(http.Handler) http.Handler

// Dependencies contains everything the chain needs. Metrics and RateLimiter
// are optional.
type Dependencies struct {
	Config      *config.Config
	Store       *state.Store
	Logger      logging.Logger
	Metrics     *monitoring.Metrics
	RateLimiter *RateLimiter
}

// NewChain builds the standard stack.
//
// Panics if Config, Store or Logger is nil.
func NewChain(deps Dependencies) *Chain {
	if deps.Config == nil {
		panic("middleware.Chain: config cannot be nil")
	}
	if deps.Store == nil {
		panic("middleware.Chain: store cannot be nil")
	}
	if deps.Logger == nil {
		panic("middleware.Chain: logger cannot be nil")
	}

	chain := &Chain{
		config:      deps.Config,
		store:       deps.Store,
		logger:      deps.Logger.WithComponent("http"),
		metrics:     deps.Metrics,
		rateLimiter: deps.RateLimiter,
		middlewares: make([]Middleware, 0, 4),
	}
	chain.buildDefaultStack()

	return chain
}

func (c *Chain) buildDefaultStack() {
	c.Add(c.logging)
	c.Add(c.counting)

	if c.config.RateLimit.Enabled {
		if c.rateLimiter == nil {
			c.rateLimiter = NewRateLimiter(c.config.RateLimit.RequestsPerSecond, c.config.RateLimit.Burst)
		}
		c.Add(c.rateLimiter.Handler)
	}

	if c.config.Server.RequestTimeout > 0 {
		c.Add(RequestDeadline(c.config.Server.RequestTimeout))
	}
}

// Add appends a middleware as the new innermost layer.
func (c *Chain) Add(m Middleware) {
	c.middlewares = append(c.middlewares, m)
}

// Middlewares returns the stack outermost first, in the shape chi's Use takes.
func (c *Chain) Middlewares() []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(c.middlewares))
	for i, m := range c.middlewares {
		out[i] = m
	}
	return out
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// RateLimiter returns the chain's limiter, or nil when rate limiting is off.
func (c *Chain) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Apply wraps handler with the whole chain. The first middleware added ends
// up outermost.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware.Chain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("middleware.Chain.Apply: middleware at index %d returned nil handler", i))
		}
	}
	return wrapped
}

func (c *Chain) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var done func(method, route string, status int)
		if c.metrics != nil {
			done = c.metrics.RequestStarted()
		}

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		if done != nil {
			done(r.Method, route, status)
		}

		logger := c.logger
		if id := chimw.GetReqID(r.Context()); id != "" {
			logger = logger.WithRequestID(id)
		}
		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn(r.Context(), nil, "request failed", fields...)
			return
		}
		logger.Debug(r.Context(), "request served", fields...)
	})
}

func (c *Chain) counting(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appstate.CountRequest(c.store)
		next.ServeHTTP(w, r)
	})
}

// RequestDeadline bounds every non-streaming request with timeout, so the
// shared-state locks it waits on give up once the budget is spent.
// Websocket upgrades are long-lived and left alone.
func RequestDeadline(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isWebsocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
