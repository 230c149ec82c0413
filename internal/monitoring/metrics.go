// Package monitoring exposes roster's Prometheus metrics (HTTP traffic,
// shared-state lock waits, websocket streams, config reloads) and the health
// checks behind /health.
package monitoring

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/conneroisu/roster/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roster"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on collector registration.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	lockWait     *prometheus.HistogramVec
	lockFailures *prometheus.CounterVec

	streams       prometheus.Gauge
	configReloads *prometheus.CounterVec
}

var _ state.Observer = (*Metrics)(nil)

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"method", "route"}),

		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a shared-state slot.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"slot", "discipline", "mode"}),
		lockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "lock_failures_total",
			Help:      "Shared-state acquisitions abandoned by timeout or cancellation.",
		}, []string{"slot", "code"}),

		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_streams",
			Help:      "Open stats websocket streams.",
		}),
		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Configuration reloads by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.lockWait,
		m.lockFailures,
		m.streams,
		m.configReloads,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAcquire implements state.Observer.
func (m *Metrics) ObserveAcquire(slot string, discipline state.Discipline, mode state.AccessMode, wait time.Duration, err error) {
	m.lockWait.WithLabelValues(slot, discipline.String(), mode.String()).Observe(wait.Seconds())
	if err != nil {
		code := apperrors.GetErrorCode(err)
		if code == "" {
			code = "unknown"
		}
		m.lockFailures.WithLabelValues(slot, code).Inc()
	}
}

// RequestStarted marks a request in flight and returns the func that
// records its completion.
func (m *Metrics) RequestStarted() func(method, route string, status int) {
	start := time.Now()
	m.httpInFlight.Inc()
	return func(method, route string, status int) {
		m.httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// StreamOpened records a new websocket stream and returns its close func.
func (m *Metrics) StreamOpened() func() {
	m.streams.Inc()
	return m.streams.Dec
}

// ConfigReloaded records the result of a config reload.
func (m *Metrics) ConfigReloaded(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// RegisterStateGauges exposes the current value of atomic slots as gauges.
// It reads through the lock-free counters only, so a scrape never waits on
// a request.
func (m *Metrics) RegisterStateGauges(store *state.Store, gauges map[string]func(*state.Store) float64) error {
	var errs []error
	for name, read := range gauges {
		read := read
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      name,
			Help:      "Current value of the " + name + " slot.",
		}, func() float64 { return read(store) })
		if err := m.registry.Register(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
