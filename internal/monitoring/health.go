package monitoring

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/roster/internal/logging"
	"github.com/conneroisu/roster/internal/state"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check result
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Critical    bool                   `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc adapts a plain function to HealthChecker.
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) HealthCheck
	critical bool
}

func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck { return h.checkFn(ctx) }
func (h *HealthCheckFunc) Name() string                          { return h.name }
func (h *HealthCheckFunc) IsCritical() bool                      { return h.critical }

// NewHealthCheckFunc creates a new health check function
func NewHealthCheckFunc(
	name string,
	critical bool,
	checkFn func(ctx context.Context) HealthCheck,
) *HealthCheckFunc {
	return &HealthCheckFunc{
		name:     name,
		checkFn:  checkFn,
		critical: critical,
	}
}

// HealthMonitor runs registered checks on demand. Checks run concurrently,
// each bounded by the monitor's timeout.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	logger  logging.Logger
	timeout time.Duration
	started time.Time
}

// HealthResponse is the aggregated result of one health evaluation.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Summary   HealthSummary          `json:"summary"`
}

// HealthSummary counts check results by status.
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
	Critical  int `json:"critical"`
}

// NewHealthMonitor creates a monitor whose checks each get at most timeout.
// A non-positive timeout defaults to five seconds.
func NewHealthMonitor(logger logging.Logger, timeout time.Duration) *HealthMonitor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		checks:  make(map[string]HealthChecker),
		logger:  logger.WithComponent("health_monitor"),
		timeout: timeout,
		started: time.Now(),
	}
}

// RegisterCheck registers a health check, replacing any with the same name.
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checks[checker.Name()] = checker
	hm.logger.Debug(context.Background(), "registered health check",
		"name", checker.Name(),
		"critical", checker.IsCritical())
}

// Checks returns the registered check names in sorted order.
func (hm *HealthMonitor) Checks() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs every registered check and aggregates the results.
func (hm *HealthMonitor) Evaluate(ctx context.Context) HealthResponse {
	hm.mu.RLock()
	checks := make([]HealthChecker, 0, len(hm.checks))
	for _, checker := range hm.checks {
		checks = append(checks, checker)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	resultsChan := make(chan HealthCheck, len(checks))

	for _, checker := range checks {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()

			start := time.Now()
			result := checker.Check(checkCtx)
			result.Name = checker.Name()
			result.Critical = checker.IsCritical()
			result.Duration = time.Since(start)
			result.LastChecked = time.Now()
			resultsChan <- result
		}(checker)
	}

	wg.Wait()
	close(resultsChan)

	results := make(map[string]HealthCheck, len(checks))
	for result := range resultsChan {
		results[result.Name] = result
		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "health check not healthy",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message,
				"duration", result.Duration)
		}
	}

	return HealthResponse{
		Status:    calculateOverallStatus(results),
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.started),
		Checks:    results,
		Summary:   calculateSummary(results),
	}
}

func calculateSummary(checks map[string]HealthCheck) HealthSummary {
	summary := HealthSummary{Total: len(checks)}

	for _, check := range checks {
		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
		case HealthStatusDegraded:
			summary.Degraded++
		default:
			summary.Unknown++
		}

		if check.Critical {
			summary.Critical++
		}
	}

	return summary
}

// calculateOverallStatus is unhealthy when a critical check is unhealthy,
// degraded when any check is degraded or a non-critical check is unhealthy,
// and healthy otherwise.
func calculateOverallStatus(checks map[string]HealthCheck) HealthStatus {
	for _, check := range checks {
		if check.Critical && check.Status == HealthStatusUnhealthy {
			return HealthStatusUnhealthy
		}
	}

	for _, check := range checks {
		if check.Status == HealthStatusDegraded || check.Status == HealthStatusUnhealthy {
			return HealthStatusDegraded
		}
	}

	return HealthStatusHealthy
}

// StateHealthChecker inspects every slot of the store. A slot whose lock
// cannot be acquired within slotTimeout makes the check degraded; any other
// acquisition failure makes it unhealthy.
func StateHealthChecker(store *state.Store, slotTimeout time.Duration) HealthChecker {
	return NewHealthCheckFunc("state", true, func(ctx context.Context) HealthCheck {
		results := store.Inspect(ctx, slotTimeout)

		status := HealthStatusHealthy
		message := fmt.Sprintf("%d slots available", len(results))
		var busy []string
		slots := make(map[string]interface{}, len(results))

		for _, r := range results {
			slot := map[string]interface{}{
				"discipline": r.Discipline.String(),
				"wait_ms":    r.Wait.Milliseconds(),
			}
			switch {
			case r.Err == nil:
			case errors.Is(r.Err, state.ErrLockTimeout):
				busy = append(busy, r.Slot)
				slot["error"] = state.CodeLockTimeout
				if status == HealthStatusHealthy {
					status = HealthStatusDegraded
				}
			default:
				slot["error"] = r.Err.Error()
				status = HealthStatusUnhealthy
			}
			slots[r.Slot] = slot
		}

		switch status {
		case HealthStatusDegraded:
			message = fmt.Sprintf("slow slots: %v", busy)
		case HealthStatusUnhealthy:
			message = "slot inspection failed"
		}

		return HealthCheck{
			Status:   status,
			Message:  message,
			Metadata: map[string]interface{}{"slots": slots},
		}
	})
}

// GoroutineHealthChecker reports degraded above degradedAt goroutines and
// unhealthy above ten times that.
func GoroutineHealthChecker(degradedAt int) HealthChecker {
	if degradedAt <= 0 {
		degradedAt = 1000
	}
	return NewHealthCheckFunc("goroutines", false, func(context.Context) HealthCheck {
		goroutines := runtime.NumGoroutine()

		status := HealthStatusHealthy
		message := "Goroutine count is normal"

		if goroutines > degradedAt {
			status = HealthStatusDegraded
			message = fmt.Sprintf("High goroutine count: %d", goroutines)
		}
		if goroutines > 10*degradedAt {
			status = HealthStatusUnhealthy
			message = fmt.Sprintf("Very high goroutine count: %d", goroutines)
		}

		return HealthCheck{
			Status:   status,
			Message:  message,
			Metadata: map[string]interface{}{"count": goroutines},
		}
	})
}
