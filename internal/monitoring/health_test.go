package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/conneroisu/roster/internal/logging"
	"github.com/conneroisu/roster/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(name string, critical bool, status HealthStatus) HealthChecker {
	return NewHealthCheckFunc(name, critical, func(context.Context) HealthCheck {
		return HealthCheck{Status: status}
	})
}

func TestCalculateOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthChecker
		want   HealthStatus
	}{
		{"no checks", nil, HealthStatusHealthy},
		{"all healthy", []HealthChecker{
			staticCheck("a", true, HealthStatusHealthy),
			staticCheck("b", false, HealthStatusHealthy),
		}, HealthStatusHealthy},
		{"critical unhealthy", []HealthChecker{
			staticCheck("a", true, HealthStatusUnhealthy),
			staticCheck("b", false, HealthStatusDegraded),
		}, HealthStatusUnhealthy},
		{"non-critical unhealthy", []HealthChecker{
			staticCheck("a", true, HealthStatusHealthy),
			staticCheck("b", false, HealthStatusUnhealthy),
		}, HealthStatusDegraded},
		{"degraded", []HealthChecker{
			staticCheck("a", true, HealthStatusDegraded),
		}, HealthStatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthMonitor(logging.NewNopLogger(), time.Second)
			for _, c := range tt.checks {
				hm.RegisterCheck(c)
			}
			got := hm.Evaluate(context.Background())
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, len(tt.checks), got.Summary.Total)
		})
	}
}

func TestHealthMonitor_FillsCheckMetadata(t *testing.T) {
	hm := NewHealthMonitor(nil, 0)
	hm.RegisterCheck(staticCheck("disk", true, HealthStatusHealthy))
	hm.RegisterCheck(staticCheck("cache", false, HealthStatusUnknown))
	assert.Equal(t, []string{"cache", "disk"}, hm.Checks())

	got := hm.Evaluate(context.Background())
	require.Contains(t, got.Checks, "disk")
	assert.Equal(t, "disk", got.Checks["disk"].Name)
	assert.True(t, got.Checks["disk"].Critical)
	assert.False(t, got.Checks["disk"].LastChecked.IsZero())
	assert.Equal(t, 1, got.Summary.Unknown)
	assert.Equal(t, 1, got.Summary.Critical)

	hm.RegisterCheck(staticCheck("disk", false, HealthStatusDegraded))
	assert.Equal(t, []string{"cache", "disk"}, hm.Checks(), "re-registering replaces")
	assert.Equal(t, HealthStatusDegraded, hm.Evaluate(context.Background()).Checks["disk"].Status)
}

func TestHealthMonitor_BoundsEachCheck(t *testing.T) {
	hm := NewHealthMonitor(logging.NewNopLogger(), 20*time.Millisecond)
	hm.RegisterCheck(NewHealthCheckFunc("slow", true, func(ctx context.Context) HealthCheck {
		<-ctx.Done()
		return HealthCheck{Status: HealthStatusUnhealthy, Message: ctx.Err().Error()}
	}))

	start := time.Now()
	got := hm.Evaluate(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, HealthStatusUnhealthy, got.Status)
	assert.Equal(t, "context deadline exceeded", got.Checks["slow"].Message)
}

func TestStateHealthChecker(t *testing.T) {
	store, err := state.Build(
		state.ReadMostlySlot(metricsName("Mat")),
		state.WriteHeavySlot(metricsCount(0)),
	)
	require.NoError(t, err)
	checker := StateHealthChecker(store, 20*time.Millisecond)

	got := checker.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, got.Status)
	assert.Equal(t, "2 slots available", got.Message)

	held := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = state.MustGet[metricsCount](store).Update(context.Background(), func(*metricsCount) error {
			close(held)
			<-unblock
			return nil
		})
	}()
	<-held
	defer close(unblock)

	got = checker.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, got.Status)
	assert.Contains(t, got.Message, "monitoring.metricsCount")

	slots := got.Metadata["slots"].(map[string]interface{})
	busy := slots["monitoring.metricsCount"].(map[string]interface{})
	assert.Equal(t, state.CodeLockTimeout, busy["error"])
	assert.Equal(t, "write-heavy", busy["discipline"])
}

func TestGoroutineHealthChecker(t *testing.T) {
	assert.Equal(t, HealthStatusHealthy, GoroutineHealthChecker(1<<20).Check(context.Background()).Status)

	got := GoroutineHealthChecker(1).Check(context.Background())
	assert.NotEqual(t, HealthStatusHealthy, got.Status)
	assert.Greater(t, got.Metadata["count"], 1)
}
