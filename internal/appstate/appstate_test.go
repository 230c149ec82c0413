package appstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/conneroisu/roster/internal/config"
	"github.com/conneroisu/roster/internal/state"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	return cfg
}

func TestNew_DeclaresAllSlots(t *testing.T) {
	store, err := New(testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, []state.SlotInfo{
		{Type: "appstate.Teacher", Discipline: state.ReadMostly},
		{Type: "appstate.Roster", Discipline: state.ReadMostly},
		{Type: "appstate.Counter", Discipline: state.WriteHeavy},
		{Type: "appstate.RequestCount", Discipline: state.AtomicScalar},
	}, store.Describe())
}

func TestNew_RosterIsCopiedFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Students = []string{"ada", "alan"}
	store, err := New(cfg)
	require.NoError(t, err)

	cfg.App.Students[0] = "mutated"

	stats, err := Snapshot(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "alan"}, stats.Students)
}

func TestRoster_RejectedUpdateLeavesRoster(t *testing.T) {
	store, err := New(testConfig(t))
	require.NoError(t, err)
	ctx := context.Background()
	roster := state.MustGet[Roster](store)

	err = roster.Update(ctx, func(r *Roster) error {
		(*r)[0] = "mallory"
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, err := roster.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Roster{"dipan", "david", "fabio"}, got)
}

func TestRoster_Clone(t *testing.T) {
	r := Roster{"ada"}
	c := r.Clone()
	c[0] = "alan"
	assert.Equal(t, Roster{"ada"}, r)
	assert.Nil(t, Roster(nil).Clone())
}

func TestSnapshot(t *testing.T) {
	store, err := New(testConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, SetTeacher(ctx, store, "Ada"))
	_, err = Increment(ctx, store)
	require.NoError(t, err)
	CountRequest(store)

	stats, err := Snapshot(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Teacher:  "Ada",
		Students: []string{"dipan", "david", "fabio"},
		Counter:  1,
		Requests: 2,
	}, stats)
}

func TestIncrement_ConcurrentScenario(t *testing.T) {
	store, err := New(testConfig(t))
	require.NoError(t, err)

	const numTasks = 100
	results := make([]int, numTasks)
	var wg sync.WaitGroup
	for i := range numTasks {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			v, err := Increment(context.Background(), store)
			assert.NoError(t, err)
			results[index] = v
		}(i)
	}
	wg.Wait()

	stats, err := Snapshot(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, numTasks, stats.Counter)
	assert.Equal(t, int64(numTasks), stats.Requests)

	// Every increment observed a distinct value.
	seen := make(map[int]bool, numTasks)
	for _, v := range results {
		assert.False(t, seen[v], "value %d returned twice", v)
		seen[v] = true
	}
}

func TestNew_AppliesLockTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.LockTimeout = 20 * time.Millisecond
	store, err := New(cfg)
	require.NoError(t, err)

	held := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = state.MustGet[Counter](store).Update(context.Background(), func(*Counter) error {
			close(held)
			<-unblock
			return nil
		})
	}()
	<-held
	defer close(unblock)

	_, err = Increment(context.Background(), store)
	assert.ErrorIs(t, err, state.ErrLockTimeout)
}

func TestIncrementCounter_LeavesRequestCount(t *testing.T) {
	store, err := New(testConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := IncrementCounter(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	stats, err := Snapshot(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Counter)
	assert.Zero(t, stats.Requests)
}
