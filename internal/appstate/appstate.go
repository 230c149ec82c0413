// Package appstate declares roster's shared application state and the few
// multi-slot operations handlers perform on it.
//
// Lock order: when an operation needs more than one locked slot it nests
// them as Teacher, then Roster, then Counter. RequestCount is lock-free and
// may be touched at any point.
package appstate

import (
	"context"
	"slices"

	"github.com/conneroisu/roster/internal/config"
	"github.com/conneroisu/roster/internal/state"
)

// Teacher is the name shown on the teacher page. Read on every page view,
// rewritten only by PUT /teacher and config reloads.
type Teacher string

// Roster is the class list.
type Roster []string

// Clone returns a copy sharing no backing array with r, so callbacks never
// write through to the stored roster.
func (r Roster) Clone() Roster {
	return slices.Clone(r)
}

// Counter is the shared click counter behind POST /counter.
type Counter int

// RequestCount counts every request the server has handled.
type RequestCount int64

// Specs returns the slot declarations seeded from cfg.
func Specs(cfg *config.Config) []state.Spec {
	return []state.Spec{
		state.ReadMostlySlot(Teacher(cfg.App.Teacher)),
		state.ReadMostlySlot(Roster(cfg.App.Students)),
		state.WriteHeavySlot(Counter(0)),
		state.AtomicScalarSlot(RequestCount(0)),
	}
}

// New builds the application store. It is called once, before the server
// accepts connections.
func New(cfg *config.Config, opts ...state.Option) (*state.Store, error) {
	opts = append([]state.Option{state.WithLockTimeout(cfg.State.LockTimeout)}, opts...)
	return state.NewBuilder(opts...).Add(Specs(cfg)...).Build()
}

// Stats is a consistent-enough view of the state for the stats endpoints.
// Each slot is read under its own lock; the fields are not a transaction.
type Stats struct {
	Teacher  string   `json:"teacher"`
	Students []string `json:"students"`
	Counter  int      `json:"counter"`
	Requests int64    `json:"requests"`
}

// Snapshot reads every slot once, in lock order.
func Snapshot(ctx context.Context, store *state.Store) (Stats, error) {
	var stats Stats

	teacher, err := state.MustGet[Teacher](store).Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Teacher = string(teacher)

	err = state.MustGet[Roster](store).Read(ctx, func(r Roster) error {
		stats.Students = slices.Clone([]string(r))
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	counter, err := state.MustGet[Counter](store).Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Counter = int(counter)

	stats.Requests = int64(state.MustAtomic[RequestCount](store).Load())

	return stats, nil
}

// Increment reads Counter, writes Counter+1 and bumps RequestCount. It
// returns the new counter value.
func Increment(ctx context.Context, store *state.Store) (int, error) {
	next, err := IncrementCounter(ctx, store)
	if err != nil {
		return 0, err
	}
	CountRequest(store)
	return next, nil
}

// IncrementCounter adds one to Counter and returns the new value. HTTP
// handlers use it directly because the counting middleware has already
// recorded the request.
func IncrementCounter(ctx context.Context, store *state.Store) (int, error) {
	var next Counter
	err := state.MustGet[Counter](store).Update(ctx, func(c *Counter) error {
		next = *c + 1
		*c = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(next), nil
}

// SetTeacher replaces the teacher name.
func SetTeacher(ctx context.Context, store *state.Store, name string) error {
	return state.MustGet[Teacher](store).Store(ctx, Teacher(name))
}

// CountRequest records one handled request.
func CountRequest(store *state.Store) int64 {
	return int64(state.MustAtomic[RequestCount](store).Add(1))
}
