package state

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"time"

	apperrors "github.com/conneroisu/roster/internal/errors"
	"golang.org/x/sync/semaphore"
)

// readerCapacity bounds concurrent readers of a ReadMostly slot. A writer
// acquires the whole capacity.
const readerCapacity int64 = 1 << 30

// Spec declares one slot: its type, discipline and initial value. Build
// Specs with ReadMostlySlot, WriteHeavySlot or AtomicScalarSlot.
type Spec struct {
	typ        reflect.Type
	discipline Discipline
	newCell    func(meta *slotMeta) any
}

// Type returns the slot's type tag.
func (s Spec) Type() reflect.Type { return s.typ }

// Discipline returns the slot's discipline.
func (s Spec) Discipline() Discipline { return s.discipline }

// ReadMostly declares a reader-writer locked slot holding initial.
func ReadMostlySlot[T any](initial T) Spec {
	return lockedSpec(initial, ReadMostly)
}

// WriteHeavy declares a mutually exclusive slot holding initial.
func WriteHeavySlot[T any](initial T) Spec {
	return lockedSpec(initial, WriteHeavy)
}

// AtomicScalar declares a lock-free integer slot holding initial.
func AtomicScalarSlot[T Scalar](initial T) Spec {
	return Spec{
		typ:        reflect.TypeFor[T](),
		discipline: AtomicScalar,
		newCell: func(meta *slotMeta) any {
			c := &atomicCell[T]{meta: meta}
			c.raw.Store(uint64(initial))
			return c
		},
	}
}

func lockedSpec[T any](initial T, d Discipline) Spec {
	return Spec{
		typ:        reflect.TypeFor[T](),
		discipline: d,
		newCell: func(meta *slotMeta) any {
			clone := cloneFunc[T]()
			return &lockedCell[T]{value: clone(initial), meta: meta, clone: clone}
		},
	}
}

// Option configures a Store at build time.
type Option func(*Builder)

// WithObserver reports every blocking acquisition to o.
func WithObserver(o Observer) Option {
	return func(b *Builder) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithLockTimeout bounds every lock wait by d. Zero or negative leaves waits
// bounded only by the caller's context.
func WithLockTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.lockTimeout = d
	}
}

// Builder collects slot declarations before the store is frozen.
type Builder struct {
	specs       []Spec
	observer    Observer
	lockTimeout time.Duration
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{observer: nopObserver{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends slot declarations.
func (b *Builder) Add(specs ...Spec) *Builder {
	b.specs = append(b.specs, specs...)
	return b
}

// Build freezes the declared slots into a Store. Every duplicated type is
// reported, joined into one error matching ErrDuplicateSlot.
func (b *Builder) Build() (*Store, error) {
	store := &Store{
		slots: make(map[reflect.Type]*slotMeta, len(b.specs)),
		order: make([]reflect.Type, 0, len(b.specs)),
	}

	var errs []error
	reported := make(map[reflect.Type]bool)

	for i, spec := range b.specs {
		if spec.typ == nil || spec.newCell == nil {
			errs = append(errs, apperrors.NewStateError(CodeInvalidSpec, "slot spec was not built with a spec constructor").
				WithComponent("state").
				WithContext("index", i))
			continue
		}

		if _, exists := store.slots[spec.typ]; exists {
			if !reported[spec.typ] {
				errs = append(errs, duplicateSlotError(spec.typ))
				reported[spec.typ] = true
			}
			continue
		}

		meta := &slotMeta{
			name:        spec.typ.String(),
			typ:         spec.typ,
			discipline:  spec.discipline,
			observer:    b.observer,
			lockTimeout: b.lockTimeout,
		}
		switch spec.discipline {
		case ReadMostly:
			meta.capacity = readerCapacity
			meta.sem = semaphore.NewWeighted(readerCapacity)
		case WriteHeavy:
			meta.capacity = 1
			meta.sem = semaphore.NewWeighted(1)
		}
		meta.cell = spec.newCell(meta)

		store.slots[spec.typ] = meta
		store.order = append(store.order, spec.typ)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return store, nil
}

// Build is shorthand for NewBuilder().Add(specs...).Build().
func Build(specs ...Spec) (*Store, error) {
	return NewBuilder().Add(specs...).Build()
}

// Store is the immutable set of application state slots. It is safe for
// concurrent use by any number of goroutines.
type Store struct {
	slots map[reflect.Type]*slotMeta
	order []reflect.Type
}

// SlotInfo describes one slot for diagnostics.
type SlotInfo struct {
	Type       string     `json:"type" yaml:"type"`
	Discipline Discipline `json:"discipline" yaml:"discipline"`
}

// Len returns the number of slots.
func (s *Store) Len() int {
	return len(s.order)
}

// Types returns the registered type names, sorted.
func (s *Store) Types() []string {
	names := make([]string, 0, len(s.order))
	for _, t := range s.order {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

// Describe lists every slot in registration order.
func (s *Store) Describe() []SlotInfo {
	infos := make([]SlotInfo, 0, len(s.order))
	for _, t := range s.order {
		meta := s.slots[t]
		infos = append(infos, SlotInfo{Type: meta.name, Discipline: meta.discipline})
	}
	return infos
}

func (s *Store) lookup(t reflect.Type) (*slotMeta, error) {
	meta, ok := s.slots[t]
	if !ok {
		return nil, slotNotFoundError(t)
	}
	return meta, nil
}

// slotMeta is the type-erased part of a slot. cell holds a cell[T] for the
// slot's own T.
type slotMeta struct {
	name        string
	typ         reflect.Type
	discipline  Discipline
	sem         *semaphore.Weighted
	capacity    int64
	observer    Observer
	lockTimeout time.Duration
	cell        any
}

// acquire blocks until the slot's lock is granted in the given mode or ctx
// is done. The returned release func must be called exactly once.
func (m *slotMeta) acquire(ctx context.Context, mode AccessMode) (func(), error) {
	weight := m.capacity
	if mode == AccessRead && m.discipline == ReadMostly {
		weight = 1
	}

	if m.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	err := m.sem.Acquire(ctx, weight)
	wait := time.Since(start)

	if err != nil {
		err = lockError(m.name, mode, err)
		m.observer.ObserveAcquire(m.name, m.discipline, mode, wait, err)
		return nil, err
	}

	m.observer.ObserveAcquire(m.name, m.discipline, mode, wait, nil)
	return func() { m.sem.Release(weight) }, nil
}

// SlotCheck is the outcome of inspecting one slot.
type SlotCheck struct {
	Slot       string
	Discipline Discipline
	Wait       time.Duration
	Err        error
}

// Inspect briefly acquires every locked slot in read mode, in registration
// order, giving each at most timeout (zero means only ctx bounds it). A
// slot that cannot be acquired in time reports ErrLockTimeout. Atomic slots
// never block and always succeed.
func (s *Store) Inspect(ctx context.Context, timeout time.Duration) []SlotCheck {
	results := make([]SlotCheck, 0, len(s.order))
	for _, t := range s.order {
		meta := s.slots[t]
		result := SlotCheck{Slot: meta.name, Discipline: meta.discipline}
		if meta.discipline == AtomicScalar {
			results = append(results, result)
			continue
		}

		waitCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			waitCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		start := time.Now()
		release, err := meta.acquire(waitCtx, AccessRead)
		result.Wait = time.Since(start)
		cancel()

		if err != nil {
			result.Err = err
		} else {
			release()
		}
		results = append(results, result)
	}
	return results
}
