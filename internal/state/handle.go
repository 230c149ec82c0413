package state

import (
	"context"
	"reflect"
)

// cell is the typed storage behind a slot.
type cell[T any] interface {
	read(ctx context.Context, fn func(T) error) error
	update(ctx context.Context, fn func(*T) error) error
}

// Handle grants scoped access to the slot of type T. A Handle holds no lock
// itself, so it may be looked up once and kept; every Read or Update is an
// independent acquisition.
type Handle[T any] struct {
	meta *slotMeta
	cell cell[T]
}

// Get returns the handle for the slot of type T. It fails with an error
// matching ErrSlotNotFound if no such slot was declared.
func Get[T any](s *Store) (*Handle[T], error) {
	meta, err := s.lookup(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &Handle[T]{meta: meta, cell: meta.cell.(cell[T])}, nil
}

// MustGet is like Get but panics when the slot is missing. A missing slot is
// a wiring bug, so handlers use MustGet and let the recoverer report it.
func MustGet[T any](s *Store) *Handle[T] {
	h, err := Get[T](s)
	if err != nil {
		panic(err)
	}
	return h
}

// Name returns the slot's type name.
func (h *Handle[T]) Name() string { return h.meta.name }

// Discipline returns the slot's discipline.
func (h *Handle[T]) Discipline() Discipline { return h.meta.discipline }

// Read calls fn with the current value under shared access. Slot types
// implementing Cloner are handed a private copy; for any other reference
// type fn must neither mutate the value nor retain it past its return.
func (h *Handle[T]) Read(ctx context.Context, fn func(T) error) error {
	return h.cell.read(ctx, fn)
}

// Update calls fn with a pointer to a copy of the current value under
// exclusive access. The copy replaces the stored value only if fn returns
// nil. On AtomicScalar slots fn may run more than once.
func (h *Handle[T]) Update(ctx context.Context, fn func(*T) error) error {
	return h.cell.update(ctx, fn)
}

// Load returns a copy of the current value.
func (h *Handle[T]) Load(ctx context.Context) (T, error) {
	var out T
	err := h.cell.read(ctx, func(v T) error {
		out = v
		return nil
	})
	return out, err
}

// Store replaces the current value. Cloner values are cloned first, so the
// caller keeps ownership of v.
func (h *Handle[T]) Store(ctx context.Context, v T) error {
	v = cloneFunc[T]()(v)
	return h.cell.update(ctx, func(p *T) error {
		*p = v
		return nil
	})
}

// Cloner is implemented by slot types that hold references (slices, maps,
// pointers). Clone must return a value sharing no mutable memory with its
// receiver. Locked slots clone through it whenever a value crosses the lock:
// callbacks get a private copy, and a failed Update discards its copy
// without touching the stored value. Types without Clone are copied by
// assignment, which is only a full copy for value types.
type Cloner[T any] interface {
	Clone() T
}

func cloneFunc[T any]() func(T) T {
	var zero T
	if _, ok := any(zero).(Cloner[T]); ok {
		return func(v T) T { return any(v).(Cloner[T]).Clone() }
	}
	return func(v T) T { return v }
}

// lockedCell backs ReadMostly and WriteHeavy slots.
type lockedCell[T any] struct {
	meta  *slotMeta
	value T
	clone func(T) T
}

func (c *lockedCell[T]) read(ctx context.Context, fn func(T) error) error {
	release, err := c.meta.acquire(ctx, AccessRead)
	if err != nil {
		return err
	}
	defer release()

	return fn(c.clone(c.value))
}

func (c *lockedCell[T]) update(ctx context.Context, fn func(*T) error) error {
	release, err := c.meta.acquire(ctx, AccessWrite)
	if err != nil {
		return err
	}
	defer release()

	next := c.clone(c.value)
	if err := fn(&next); err != nil {
		return err
	}
	c.value = next
	return nil
}
