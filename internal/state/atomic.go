package state

import (
	"context"
	"reflect"
	"sync/atomic"
)

// Scalar is the set of value kinds an AtomicScalar slot can hold.
type Scalar interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// atomicCell stores a Scalar as its uint64 bit pattern. Every stored pattern
// is uint64(T(x)) for some x, so comparisons against converted T values are
// exact.
type atomicCell[T Scalar] struct {
	meta *slotMeta
	raw  atomic.Uint64
}

func (c *atomicCell[T]) load() T {
	return T(c.raw.Load())
}

func (c *atomicCell[T]) read(_ context.Context, fn func(T) error) error {
	return fn(c.load())
}

func (c *atomicCell[T]) update(_ context.Context, fn func(*T) error) error {
	for {
		old := c.raw.Load()
		next := T(old)
		if err := fn(&next); err != nil {
			return err
		}
		if c.raw.CompareAndSwap(old, uint64(next)) {
			return nil
		}
	}
}

// Counter is the lock-free handle to an AtomicScalar slot. None of its
// methods block.
type Counter[T Scalar] struct {
	cell *atomicCell[T]
}

// Atomic returns the lock-free handle for the AtomicScalar slot of type T.
// It fails with ErrSlotNotFound if T was never declared, or with
// ErrDisciplineMismatch if T was declared with a locking discipline.
func Atomic[T Scalar](s *Store) (*Counter[T], error) {
	t := reflect.TypeFor[T]()
	meta, err := s.lookup(t)
	if err != nil {
		return nil, err
	}
	c, ok := meta.cell.(*atomicCell[T])
	if !ok {
		return nil, disciplineMismatchError(t, meta.discipline, AtomicScalar)
	}
	return &Counter[T]{cell: c}, nil
}

// MustAtomic is like Atomic but panics on error.
func MustAtomic[T Scalar](s *Store) *Counter[T] {
	c, err := Atomic[T](s)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the slot's type name.
func (c *Counter[T]) Name() string { return c.cell.meta.name }

// Load returns the current value.
func (c *Counter[T]) Load() T {
	return c.cell.load()
}

// Store sets the value.
func (c *Counter[T]) Store(v T) {
	c.cell.raw.Store(uint64(v))
}

// Swap sets the value and returns the previous one.
func (c *Counter[T]) Swap(v T) T {
	return T(c.cell.raw.Swap(uint64(v)))
}

// Add adds delta, wrapping on overflow of T, and returns the new value.
func (c *Counter[T]) Add(delta T) T {
	for {
		old := c.cell.raw.Load()
		next := T(old) + delta
		if c.cell.raw.CompareAndSwap(old, uint64(next)) {
			return next
		}
	}
}

// CompareAndSwap sets the value to new if it currently equals old.
func (c *Counter[T]) CompareAndSwap(old, new T) bool {
	return c.cell.raw.CompareAndSwap(uint64(old), uint64(new))
}
