// Package state provides the shared application-state store that every
// request handler in roster reads from and writes to.
//
// A Store is built once at start-up from a list of slot declarations. Each
// slot is keyed by its Go type, so a store holds at most one value of any
// given type; two logically distinct values of the same underlying type are
// declared as distinct named types:
//
//	type Teacher string
//	type Counter int
//
//	store, err := state.Build(
//		state.ReadMostlySlot(Teacher("Mat")),
//		state.WriteHeavySlot(Counter(0)),
//		state.AtomicScalarSlot(RequestCount(0)),
//	)
//
// After Build the set of slots never changes; only slot contents do.
//
// Every slot has a discipline that decides how concurrent access is
// arbitrated:
//
//   - ReadMostly: reader-writer lock. Readers overlap; a writer waits for the
//     current readers to drain and, while waiting, holds back new readers.
//   - WriteHeavy: mutual exclusion. One holder at a time, reader or writer.
//   - AtomicScalar: a single integer updated with atomic operations. Never
//     blocks.
//
// Access is closure-scoped. Handle.Read and Handle.Update acquire the lock,
// run the callback and release on every exit path, including a panic in the
// callback. Update works on a copy of the value and commits only when the
// callback returns nil. Slot types holding slices, maps or pointers implement
// Cloner so that copy is deep; without it a callback could write through to
// the stored value.
//
// Lock waits honour the caller's context: a cancelled or expired context
// withdraws the request and the callback never runs. There is no default
// wait bound; WithLockTimeout sets one store-wide.
//
// Acquiring two slots from one request is two independent acquisitions and
// nothing prevents a lock-order deadlock between them. Callers that nest
// Read/Update calls across slots must always nest them in the same order.
package state
