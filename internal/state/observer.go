package state

import "time"

// Observer receives one callback per blocking lock acquisition, successful
// or not. Implementations must be safe for concurrent use and must not call
// back into the store.
type Observer interface {
	ObserveAcquire(slot string, discipline Discipline, mode AccessMode, wait time.Duration, err error)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(slot string, discipline Discipline, mode AccessMode, wait time.Duration, err error)

// ObserveAcquire calls f.
func (f ObserverFunc) ObserveAcquire(slot string, discipline Discipline, mode AccessMode, wait time.Duration, err error) {
	f(slot, discipline, mode, wait, err)
}

type nopObserver struct{}

func (nopObserver) ObserveAcquire(string, Discipline, AccessMode, time.Duration, error) {}
