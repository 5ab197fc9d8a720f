package reactive

import "sync/atomic"

// Subscription ties an observer to a source. Disposing it stops further notifications.
type Subscription struct {
	source   Observable
	observer Observer
	disposed atomic.Bool
}

// Source returns the observed node.
func (s *Subscription) Source() Observable { return s.source }

// Observer returns the subscribed observer.
func (s *Subscription) Observer() Observer { return s.observer }

// IsDisposed reports whether the subscription has been disposed.
func (s *Subscription) IsDisposed() bool { return s.disposed.Load() }

// Dispose unsubscribes the observer. It is safe to call it multiple times.
func (s *Subscription) Dispose() {
	if s == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.source.RemoveObserver(s)
}
