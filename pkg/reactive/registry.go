package reactive

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"
)

type registration[T any] struct {
	sub        *Subscription
	collection CollectionObserver[T]
	value      ValueObserver[T]
}

// Registry keeps the observers of a node in subscription order. Delivery iterates a snapshot, so
// observers may subscribe and unsubscribe while being notified. The capabilities of an observer
// are resolved once, when it subscribes.
type Registry[T any] struct {
	owner   Observable
	mu      sync.Mutex
	entries atomic.Pointer[[]registration[T]]
}

// NewRegistry creates an empty registry for the given node.
func NewRegistry[T any](owner Observable) *Registry[T] {
	r := &Registry[T]{owner: owner}
	r.entries.Store(&[]registration[T]{})
	return r
}

// Add subscribes an observer.
func (r *Registry[T]) Add(o Observer) *Subscription {
	e := registration[T]{sub: &Subscription{source: r.owner, observer: o}}
	if c, ok := o.(CollectionObserver[T]); ok {
		e.collection = c
	}
	if v, ok := o.(ValueObserver[T]); ok {
		e.value = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append(slices.Clone(*r.entries.Load()), e)
	r.entries.Store(&entries)

	return e.sub
}

// Remove unsubscribes. It returns false if the subscription was not found.
func (r *Registry[T]) Remove(s *Subscription) bool {
	if s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old := *r.entries.Load()
	i := slices.IndexFunc(old, func(e registration[T]) bool { return e.sub == s })
	if i < 0 {
		return false
	}
	s.disposed.Store(true)
	entries := slices.Delete(slices.Clone(old), i, i+1)
	r.entries.Store(&entries)

	return true
}

// Len returns the number of subscribed observers.
func (r *Registry[T]) Len() int { return len(*r.entries.Load()) }

// All iterates the live subscriptions in subscription order.
func (r *Registry[T]) All() iter.Seq2[*Subscription, Observer] {
	return func(yield func(*Subscription, Observer) bool) {
		for _, e := range r.snapshot() {
			if e.sub.IsDisposed() {
				continue
			}
			if !yield(e.sub, e.sub.observer) {
				return
			}
		}
	}
}

// CollectionObservers iterates the live subscriptions whose observer consumes item deltas.
func (r *Registry[T]) CollectionObservers() iter.Seq2[*Subscription, CollectionObserver[T]] {
	return func(yield func(*Subscription, CollectionObserver[T]) bool) {
		for _, e := range r.snapshot() {
			if e.collection == nil || e.sub.IsDisposed() {
				continue
			}
			if !yield(e.sub, e.collection) {
				return
			}
		}
	}
}

// ValueObservers iterates the live subscriptions whose observer consumes value changes.
func (r *Registry[T]) ValueObservers() iter.Seq2[*Subscription, ValueObserver[T]] {
	return func(yield func(*Subscription, ValueObserver[T]) bool) {
		for _, e := range r.snapshot() {
			if e.value == nil || e.sub.IsDisposed() {
				continue
			}
			if !yield(e.sub, e.value) {
				return
			}
		}
	}
}

func (r *Registry[T]) snapshot() []registration[T] { return *r.entries.Load() }
