package testutils

import (
	"fmt"
	"sync"

	"github.com/l7mp/incremental/pkg/reactive"
)

// EventKind is the kind of a recorded notification.
type EventKind string

const (
	Added       EventKind = "added"
	Removed     EventKind = "removed"
	Replaced    EventKind = "replaced"
	Changed     EventKind = "changed"
	Invalidated EventKind = "invalidated"
)

// Event is a recorded notification. Old is set for replacements and value changes, Breaking for
// invalidations.
type Event[T any] struct {
	Kind     EventKind
	Item     T
	Old      T
	Version  int64
	Breaking bool
}

// String stringifies an event.
func (e Event[T]) String() string {
	switch e.Kind {
	case Invalidated:
		return fmt.Sprintf("invalidated(breaking=%t)", e.Breaking)
	case Replaced, Changed:
		return fmt.Sprintf("%s(%v->%v)@%d", e.Kind, e.Old, e.Item, e.Version)
	default:
		return fmt.Sprintf("%s(%v)@%d", e.Kind, e.Item, e.Version)
	}
}

// Recorder is an observer that records every notification it receives. It implements both the
// collection and the value observer contract.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []Event[T]
	ch     chan Event[T]
}

var (
	_ reactive.CollectionObserver[int] = &Recorder[int]{}
	_ reactive.ValueObserver[int]      = &Recorder[int]{}
)

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{ch: make(chan Event[T], 1024)}
}

func (r *Recorder[T]) push(e Event[T]) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.ch <- e:
	default:
	}
}

func (r *Recorder[T]) OnValueInvalidated(_ *reactive.Subscription, breaking bool) {
	r.push(Event[T]{Kind: Invalidated, Breaking: breaking})
}

func (r *Recorder[T]) OnItemAdded(_ *reactive.Subscription, item T, version int64) {
	r.push(Event[T]{Kind: Added, Item: item, Version: version})
}

func (r *Recorder[T]) OnItemRemoved(_ *reactive.Subscription, item T, version int64) {
	r.push(Event[T]{Kind: Removed, Item: item, Version: version})
}

func (r *Recorder[T]) OnItemReplaced(_ *reactive.Subscription, oldItem, newItem T, version int64) {
	r.push(Event[T]{Kind: Replaced, Item: newItem, Old: oldItem, Version: version})
}

func (r *Recorder[T]) OnValueChanged(_ *reactive.Subscription, oldValue, newValue T, version int64) {
	r.push(Event[T]{Kind: Changed, Item: newValue, Old: oldValue, Version: version})
}

// Events returns the recorded events.
func (r *Recorder[T]) Events() []Event[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Event[T], len(r.events))
	copy(ret, r.events)
	return ret
}

// Len returns the number of recorded events.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops the recorded events.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// InvalidationObserver is a plain observer that only understands invalidation.
type InvalidationObserver struct {
	mu       sync.Mutex
	breaking []bool
}

// OnValueInvalidated records the invalidation.
func (o *InvalidationObserver) OnValueInvalidated(_ *reactive.Subscription, breaking bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breaking = append(o.breaking, breaking)
}

// Invalidations returns the breaking flags of the recorded invalidations.
func (o *InvalidationObserver) Invalidations() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	ret := make([]bool, len(o.breaking))
	copy(ret, o.breaking)
	return ret
}
