package reactive

import (
	"github.com/go-logr/logr"

	"github.com/l7mp/incremental/internal/syncutil"
)

// base carries the state shared by every node: identity, observers, version and the update
// machinery. T is the type of the deltas the node emits: the item type for collections and the
// value type for scalars.
type base[T any] struct {
	self      Observable
	name      string
	kind      string
	inputs    []Observable
	scalar    bool
	env       environment
	log       logr.Logger
	observers *Registry[T]

	// mu guards the node state. Deliveries never happen while holding it.
	mu  syncutil.Mutex
	seq syncutil.Sequencer

	version  int64
	deferred []func()
}

func (b *base[T]) init(self Observable, kind string, inputs []Observable, scalar bool, opts []Option) {
	b.self = self
	b.kind = kind
	b.inputs = inputs
	b.scalar = scalar
	b.name, b.env = newEnvironment(kind, inputs, opts)
	b.log = b.env.log.WithName(kind).WithValues("node", b.name)
	b.observers = NewRegistry[T](self)
	b.mu.Name = b.name
	b.seq.Name = b.name
}

// Name returns the name of the node.
func (b *base[T]) Name() string { return b.name }

// Kind returns the operator kind.
func (b *base[T]) Kind() string { return b.kind }

// Inputs returns the upstream nodes.
func (b *base[T]) Inputs() []Node {
	ret := make([]Node, len(b.inputs))
	for i, in := range b.inputs {
		ret[i] = in
	}
	return ret
}

// RemoveObserver unsubscribes an observer.
func (b *base[T]) RemoveObserver(s *Subscription) bool {
	return b.observers.Remove(s)
}

// ObserverCount returns the number of subscribed observers.
func (b *base[T]) ObserverCount() int { return b.observers.Len() }

// String returns the name of the node.
func (b *base[T]) String() string { return b.name }

func (b *base[T]) environment() environment { return b.env }

// beginUpdate locks the node and opens an update scope.
func (b *base[T]) beginUpdate() *UpdateScope[T] {
	b.mu.Lock()
	return &UpdateScope[T]{b: b}
}

// deferLocked schedules fn to run after the node lock is released. Must be called with the lock
// held.
func (b *base[T]) deferLocked(fn func()) {
	b.deferred = append(b.deferred, fn)
}

func (b *base[T]) takeDeferred() []func() {
	ret := b.deferred
	b.deferred = nil
	return ret
}

func (b *base[T]) deliver(version int64, breaking bool, events []event[T]) {
	b.env.recorder.Updated(b.kind, breaking, len(events))
	b.log.V(4).Info("delivering update", "version", version, "breaking", breaking,
		"events", len(events))

	for _, e := range b.observers.snapshot() {
		if e.sub.IsDisposed() {
			continue
		}

		switch {
		case breaking:
			e.sub.observer.OnValueInvalidated(e.sub, true)
		case len(events) > 0 && !b.scalar && e.collection != nil:
			for _, ev := range events {
				if e.sub.IsDisposed() {
					break
				}
				switch ev.kind {
				case itemAdded:
					e.collection.OnItemAdded(e.sub, ev.new, version)
				case itemRemoved:
					e.collection.OnItemRemoved(e.sub, ev.old, version)
				case itemReplaced:
					e.collection.OnItemReplaced(e.sub, ev.old, ev.new, version)
				}
			}
		case len(events) > 0 && b.scalar && e.value != nil:
			for _, ev := range events {
				if e.sub.IsDisposed() {
					break
				}
				e.value.OnValueChanged(e.sub, ev.old, ev.new, version)
			}
		default:
			e.sub.observer.OnValueInvalidated(e.sub, false)
		}
	}
}
