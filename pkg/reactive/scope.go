package reactive

import "fmt"

type eventKind int

const (
	itemAdded eventKind = iota
	itemRemoved
	itemReplaced
	valueChanged
)

type event[T any] struct {
	kind     eventKind
	old, new T
}

// UpdateScope batches the changes of one logical update of a node. The node stays locked while
// the scope is open. The version is bumped at most once per scope, on the first change signal,
// and observers are notified when the scope closes: capable observers get the queued deltas,
// everybody else a single invalidation. A breaking change discards the deltas and invalidates
// every observer with breaking set.
type UpdateScope[T any] struct {
	b        *base[T]
	changed  bool
	breaking bool
	events   []event[T]
	closed   bool
}

func (s *UpdateScope[T]) checkOpen() {
	if s.closed {
		panic(fmt.Errorf("%w: %s", ErrScopeClosed, s.b.name))
	}
}

// SignalChange marks the node as changed. Only the first signal of a scope bumps the version.
func (s *UpdateScope[T]) SignalChange(breaking bool) {
	s.checkOpen()
	if !s.changed {
		s.changed = true
		s.b.version++
	}
	if breaking {
		s.breaking = true
	}
}

// Version returns the version the scope will publish.
func (s *UpdateScope[T]) Version() int64 { return s.b.version }

// Changed reports whether a change has been signaled.
func (s *UpdateScope[T]) Changed() bool { return s.changed }

// Breaking reports whether a breaking change has been signaled.
func (s *UpdateScope[T]) Breaking() bool { return s.breaking }

func (s *UpdateScope[T]) itemEvent(op string, e event[T]) {
	s.checkOpen()
	if s.b.scalar {
		panic(NewNotSupportedError(op, s.b.name))
	}
	s.SignalChange(false)
	s.events = append(s.events, e)
}

// Added queues an item addition.
func (s *UpdateScope[T]) Added(item T) {
	s.itemEvent("added", event[T]{kind: itemAdded, new: item})
}

// Removed queues an item removal.
func (s *UpdateScope[T]) Removed(item T) {
	s.itemEvent("removed", event[T]{kind: itemRemoved, old: item})
}

// Replaced queues an in-place item replacement.
func (s *UpdateScope[T]) Replaced(oldItem, newItem T) {
	s.itemEvent("replaced", event[T]{kind: itemReplaced, old: oldItem, new: newItem})
}

// ValueChanged queues a scalar value change.
func (s *UpdateScope[T]) ValueChanged(oldValue, newValue T) {
	s.checkOpen()
	if !s.b.scalar {
		panic(NewNotSupportedError("value-changed", s.b.name))
	}
	s.SignalChange(false)
	s.events = append(s.events, event[T]{kind: valueChanged, old: oldValue, new: newValue})
}

// Close unlocks the node and notifies the observers. Closing a closed scope is a no-op.
func (s *UpdateScope[T]) Close() {
	if s.closed {
		return
	}
	s.commit()()
}

// commit unlocks the node and returns the function that performs the delivery. Deliveries of a
// node run one at a time, in version order. The returned function must always be called.
func (s *UpdateScope[T]) commit() func() {
	s.closed = true
	b := s.b
	deferred := b.takeDeferred()

	if !s.changed {
		b.mu.Unlock()
		return func() { runAll(deferred) }
	}

	version, breaking, events := b.version, s.breaking, s.events
	if breaking {
		events = nil
	}
	ticket := b.seq.Ticket()
	b.mu.Unlock()

	return func() {
		func() {
			b.seq.Wait(ticket)
			defer b.seq.Done()
			b.deliver(version, breaking, events)
		}()
		runAll(deferred)
	}
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
