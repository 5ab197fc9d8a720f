package reactive

import "context"

// Node is the introspection view of a pipeline stage.
type Node interface {
	// Name returns the name of the node.
	Name() string
	// Kind returns the operator kind, e.g., "select" or "collection".
	Kind() string
	// Inputs returns the upstream nodes.
	Inputs() []Node
}

// Observable is a node that can be observed and versioned without knowing its value type.
type Observable interface {
	Node
	// AddObserver subscribes an observer. Immutable sources return nil, since they never notify.
	AddObserver(o Observer) *Subscription
	// RemoveObserver unsubscribes. It returns false if the subscription was not registered.
	RemoveObserver(s *Subscription) bool
	// Version returns the current version, evaluating the node if needed.
	Version(ctx context.Context) int64
	// IsMaterialized reports whether the values of the node are fully computed in memory.
	IsMaterialized() bool
	// IsImmutable reports whether the node can never change.
	IsImmutable() bool
}

// Source is an observable producing values of type T.
type Source[T any] interface {
	Observable
	// GetValue returns the current value.
	GetValue(ctx context.Context) T
	// GetVersionedValue returns the current value along with its version and side values.
	GetVersionedValue(ctx context.Context) VersionedValue[T]
}

// CollectionSource is a source producing an ordered sequence of items.
type CollectionSource[T any] interface {
	Source[Items[T]]
}

// Observer is the base observer contract: everybody understands invalidation. A breaking
// invalidation means the observer must discard everything it derived and re-read the source.
type Observer interface {
	OnValueInvalidated(s *Subscription, breaking bool)
}

// CollectionObserver is an observer that can consume item-level deltas. Sources deliver deltas to
// collection observers and fall back to a non-breaking invalidation for the rest.
type CollectionObserver[T any] interface {
	Observer
	OnItemAdded(s *Subscription, item T, version int64)
	OnItemRemoved(s *Subscription, item T, version int64)
	OnItemReplaced(s *Subscription, oldItem, newItem T, version int64)
}

// ValueObserver is an observer that can consume scalar value changes.
type ValueObserver[T any] interface {
	Observer
	OnValueChanged(s *Subscription, oldValue, newValue T, version int64)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s *Subscription, breaking bool)

// OnValueInvalidated calls f.
func (f ObserverFunc) OnValueInvalidated(s *Subscription, breaking bool) { f(s, breaking) }

// CollectionObserverFuncs is an adaptor to let you easily specify as many or as few of the
// notification functions as you want while still implementing CollectionObserver.
type CollectionObserverFuncs[T any] struct {
	InvalidatedFunc func(s *Subscription, breaking bool)
	AddedFunc       func(s *Subscription, item T, version int64)
	RemovedFunc     func(s *Subscription, item T, version int64)
	ReplacedFunc    func(s *Subscription, oldItem, newItem T, version int64)
}

var _ CollectionObserver[int] = CollectionObserverFuncs[int]{}

// OnValueInvalidated calls InvalidatedFunc if it's not nil.
func (r CollectionObserverFuncs[T]) OnValueInvalidated(s *Subscription, breaking bool) {
	if r.InvalidatedFunc != nil {
		r.InvalidatedFunc(s, breaking)
	}
}

// OnItemAdded calls AddedFunc if it's not nil.
func (r CollectionObserverFuncs[T]) OnItemAdded(s *Subscription, item T, version int64) {
	if r.AddedFunc != nil {
		r.AddedFunc(s, item, version)
	}
}

// OnItemRemoved calls RemovedFunc if it's not nil.
func (r CollectionObserverFuncs[T]) OnItemRemoved(s *Subscription, item T, version int64) {
	if r.RemovedFunc != nil {
		r.RemovedFunc(s, item, version)
	}
}

// OnItemReplaced calls ReplacedFunc if it's not nil.
func (r CollectionObserverFuncs[T]) OnItemReplaced(s *Subscription, oldItem, newItem T, version int64) {
	if r.ReplacedFunc != nil {
		r.ReplacedFunc(s, oldItem, newItem, version)
	}
}

// ValueObserverFuncs is the ValueObserver counterpart of CollectionObserverFuncs.
type ValueObserverFuncs[T any] struct {
	InvalidatedFunc func(s *Subscription, breaking bool)
	ChangedFunc     func(s *Subscription, oldValue, newValue T, version int64)
}

var _ ValueObserver[int] = ValueObserverFuncs[int]{}

// OnValueInvalidated calls InvalidatedFunc if it's not nil.
func (r ValueObserverFuncs[T]) OnValueInvalidated(s *Subscription, breaking bool) {
	if r.InvalidatedFunc != nil {
		r.InvalidatedFunc(s, breaking)
	}
}

// OnValueChanged calls ChangedFunc if it's not nil.
func (r ValueObserverFuncs[T]) OnValueChanged(s *Subscription, oldValue, newValue T, version int64) {
	if r.ChangedFunc != nil {
		r.ChangedFunc(s, oldValue, newValue, version)
	}
}
