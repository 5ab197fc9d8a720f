package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// SomeOp tracks the first item of a collection that satisfies a predicate.
type SomeOp[T comparable] struct {
	node[T, T]
	source    CollectionSource[T]
	predicate func(T) bool
	def       T
	// appendOnly is set when the source only ever adds items at its tail.
	appendOnly bool

	found bool
	// tracking is set while current is known to be the first match of the source.
	tracking bool
	current  T
}

var _ Source[int] = &SomeOp[int]{}

// Some creates a scalar holding the first item of source satisfying the predicate, or the zero
// value if there is none.
func Some[T comparable](source CollectionSource[T], predicate func(T) bool, opts ...Option) *SomeOp[T] {
	var zero T
	return SomeOrDefault(source, predicate, zero, opts...)
}

// SomeOrDefault is like Some but falls back to def.
func SomeOrDefault[T comparable](source CollectionSource[T], predicate func(T) bool, def T, opts ...Option) *SomeOp[T] {
	n := &SomeOp[T]{source: source, predicate: predicate, def: def}
	_, n.appendOnly = source.(*Collection[T])
	n.initNode(n, "some", []Observable{source}, true, opts)
	n.compute = n.evaluate
	n.materialized = true
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: func(s *Subscription, _ bool) {
			if s.IsDisposed() {
				return
			}
			scope := n.beginUpdate()
			defer scope.Close()
			n.dirty, n.tracking = true, false
			scope.SignalChange(true)
		},
		AddedFunc: func(s *Subscription, item T, version int64) {
			n.onUpstream(s, version, func(scope *UpdateScope[T]) bool {
				switch {
				case !n.predicate(item):
					return true
				case !n.found:
					n.found, n.current = true, item
					scope.ValueChanged(n.def, item)
					return true
				default:
					// unions and flattened collections may insert before the current match
					return n.appendOnly
				}
			})
		},
		RemovedFunc: func(s *Subscription, item T, version int64) {
			n.onUpstream(s, version, func(*UpdateScope[T]) bool {
				return !n.found || item != n.current
			})
		},
		ReplacedFunc: func(s *Subscription, oldItem, newItem T, version int64) {
			n.onUpstream(s, version, func(scope *UpdateScope[T]) bool {
				switch {
				case n.found && oldItem == n.current:
					return false
				case !n.predicate(newItem):
					return true
				case n.found:
					// the new match may precede the current one
					return false
				default:
					n.found, n.current = true, newItem
					scope.ValueChanged(n.def, newItem)
					return true
				}
			})
		},
	}
	return n
}

func (n *SomeOp[T]) evaluate(ctx context.Context) (T, sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))
	n.found, n.current, n.tracking = false, n.def, true
	for item := range in.Value.All() {
		if n.predicate(item) {
			n.found, n.current = true, item
			break
		}
	}
	return n.current, in.SideValues, []int64{in.Version}
}

// onUpstream keeps the tracked match in sync with an incremental update. When apply cannot
// tell the new match without rescanning the source, the change is breaking.
func (n *SomeOp[T]) onUpstream(s *Subscription, version int64, apply func(*UpdateScope[T]) bool) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	if !n.tracking || !apply(scope) {
		n.tracking = false
		scope.SignalChange(true)
	}
}

// Find returns the current match and whether there is one.
func (n *SomeOp[T]) Find(ctx context.Context) (T, bool) {
	v := n.GetValue(ctx)

	n.mu.Lock()
	defer n.unlock()
	return v, n.found
}
