package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// SelectOp projects every item of a collection.
type SelectOp[T, R any] struct {
	node[Items[R], R]
	source   CollectionSource[T]
	selector func(ctx context.Context, item T) R
	reactive bool
}

var _ CollectionSource[int] = &SelectOp[string, int]{}

// Select creates a collection holding selector(item) for every item of source, in source order.
// The result is lazy: the projection runs when the result is enumerated.
func Select[T, R any](source CollectionSource[T], selector func(item T) R, opts ...Option) *SelectOp[T, R] {
	return newSelect(source, func(_ context.Context, item T) R { return selector(item) }, false, opts)
}

// SelectContext is like Select but the selector may read other sources through the context it
// receives, which makes them dependencies of the result. The projection is computed eagerly.
func SelectContext[T, R any](source CollectionSource[T], selector func(ctx context.Context, item T) R, opts ...Option) *SelectOp[T, R] {
	return newSelect(source, selector, true, opts)
}

func newSelect[T, R any](source CollectionSource[T], selector func(context.Context, T) R, reactive bool, opts []Option) *SelectOp[T, R] {
	n := &SelectOp[T, R]{source: source, selector: selector, reactive: reactive}
	n.initNode(n, "select", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[R]
	n.materialized = reactive
	n.immutable = n.immutable && !reactive
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: n.onUpstreamInvalidated,
		AddedFunc:       n.onAdded,
		RemovedFunc:     n.onRemoved,
		ReplacedFunc:    n.onReplaced,
	}
	return n
}

func (n *SelectOp[T, R]) evaluate(ctx context.Context) (Items[R], sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))
	if n.reactive {
		list := []R{}
		for item := range in.Value.All() {
			list = append(list, n.selector(ctx, item))
		}
		return materializedItems(list), in.SideValues, []int64{in.Version}
	}

	src := in.Value
	return LazyItems(func(yield func(R) bool) {
		for item := range src.All() {
			if !yield(n.selector(context.Background(), item)) {
				return
			}
		}
	}), in.SideValues, []int64{in.Version}
}

func (n *SelectOp[T, R]) apply(item T) R { return n.selector(n.callContext(), item) }

func (n *SelectOp[T, R]) onAdded(s *Subscription, item T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	scope.Added(n.apply(item))
}

func (n *SelectOp[T, R]) onRemoved(s *Subscription, item T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	scope.Removed(n.apply(item))
}

func (n *SelectOp[T, R]) onReplaced(s *Subscription, oldItem, newItem T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	o, r := n.apply(oldItem), n.apply(newItem)
	if defaultEqual(o, r) {
		return
	}
	scope.Replaced(o, r)
}
