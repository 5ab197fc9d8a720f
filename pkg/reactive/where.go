package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// WhereOp filters a collection.
type WhereOp[T any] struct {
	node[Items[T], T]
	source    CollectionSource[T]
	predicate func(ctx context.Context, item T) bool
	reactive  bool
}

var _ CollectionSource[int] = &WhereOp[int]{}

// Where creates a lazy collection holding the items of source that satisfy the predicate, in
// source order.
func Where[T any](source CollectionSource[T], predicate func(item T) bool, opts ...Option) *WhereOp[T] {
	return newWhere(source, func(_ context.Context, item T) bool { return predicate(item) }, false, opts)
}

// WhereContext is like Where but the predicate may read other sources through the context it
// receives. The result is computed eagerly.
func WhereContext[T any](source CollectionSource[T], predicate func(ctx context.Context, item T) bool, opts ...Option) *WhereOp[T] {
	return newWhere(source, predicate, true, opts)
}

func newWhere[T any](source CollectionSource[T], predicate func(context.Context, T) bool, reactive bool, opts []Option) *WhereOp[T] {
	n := &WhereOp[T]{source: source, predicate: predicate, reactive: reactive}
	n.initNode(n, "where", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[T]
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

func (n *WhereOp[T]) evaluate(ctx context.Context) (Items[T], sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))
	if n.reactive {
		list := []T{}
		for item := range in.Value.All() {
			if n.predicate(ctx, item) {
				list = append(list, item)
			}
		}
		return materializedItems(list), in.SideValues, []int64{in.Version}
	}

	src := in.Value
	return LazyItems(func(yield func(T) bool) {
		for item := range src.All() {
			if n.predicate(context.Background(), item) && !yield(item) {
				return
			}
		}
	}), in.SideValues, []int64{in.Version}
}

func (n *WhereOp[T]) test(item T) bool { return n.predicate(n.callContext(), item) }

func (n *WhereOp[T]) onAdded(s *Subscription, item T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	if n.test(item) {
		scope.Added(item)
	}
}

func (n *WhereOp[T]) onRemoved(s *Subscription, item T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	if n.test(item) {
		scope.Removed(item)
	}
}

func (n *WhereOp[T]) onReplaced(s *Subscription, oldItem, newItem T, version int64) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()

	switch wasIn, isIn := n.test(oldItem), n.test(newItem); {
	case wasIn && isIn:
		scope.Replaced(oldItem, newItem)
	case wasIn:
		scope.Removed(oldItem)
	case isIn:
		scope.Added(newItem)
	}
}
