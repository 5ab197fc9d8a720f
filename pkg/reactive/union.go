package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// UnionOp concatenates two collections.
type UnionOp[T any] struct {
	node[Items[T], T]
	left, right CollectionSource[T]
}

var _ CollectionSource[int] = &UnionOp[int]{}

// Union creates a lazy collection holding the items of left followed by the items of right.
// Multiplicities are preserved: an item present in both inputs appears twice.
func Union[T any](left, right CollectionSource[T], opts ...Option) *UnionOp[T] {
	n := &UnionOp[T]{left: left, right: right}
	n.initNode(n, "union", []Observable{left, right}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[T]
	for i := range n.upstreams {
		n.upstreams[i] = CollectionObserverFuncs[T]{
			InvalidatedFunc: n.onUpstreamInvalidated,
			AddedFunc: func(s *Subscription, item T, version int64) {
				n.forward(s, i, version, func(scope *UpdateScope[T]) { scope.Added(item) })
			},
			RemovedFunc: func(s *Subscription, item T, version int64) {
				n.forward(s, i, version, func(scope *UpdateScope[T]) { scope.Removed(item) })
			},
			ReplacedFunc: func(s *Subscription, oldItem, newItem T, version int64) {
				n.forward(s, i, version, func(scope *UpdateScope[T]) { scope.Replaced(oldItem, newItem) })
			},
		}
	}
	return n
}

func (n *UnionOp[T]) evaluate(ctx context.Context) (Items[T], sidevalue.Values, []int64) {
	inCtx := withoutCollector(ctx)
	l, r := n.left.GetVersionedValue(inCtx), n.right.GetVersionedValue(inCtx)
	ls, rs := l.Value, r.Value
	return LazyItems(func(yield func(T) bool) {
		for item := range ls.All() {
			if !yield(item) {
				return
			}
		}
		for item := range rs.All() {
			if !yield(item) {
				return
			}
		}
	}), l.SideValues.Combine(r.SideValues), []int64{l.Version, r.Version}
}

func (n *UnionOp[T]) forward(s *Subscription, input int, version int64, emit func(*UpdateScope[T])) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(input, version)
	defer scope.Close()
	emit(scope)
}
