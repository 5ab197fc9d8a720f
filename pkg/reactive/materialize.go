package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// MaterializeOp caches the items of a lazy collection in memory.
type MaterializeOp[T any] struct {
	node[Items[T], T]
	source CollectionSource[T]
}

var _ CollectionSource[int] = &MaterializeOp[int]{}

// Materialize returns a collection with the same items and deltas as source, computed once per
// version and held in memory. Materialized sources are returned as is.
func Materialize[T any](source CollectionSource[T], opts ...Option) CollectionSource[T] {
	if source.IsMaterialized() {
		return source
	}

	n := &MaterializeOp[T]{source: source}
	n.initNode(n, "materialize", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[T]
	n.materialized = true
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: n.onUpstreamInvalidated,
		AddedFunc: func(s *Subscription, item T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[T]) { scope.Added(item) })
		},
		RemovedFunc: func(s *Subscription, item T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[T]) { scope.Removed(item) })
		},
		ReplacedFunc: func(s *Subscription, oldItem, newItem T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[T]) { scope.Replaced(oldItem, newItem) })
		},
	}
	return n
}

func (n *MaterializeOp[T]) evaluate(ctx context.Context) (Items[T], sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))
	return in.Value.Materialize(), in.SideValues, []int64{in.Version}
}

func (n *MaterializeOp[T]) forward(s *Subscription, version int64, emit func(*UpdateScope[T])) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	emit(scope)
}
