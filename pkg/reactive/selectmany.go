package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// SelectManyOp flattens the collections selected for the items of a source. Each distinct item
// is mapped to its inner collection once and the inner collection is followed for as long as
// the item is present, so changes of the inner collections propagate as deltas too.
type SelectManyOp[T comparable, R any] struct {
	node[Items[R], R]
	source   CollectionSource[T]
	selector func(ctx context.Context, item T) CollectionSource[R]
	follows  map[T]*follow[R]
}

type follow[R any] struct {
	inner CollectionSource[R]
	sub   *Subscription
	// refs is the multiplicity of the item in the source.
	refs int
	// version is the inner version the cached value was computed from, announced is the last
	// inner version whose changes were forwarded to the observers.
	version, announced int64
}

var _ CollectionSource[int] = &SelectManyOp[string, int]{}

// SelectMany creates a collection holding, in source order, the items of selector(item) for
// every item of source.
func SelectMany[T comparable, R any](source CollectionSource[T], selector func(item T) CollectionSource[R], opts ...Option) *SelectManyOp[T, R] {
	return SelectManyContext(source, func(_ context.Context, item T) CollectionSource[R] { return selector(item) }, opts...)
}

// SelectManyContext is like SelectMany but the selector may read other sources through the
// context it receives.
func SelectManyContext[T comparable, R any](source CollectionSource[T], selector func(ctx context.Context, item T) CollectionSource[R], opts ...Option) *SelectManyOp[T, R] {
	n := &SelectManyOp[T, R]{source: source, selector: selector, follows: map[T]*follow[R]{}}
	n.initNode(n, "selectmany", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[R]
	n.materialized = true
	n.immutable = false
	n.extra = n.innerStale
	n.onActivate = n.subscribeInners
	n.onDispose = n.unsubscribeInners
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: func(s *Subscription, _ bool) { n.onUpstreamInvalidated(s, true) },
		AddedFunc:       n.onAdded,
		RemovedFunc:     n.onRemoved,
		ReplacedFunc:    n.onReplaced,
	}
	return n
}

func (n *SelectManyOp[T, R]) evaluate(ctx context.Context) (Items[R], sidevalue.Values, []int64) {
	inCtx := withoutCollector(ctx)
	in := n.source.GetVersionedValue(inCtx)

	seen := map[T]int{}
	list := []R{}
	sv := in.SideValues
	for item := range in.Value.All() {
		f := n.followItemLocked(ctx, item)
		seen[item]++
		iv := f.inner.GetVersionedValue(inCtx)
		f.version = iv.Version
		sv = sv.Combine(iv.SideValues)
		for r := range iv.Value.All() {
			list = append(list, r)
		}
	}

	for item, f := range n.follows {
		if seen[item] == 0 {
			f.sub.Dispose()
			delete(n.follows, item)
			continue
		}
		f.refs = seen[item]
	}

	return materializedItems(list), sv, []int64{in.Version}
}

// followItemLocked returns the follow of an item, selecting the inner collection if the item is new.
func (n *SelectManyOp[T, R]) followItemLocked(ctx context.Context, item T) *follow[R] {
	if f, ok := n.follows[item]; ok {
		return f
	}
	f := &follow[R]{inner: n.selector(ctx, item), version: -1, announced: -1}
	if n.active {
		f.sub = f.inner.AddObserver(n.innerObserver(item))
	}
	n.follows[item] = f
	return f
}

func (n *SelectManyOp[T, R]) innerStale(ctx context.Context) (bool, bool) {
	stale, covered := false, true
	for _, f := range n.follows {
		if v := f.inner.Version(ctx); v != f.version {
			stale = true
			if v > f.announced {
				covered = false
			}
		}
	}
	return stale, covered
}

func (n *SelectManyOp[T, R]) subscribeInners() {
	for item, f := range n.follows {
		f.sub = f.inner.AddObserver(n.innerObserver(item))
	}
}

func (n *SelectManyOp[T, R]) unsubscribeInners() {
	for _, f := range n.follows {
		f.sub.Dispose()
		f.sub = nil
	}
}

func (n *SelectManyOp[T, R]) innerObserver(item T) Observer {
	return CollectionObserverFuncs[R]{
		InvalidatedFunc: func(s *Subscription, _ bool) {
			n.onInner(s, item, -1, nil)
		},
		AddedFunc: func(s *Subscription, r R, version int64) {
			n.onInner(s, item, version, func(scope *UpdateScope[R]) { scope.Added(r) })
		},
		RemovedFunc: func(s *Subscription, r R, version int64) {
			n.onInner(s, item, version, func(scope *UpdateScope[R]) { scope.Removed(r) })
		},
		ReplacedFunc: func(s *Subscription, oldItem, newItem R, version int64) {
			n.onInner(s, item, version, func(scope *UpdateScope[R]) { scope.Replaced(oldItem, newItem) })
		},
	}
}

// onInner forwards a delta of the inner collection of item once for every occurrence of item. A
// nil emit means the inner collection could not describe its change.
func (n *SelectManyOp[T, R]) onInner(s *Subscription, item T, version int64, emit func(*UpdateScope[R])) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginUpdate()
	defer scope.Close()

	f, ok := n.follows[item]
	if !ok || f.sub != s {
		return
	}
	n.dirty = true
	if emit == nil || !n.evaluated {
		scope.SignalChange(true)
		return
	}
	if version > f.announced {
		f.announced = version
	}
	for range f.refs {
		emit(scope)
	}
}

func (n *SelectManyOp[T, R]) onAdded(s *Subscription, item T, version int64) {
	n.onUpstream(s, version, func(scope *UpdateScope[R]) bool { return n.addLocked(scope, item) })
}

func (n *SelectManyOp[T, R]) onRemoved(s *Subscription, item T, version int64) {
	n.onUpstream(s, version, func(scope *UpdateScope[R]) bool { return n.removeLocked(scope, item) })
}

func (n *SelectManyOp[T, R]) onReplaced(s *Subscription, oldItem, newItem T, version int64) {
	n.onUpstream(s, version, func(scope *UpdateScope[R]) bool {
		return n.removeLocked(scope, oldItem) && n.addLocked(scope, newItem)
	})
}

func (n *SelectManyOp[T, R]) onUpstream(s *Subscription, version int64, apply func(*UpdateScope[R]) bool) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	if !n.evaluated || !apply(scope) {
		scope.SignalChange(true)
	}
}

func (n *SelectManyOp[T, R]) addLocked(scope *UpdateScope[R], item T) bool {
	f := n.followItemLocked(n.callContext(), item)
	f.refs++
	iv := f.inner.GetVersionedValue(context.Background())
	if iv.Version > f.announced {
		f.announced = iv.Version
	}
	for r := range iv.Value.All() {
		scope.Added(r)
	}
	return true
}

func (n *SelectManyOp[T, R]) removeLocked(scope *UpdateScope[R], item T) bool {
	f, ok := n.follows[item]
	if !ok || f.refs == 0 {
		return false
	}
	iv := f.inner.GetVersionedValue(context.Background())
	for r := range iv.Value.All() {
		scope.Removed(r)
	}
	f.refs--
	if f.refs == 0 {
		f.sub.Dispose()
		delete(n.follows, item)
	}
	return true
}

// SelectManyListOp flattens the slices selected for the items of a source.
type SelectManyListOp[T, R any] struct {
	node[Items[R], R]
	source   CollectionSource[T]
	selector func(item T) []R
}

var _ CollectionSource[int] = &SelectManyListOp[string, int]{}

// SelectManyList creates a lazy collection holding, in source order, the items of selector(item)
// for every item of source. The selector must be a pure function of the item.
func SelectManyList[T, R any](source CollectionSource[T], selector func(item T) []R, opts ...Option) *SelectManyListOp[T, R] {
	n := &SelectManyListOp[T, R]{source: source, selector: selector}
	n.initNode(n, "selectmany", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = itemsEqual[R]
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: n.onUpstreamInvalidated,
		AddedFunc: func(s *Subscription, item T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[R]) {
				for _, r := range n.selector(item) {
					scope.Added(r)
				}
			})
		},
		RemovedFunc: func(s *Subscription, item T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[R]) {
				for _, r := range n.selector(item) {
					scope.Removed(r)
				}
			})
		},
		ReplacedFunc: func(s *Subscription, oldItem, newItem T, version int64) {
			n.forward(s, version, func(scope *UpdateScope[R]) {
				for _, r := range n.selector(oldItem) {
					scope.Removed(r)
				}
				for _, r := range n.selector(newItem) {
					scope.Added(r)
				}
			})
		},
	}
	return n
}

func (n *SelectManyListOp[T, R]) evaluate(ctx context.Context) (Items[R], sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))
	src := in.Value
	return LazyItems(func(yield func(R) bool) {
		for item := range src.All() {
			for _, r := range n.selector(item) {
				if !yield(r) {
					return
				}
			}
		}
	}), in.SideValues, []int64{in.Version}
}

func (n *SelectManyListOp[T, R]) forward(s *Subscription, version int64, emit func(*UpdateScope[R])) {
	if s.IsDisposed() {
		return
	}
	scope := n.beginIncremental(0, version)
	defer scope.Close()
	emit(scope)
}
