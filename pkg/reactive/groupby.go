package reactive

import (
	"cmp"
	"context"
	"slices"

	"github.com/l7mp/incremental/pkg/multiset"
	"github.com/l7mp/incremental/pkg/sidevalue"
	"github.com/l7mp/incremental/pkg/skiplist"
)

// GroupByOp partitions a collection by key. The result is the list of groups in key order. Group
// objects are kept for as long as their key is present, so a consumer holding a group keeps
// receiving its deltas. Changes that leave the set of keys intact are routed to the affected
// group and do not change the list of groups, anything else repartitions the source and is
// signaled as a breaking change.
type GroupByOp[T any, K any, V comparable] struct {
	node[Items[*Group[K, V]], *Group[K, V]]
	source  CollectionSource[T]
	key     func(T) K
	element func(T) V
	compare func(a, b K) int
	groups  *skiplist.List[K, *Group[K, V]]
	keys    []K
	epoch   uint64
}

var _ CollectionSource[*Group[int, string]] = &GroupByOp[string, int, string]{}

// GroupBy groups the items of source by key.
func GroupBy[T comparable, K cmp.Ordered](source CollectionSource[T], key func(T) K, opts ...Option) *GroupByOp[T, K, T] {
	return GroupByFunc(source, key, func(item T) T { return item }, cmp.Compare[K], opts...)
}

// GroupByElement groups the values selected by element by the key of the item they come from.
func GroupByElement[T any, K cmp.Ordered, V comparable](source CollectionSource[T], key func(T) K, element func(T) V, opts ...Option) *GroupByOp[T, K, V] {
	return GroupByFunc(source, key, element, cmp.Compare[K], opts...)
}

// GroupByFunc is like GroupByElement but orders the keys with a custom comparison function.
// Keys comparing equal fall into the same group.
func GroupByFunc[T any, K any, V comparable](source CollectionSource[T], key func(T) K, element func(T) V, compare func(a, b K) int, opts ...Option) *GroupByOp[T, K, V] {
	n := &GroupByOp[T, K, V]{
		source:  source,
		key:     key,
		element: element,
		compare: compare,
		groups:  skiplist.NewFunc[K, *Group[K, V]](compare),
	}
	n.initNode(n, "groupby", []Observable{source}, false, opts)
	n.compute = n.evaluate
	n.equal = identityEqual[*Group[K, V]]
	n.materialized = true
	n.upstreams[0] = CollectionObserverFuncs[T]{
		InvalidatedFunc: func(s *Subscription, _ bool) { n.onUpstreamInvalidated(s, true) },
		AddedFunc: func(s *Subscription, item T, version int64) {
			n.onUpstream(s, version, func() bool { return n.addLocked(item) })
		},
		RemovedFunc: func(s *Subscription, item T, version int64) {
			n.onUpstream(s, version, func() bool { return n.removeLocked(item) })
		},
		ReplacedFunc: func(s *Subscription, oldItem, newItem T, version int64) {
			n.onUpstream(s, version, func() bool { return n.replaceLocked(oldItem, newItem) })
		},
	}
	return n
}

type keyed[K, V any] struct {
	key  K
	elem V
}

func (n *GroupByOp[T, K, V]) evaluate(ctx context.Context) (Items[*Group[K, V]], sidevalue.Values, []int64) {
	in := n.source.GetVersionedValue(withoutCollector(ctx))

	entries := []keyed[K, V]{}
	for item := range in.Value.All() {
		entries = append(entries, keyed[K, V]{key: n.key(item), elem: n.element(item)})
	}
	slices.SortStableFunc(entries, func(a, b keyed[K, V]) int { return n.compare(a.key, b.key) })

	n.epoch++
	keys := []K{}
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && n.compare(entries[i].key, entries[j].key) == 0 {
			j++
		}

		key := entries[i].key
		members := multiset.New[V]()
		for _, e := range entries[i:j] {
			members.Add(e.elem, 1)
		}

		g, ok := n.groups.Get(key)
		if !ok {
			g = newGroup[K, V](n, key)
			n.groups.Insert(key, g)
		}
		g.epoch = n.epoch
		n.deferLocked(g.reset(members, in.SideValues))
		keys = append(keys, key)
		i = j
	}

	stale := []K{}
	for key, g := range n.groups.All() {
		if g.epoch != n.epoch {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		g, _ := n.groups.Remove(key)
		n.deferLocked(g.drop())
	}
	n.keys = keys

	list := make([]*Group[K, V], 0, n.groups.Len())
	for _, g := range n.groups.All() {
		list = append(list, g)
	}

	return materializedItems(list), in.SideValues, []int64{in.Version}
}

// sameKeys reports whether the distinct keys of items are the keys of the current groups.
func (n *GroupByOp[T, K, V]) sameKeys(items Items[T]) bool {
	keys := []K{}
	for item := range items.All() {
		keys = append(keys, n.key(item))
	}
	slices.SortFunc(keys, n.compare)
	keys = slices.CompactFunc(keys, func(a, b K) bool { return n.compare(a, b) == 0 })

	return slices.EqualFunc(keys, n.keys, func(a, b K) bool { return n.compare(a, b) == 0 })
}

func (n *GroupByOp[T, K, V]) onUpstream(s *Subscription, version int64, apply func() bool) {
	if s.IsDisposed() {
		return
	}

	scope := n.beginUpdate()
	defer scope.Close()
	synced := n.evaluated && !n.dirty
	n.dirty = true
	n.announceLocked(0, version)

	if synced {
		in := n.source.GetVersionedValue(context.Background())
		if n.sameKeys(in.Value) && apply() {
			if in.Version == version {
				n.inputVersions[0] = version
				n.dirty = false
			}
			return
		}
	}

	// repartition right away so that the observers of the groups learn about the change
	n.log.V(4).Info("repartitioning", "version", version)
	scope.SignalChange(true)
	n.refreshLocked(context.Background())
}

func (n *GroupByOp[T, K, V]) addLocked(item T) bool {
	g, ok := n.groups.Get(n.key(item))
	if !ok {
		return false
	}
	n.deferLocked(g.add(n.element(item)))
	return true
}

func (n *GroupByOp[T, K, V]) removeLocked(item T) bool {
	g, ok := n.groups.Get(n.key(item))
	if !ok {
		return false
	}
	deliver, ok := g.remove(n.element(item))
	n.deferLocked(deliver)
	return ok
}

func (n *GroupByOp[T, K, V]) replaceLocked(oldItem, newItem T) bool {
	if n.compare(n.key(oldItem), n.key(newItem)) == 0 {
		g, ok := n.groups.Get(n.key(oldItem))
		if !ok {
			return false
		}
		deliver, ok := g.replace(n.element(oldItem), n.element(newItem))
		n.deferLocked(deliver)
		return ok
	}
	return n.removeLocked(oldItem) && n.addLocked(newItem)
}

// GroupAt returns the group at the given position in key order.
func (n *GroupByOp[T, K, V]) GroupAt(ctx context.Context, index int) (*Group[K, V], error) {
	groups := n.GetValue(ctx)
	if index < 0 || index >= groups.Len() {
		return nil, NewOutOfRangeError(n.name, index, groups.Len())
	}
	return groups.list[index], nil
}

// Lookup returns the group of a key.
func (n *GroupByOp[T, K, V]) Lookup(ctx context.Context, key K) (*Group[K, V], bool) {
	n.GetVersionedValue(ctx)

	n.mu.Lock()
	defer n.unlock()
	return n.groups.Get(key)
}
