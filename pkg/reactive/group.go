package reactive

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/equality"

	"github.com/l7mp/incremental/pkg/multiset"
	"github.com/l7mp/incremental/pkg/sidevalue"
)

type groupParent interface {
	Observable
	ensure(ctx context.Context)
	activate()
}

// Group is a partition of a GroupBy result: the elements of the source items sharing a key. A
// group is an observable collection of its own, with its own version. It emits item deltas while
// the partitioning of the source stays the same and a breaking invalidation when it is
// recomputed or dropped.
type Group[K any, V comparable] struct {
	base[V]
	parent  groupParent
	key     K
	members *multiset.Multiset[V]
	items   Items[V]
	valid   bool
	dropped bool
	// sideValues are the side values of the grouped source at the last repartitioning.
	sideValues sidevalue.Values
	// epoch is guarded by the parent lock.
	epoch uint64
}

var _ CollectionSource[int] = &Group[string, int]{}

func newGroup[K any, V comparable](parent groupParent, key K) *Group[K, V] {
	g := &Group[K, V]{parent: parent, key: key, members: multiset.New[V]()}
	g.init(g, "group", []Observable{parent}, false,
		[]Option{WithName(fmt.Sprintf("%s[%v]", parent.Name(), key))})
	return g
}

// Key returns the key of the group.
func (g *Group[K, V]) Key() K { return g.key }

// IsDropped reports whether the key disappeared from the source. Dropped groups are empty and
// never change again.
func (g *Group[K, V]) IsDropped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// AddObserver subscribes an observer and activates the grouping.
func (g *Group[K, V]) AddObserver(o Observer) *Subscription {
	if g.parent.IsImmutable() {
		return nil
	}
	s := g.observers.Add(o)
	g.parent.activate()
	return s
}

// IsMaterialized returns true.
func (g *Group[K, V]) IsMaterialized() bool { return true }

// IsImmutable reports whether the grouped source is immutable.
func (g *Group[K, V]) IsImmutable() bool { return g.parent.IsImmutable() }

// GetValue returns the elements of the group.
func (g *Group[K, V]) GetValue(ctx context.Context) Items[V] {
	return g.GetVersionedValue(ctx).Value
}

// Version returns the version of the group.
func (g *Group[K, V]) Version(ctx context.Context) int64 {
	return g.GetVersionedValue(ctx).Version
}

// GetVersionedValue returns the elements of the group, bringing the grouping up to date first.
func (g *Group[K, V]) GetVersionedValue(ctx context.Context) VersionedValue[Items[V]] {
	g.parent.ensure(withoutCollector(ctx))

	g.mu.Lock()
	if !g.valid {
		g.items = materializedItems(g.members.Slice())
		g.valid = true
	}
	vv := VersionedValue[Items[V]]{Value: g.items, Version: g.version, SideValues: g.sideValues}
	g.mu.Unlock()

	CollectorFrom(ctx).Record(g, vv.Version, vv.SideValues)
	return vv
}

// The methods below are called by the grouping with its own lock held. Each returns the
// delivery function of the update, which the caller runs after releasing its lock.

func (g *Group[K, V]) reset(members *multiset.Multiset[V], sv sidevalue.Values) func() {
	s := g.beginUpdate()
	switch {
	case !g.members.Equal(members):
		g.members, g.sideValues = members, sv
		g.valid = false
		s.SignalChange(true)
	case !equality.Semantic.DeepEqual(g.sideValues, sv):
		g.sideValues = sv
		s.SignalChange(false)
	}
	return s.commit()
}

func (g *Group[K, V]) drop() func() {
	s := g.beginUpdate()
	g.dropped = true
	if !g.members.IsZero() {
		g.members = multiset.New[V]()
		g.valid = false
	}
	s.SignalChange(true)
	return s.commit()
}

func (g *Group[K, V]) add(elem V) func() {
	s := g.beginUpdate()
	g.members.Add(elem, 1)
	g.valid = false
	s.Added(elem)
	return s.commit()
}

func (g *Group[K, V]) remove(elem V) (func(), bool) {
	s := g.beginUpdate()
	if !g.members.Contains(elem) {
		return s.commit(), false
	}
	g.members.Remove(elem, 1)
	g.valid = false
	s.Removed(elem)
	return s.commit(), true
}

func (g *Group[K, V]) replace(oldElem, newElem V) (func(), bool) {
	s := g.beginUpdate()
	if !g.members.Contains(oldElem) {
		return s.commit(), false
	}
	if oldElem != newElem {
		g.members.Remove(oldElem, 1)
		g.members.Add(newElem, 1)
		g.valid = false
		s.Replaced(oldElem, newElem)
	}
	return s.commit(), true
}
