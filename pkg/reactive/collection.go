package reactive

import (
	"context"
	"slices"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// Collection is a mutable root collection. Every mutation produces a new immutable snapshot, so
// values handed out earlier are never affected by later changes.
type Collection[T comparable] struct {
	base[T]
	items      []T
	sideValues sidevalue.Values
}

var _ CollectionSource[int] = &Collection[int]{}

// NewCollection creates an empty collection at version zero.
func NewCollection[T comparable](opts ...Option) *Collection[T] {
	c := &Collection[T]{items: []T{}}
	c.init(c, "collection", nil, false, opts)
	return c
}

// AddObserver subscribes an observer.
func (c *Collection[T]) AddObserver(o Observer) *Subscription { return c.observers.Add(o) }

// IsMaterialized returns true.
func (c *Collection[T]) IsMaterialized() bool { return true }

// IsImmutable returns false.
func (c *Collection[T]) IsImmutable() bool { return false }

// GetValue returns the current snapshot.
func (c *Collection[T]) GetValue(ctx context.Context) Items[T] {
	return c.GetVersionedValue(ctx).Value
}

// Version returns the current version.
func (c *Collection[T]) Version(ctx context.Context) int64 {
	return c.GetVersionedValue(ctx).Version
}

// GetVersionedValue returns the current snapshot along with its version.
func (c *Collection[T]) GetVersionedValue(ctx context.Context) VersionedValue[Items[T]] {
	c.mu.Lock()
	vv := VersionedValue[Items[T]]{
		Value:      materializedItems(c.items),
		Version:    c.version,
		SideValues: c.sideValues,
	}
	c.mu.Unlock()

	CollectorFrom(ctx).Record(c, vv.Version, vv.SideValues)
	return vv
}

// Update runs fn with the collection locked and notifies the observers once fn returns. All
// changes made in fn are published under a single new version. fn must not read the collection
// through the source interface.
func (c *Collection[T]) Update(fn func(s *CollectionScope[T])) {
	s := &CollectionScope[T]{c: c, scope: c.beginUpdate()}
	defer s.scope.Close()
	fn(s)
}

// Add appends an item.
func (c *Collection[T]) Add(item T) {
	c.Update(func(s *CollectionScope[T]) { s.Add(item) })
}

// AddRange appends the items under a single version.
func (c *Collection[T]) AddRange(items ...T) {
	c.Update(func(s *CollectionScope[T]) {
		for _, item := range items {
			s.Add(item)
		}
	})
}

// Remove removes the first occurrence of item and reports whether it was found.
func (c *Collection[T]) Remove(item T) (found bool) {
	c.Update(func(s *CollectionScope[T]) { found = s.Remove(item) })
	return
}

// Replace replaces the first occurrence of oldItem in place and reports whether it was found.
func (c *Collection[T]) Replace(oldItem, newItem T) (found bool) {
	c.Update(func(s *CollectionScope[T]) { found = s.Replace(oldItem, newItem) })
	return
}

// Clear removes every item. This is a breaking change.
func (c *Collection[T]) Clear() {
	c.Update(func(s *CollectionScope[T]) { s.Clear() })
}

// SetSideValues replaces the side values attached to the collection.
func (c *Collection[T]) SetSideValues(sv sidevalue.Values) {
	c.Update(func(s *CollectionScope[T]) { s.SetSideValues(sv) })
}

// CollectionScope is the view of a collection inside Update.
type CollectionScope[T comparable] struct {
	c     *Collection[T]
	scope *UpdateScope[T]
}

// Items returns the current items.
func (s *CollectionScope[T]) Items() []T { return slices.Clone(s.c.items) }

// Add appends an item.
func (s *CollectionScope[T]) Add(item T) {
	s.scope.checkOpen()
	s.c.items = append(slices.Clip(s.c.items), item)
	s.scope.Added(item)
}

// Remove removes the first occurrence of item.
func (s *CollectionScope[T]) Remove(item T) bool {
	s.scope.checkOpen()
	i := slices.Index(s.c.items, item)
	if i < 0 {
		return false
	}
	s.c.items = slices.Delete(slices.Clone(s.c.items), i, i+1)
	s.scope.Removed(item)
	return true
}

// Replace replaces the first occurrence of oldItem in place.
func (s *CollectionScope[T]) Replace(oldItem, newItem T) bool {
	s.scope.checkOpen()
	i := slices.Index(s.c.items, oldItem)
	if i < 0 {
		return false
	}
	if oldItem == newItem {
		return true
	}
	items := slices.Clone(s.c.items)
	items[i] = newItem
	s.c.items = items
	s.scope.Replaced(oldItem, newItem)
	return true
}

// Clear removes every item.
func (s *CollectionScope[T]) Clear() {
	s.scope.checkOpen()
	if len(s.c.items) == 0 {
		return
	}
	s.c.items = []T{}
	s.scope.SignalChange(true)
}

// SetSideValues replaces the side values of the collection.
func (s *CollectionScope[T]) SetSideValues(sv sidevalue.Values) {
	s.scope.checkOpen()
	s.c.sideValues = sv
	s.scope.SignalChange(false)
}
