package reactive

import (
	"fmt"
	"iter"
	"slices"

	"k8s.io/apimachinery/pkg/api/equality"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// VersionedValue is a value together with the version it was observed at and the side values
// attached to it. Observing the same version of a source twice yields the same value.
type VersionedValue[T any] struct {
	Value      T
	Version    int64
	SideValues sidevalue.Values
}

// String stringifies a versioned value.
func (v VersionedValue[T]) String() string {
	if v.SideValues.IsEmpty() {
		return fmt.Sprintf("%v@%d", v.Value, v.Version)
	}
	return fmt.Sprintf("%v@%d%s", v.Value, v.Version, v.SideValues.String())
}

// Items is an immutable ordered sequence of items. It is either lazy, in which case every
// enumeration recomputes the items from the snapshots it closes over, or materialized, in which
// case the items are held in memory. The zero value is an empty lazy sequence.
type Items[T any] struct {
	seq          iter.Seq[T]
	list         []T
	materialized bool
}

// NewItems returns a materialized sequence holding a copy of list.
func NewItems[T any](list ...T) Items[T] {
	return materializedItems(slices.Clone(list))
}

// LazyItems returns a lazy sequence backed by seq.
func LazyItems[T any](seq iter.Seq[T]) Items[T] {
	return Items[T]{seq: seq}
}

// materializedItems takes ownership of list, which must never be modified afterwards.
func materializedItems[T any](list []T) Items[T] {
	if list == nil {
		list = []T{}
	}
	return Items[T]{list: list, materialized: true}
}

// All enumerates the items.
func (s Items[T]) All() iter.Seq[T] {
	if s.materialized {
		return slices.Values(s.list)
	}
	if s.seq == nil {
		return func(func(T) bool) {}
	}
	return s.seq
}

// Slice returns the items in a new slice.
func (s Items[T]) Slice() []T {
	if s.materialized {
		return slices.Clone(s.list)
	}
	ret := []T{}
	for item := range s.All() {
		ret = append(ret, item)
	}
	return ret
}

// Len returns the number of items. For lazy sequences this enumerates the items.
func (s Items[T]) Len() int {
	if s.materialized {
		return len(s.list)
	}
	n := 0
	for range s.All() {
		n++
	}
	return n
}

// IsMaterialized reports whether the items are held in memory.
func (s Items[T]) IsMaterialized() bool { return s.materialized }

// Materialize returns a materialized version of the sequence. Materialized sequences are
// returned as is.
func (s Items[T]) Materialize() Items[T] {
	if s.materialized {
		return s
	}
	return materializedItems(s.Slice())
}

// String stringifies the items.
func (s Items[T]) String() string {
	return fmt.Sprintf("%v", s.Slice())
}

// itemsEqual reports whether two sequences are known to be equal. Lazy sequences are never
// considered equal, as telling that would require enumerating both.
func itemsEqual[T any](a, b Items[T]) bool {
	if !a.materialized || !b.materialized {
		return false
	}
	return equality.Semantic.DeepEqual(a.list, b.list)
}

// identityEqual compares materialized sequences of references by identity.
func identityEqual[T comparable](a, b Items[T]) bool {
	if !a.materialized || !b.materialized {
		return false
	}
	return slices.Equal(a.list, b.list)
}

func defaultEqual[T any](a, b T) bool {
	return equality.Semantic.DeepEqual(a, b)
}
