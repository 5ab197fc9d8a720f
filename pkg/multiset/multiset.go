// Package multiset implements a counted multiset: every element carries a positive multiplicity
// and disappears only when its multiplicity drops to zero. Elements are enumerated in the order
// they were first inserted.
package multiset

import (
	"fmt"
	"iter"
	"strings"
)

// Multiset is a multiset of comparable elements. The zero value is not usable, call New.
type Multiset[T comparable] struct {
	counts map[T]int
	order  []T
	size   int
}

// New creates an empty multiset.
func New[T comparable]() *Multiset[T] {
	return &Multiset[T]{counts: make(map[T]int)}
}

// FromSlice creates a multiset holding every element of items with multiplicity 1 per occurrence.
func FromSlice[T comparable](items []T) *Multiset[T] {
	m := New[T]()
	for _, item := range items {
		m.Add(item, 1)
	}
	return m
}

// Add adds count occurrences of item and returns the new multiplicity. A negative count removes
// occurrences; multiplicities never go below zero.
func (m *Multiset[T]) Add(item T, count int) int {
	if count < 0 {
		return m.Remove(item, -count)
	}
	if count == 0 {
		return m.counts[item]
	}

	c, exists := m.counts[item]
	if !exists {
		m.order = append(m.order, item)
	}
	m.counts[item] = c + count
	m.size += count
	return c + count
}

// Remove removes up to count occurrences of item and returns the remaining multiplicity. The
// element is dropped when its multiplicity reaches zero.
func (m *Multiset[T]) Remove(item T, count int) int {
	c, exists := m.counts[item]
	if !exists || count <= 0 {
		return c
	}

	if count > c {
		count = c
	}
	c -= count
	m.size -= count

	if c > 0 {
		m.counts[item] = c
		return c
	}

	delete(m.counts, item)
	for i, v := range m.order {
		if v == item {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return 0
}

// Count returns the multiplicity of item.
func (m *Multiset[T]) Count(item T) int { return m.counts[item] }

// Contains reports whether item has a positive multiplicity.
func (m *Multiset[T]) Contains(item T) bool { return m.counts[item] > 0 }

// Len returns the number of occurrences, counting multiplicities.
func (m *Multiset[T]) Len() int { return m.size }

// UniqueLen returns the number of distinct elements.
func (m *Multiset[T]) UniqueLen() int { return len(m.order) }

// IsZero reports whether the multiset is empty.
func (m *Multiset[T]) IsZero() bool { return m.size == 0 }

// All enumerates every occurrence: an element with multiplicity n is yielded n times in a row.
func (m *Multiset[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range m.order {
			for i := 0; i < m.counts[item]; i++ {
				if !yield(item) {
					return
				}
			}
		}
	}
}

// Unique enumerates distinct elements with their multiplicities.
func (m *Multiset[T]) Unique() iter.Seq2[T, int] {
	return func(yield func(T, int) bool) {
		for _, item := range m.order {
			if !yield(item, m.counts[item]) {
				return
			}
		}
	}
}

// Slice returns every occurrence as a new slice.
func (m *Multiset[T]) Slice() []T {
	ret := make([]T, 0, m.size)
	for item := range m.All() {
		ret = append(ret, item)
	}
	return ret
}

// Clone returns an independent copy.
func (m *Multiset[T]) Clone() *Multiset[T] {
	ret := &Multiset[T]{
		counts: make(map[T]int, len(m.counts)),
		order:  make([]T, len(m.order)),
		size:   m.size,
	}
	copy(ret.order, m.order)
	for k, v := range m.counts {
		ret.counts[k] = v
	}
	return ret
}

// Equal reports whether both multisets hold the same elements with the same multiplicities,
// regardless of insertion order.
func (m *Multiset[T]) Equal(other *Multiset[T]) bool {
	if other == nil {
		return m.size == 0
	}
	if m.size != other.size || len(m.counts) != len(other.counts) {
		return false
	}
	for k, v := range m.counts {
		if other.counts[k] != v {
			return false
		}
	}
	return true
}

// String returns a string representation for debugging.
func (m *Multiset[T]) String() string {
	if m.IsZero() {
		return "∅"
	}
	parts := make([]string, 0, len(m.order))
	for item, count := range m.Unique() {
		parts = append(parts, fmt.Sprintf("%v×%d", item, count))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
