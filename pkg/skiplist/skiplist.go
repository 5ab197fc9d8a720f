// Package skiplist implements an indexed skip list: an ordered map with O(log n) expected lookup,
// insertion, removal and positional access. Every forward pointer carries a span, the number of
// level-0 steps it skips, so that the rank of a node can be accumulated during a search.
package skiplist

import (
	"cmp"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"
)

const (
	maxLevel = 32
	// one in branching nodes is promoted to the next level
	branching = 4
)

type node[K, V any] struct {
	key   K
	value V
	next  []*node[K, V]
	span  []int
}

// List is an indexed skip list keyed by K. Keys are unique under the compare function. A List is
// not safe for concurrent use.
type List[K, V any] struct {
	head    *node[K, V]
	level   int
	length  int
	compare func(a, b K) int
	rnd     *rand.Rand
}

// New creates a list ordered by cmp.Compare.
func New[K cmp.Ordered, V any]() *List[K, V] {
	return NewFunc[K, V](cmp.Compare[K])
}

// NewFunc creates a list ordered by the given compare function.
func NewFunc[K, V any](compare func(a, b K) int) *List[K, V] {
	return &List[K, V]{
		head: &node[K, V]{
			next: make([]*node[K, V], maxLevel),
			span: make([]int, maxLevel),
		},
		level:   1,
		compare: compare,
		rnd:     rand.New(rand.NewPCG(0x5eed, 0xc0ffee)),
	}
}

func (l *List[K, V]) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && l.rnd.IntN(branching) == 0 {
		lvl++
	}
	return lvl
}

// search fills update with the rightmost node before key on every level and rank with the
// 1-based position of those nodes.
func (l *List[K, V]) search(key K, update *[maxLevel]*node[K, V], rank *[maxLevel]int) *node[K, V] {
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		if i == l.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && l.compare(x.next[i].key, key) < 0 {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}
	return x.next[0]
}

// Len returns the number of entries.
func (l *List[K, V]) Len() int { return l.length }

// Insert adds or overwrites the entry for key. It returns true if the key was new.
func (l *List[K, V]) Insert(key K, value V) bool {
	var update [maxLevel]*node[K, V]
	var rank [maxLevel]int

	if n := l.search(key, &update, &rank); n != nil && l.compare(n.key, key) == 0 {
		n.value = value
		return false
	}

	lvl := l.randomLevel()
	if lvl > l.level {
		for i := l.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = l.head
			update[i].span[i] = l.length
		}
		l.level = lvl
	}

	x := &node[K, V]{
		key:   key,
		value: value,
		next:  make([]*node[K, V], lvl),
		span:  make([]int, lvl),
	}
	for i := 0; i < lvl; i++ {
		x.next[i] = update[i].next[i]
		update[i].next[i] = x

		x.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}

	// levels above the new node now skip one more element
	for i := lvl; i < l.level; i++ {
		update[i].span[i]++
	}

	l.length++
	return true
}

// Get returns the value stored for key.
func (l *List[K, V]) Get(key K) (V, bool) {
	var update [maxLevel]*node[K, V]
	var rank [maxLevel]int

	if n := l.search(key, &update, &rank); n != nil && l.compare(n.key, key) == 0 {
		return n.value, true
	}
	var zero V
	return zero, false
}

// IndexOf returns the 0-based position of key, or -1.
func (l *List[K, V]) IndexOf(key K) int {
	var update [maxLevel]*node[K, V]
	var rank [maxLevel]int

	if n := l.search(key, &update, &rank); n != nil && l.compare(n.key, key) == 0 {
		return rank[0]
	}
	return -1
}

// At returns the entry at the 0-based position idx.
func (l *List[K, V]) At(idx int) (K, V, bool) {
	if n := l.nodeAt(idx); n != nil {
		return n.key, n.value, true
	}
	var k K
	var v V
	return k, v, false
}

func (l *List[K, V]) nodeAt(idx int) *node[K, V] {
	if idx < 0 || idx >= l.length {
		return nil
	}

	target := idx + 1
	traversed := 0
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= target {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == target {
			return x
		}
	}
	return nil
}

// Remove deletes the entry for key. It returns the removed value and whether the key was present.
func (l *List[K, V]) Remove(key K) (V, bool) {
	var update [maxLevel]*node[K, V]
	var rank [maxLevel]int

	n := l.search(key, &update, &rank)
	if n == nil || l.compare(n.key, key) != 0 {
		var zero V
		return zero, false
	}

	l.unlink(n, &update)
	return n.value, true
}

// RemoveAt deletes the entry at the 0-based position idx.
func (l *List[K, V]) RemoveAt(idx int) (K, V, error) {
	n := l.nodeAt(idx)
	if n == nil {
		var k K
		var v V
		return k, v, fmt.Errorf("skiplist: index %d out of range [0, %d)", idx, l.length)
	}

	var update [maxLevel]*node[K, V]
	var rank [maxLevel]int
	l.search(n.key, &update, &rank)
	l.unlink(n, &update)
	return n.key, n.value, nil
}

// unlink removes x given the predecessors on every level. A predecessor that points at x absorbs
// x's span minus x itself; predecessors above x's height skip one element less.
func (l *List[K, V]) unlink(x *node[K, V], update *[maxLevel]*node[K, V]) {
	for i := 0; i < l.level; i++ {
		if update[i].next[i] == x {
			update[i].span[i] += x.span[i] - 1
			update[i].next[i] = x.next[i]
		} else {
			update[i].span[i]--
		}
	}

	for l.level > 1 && l.head.next[l.level-1] == nil {
		l.head.span[l.level-1] = 0
		l.level--
	}

	l.length--
}

// Clear removes all entries.
func (l *List[K, V]) Clear() {
	for i := range l.head.next {
		l.head.next[i] = nil
		l.head.span[i] = 0
	}
	l.level = 1
	l.length = 0
}

// All enumerates the entries in key order.
func (l *List[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for x := l.head.next[0]; x != nil; x = x.next[0] {
			if !yield(x.key, x.value) {
				return
			}
		}
	}
}

// Keys returns the keys in order.
func (l *List[K, V]) Keys() []K {
	ret := make([]K, 0, l.length)
	for k := range l.All() {
		ret = append(ret, k)
	}
	return ret
}

// String returns a string representation for debugging.
func (l *List[K, V]) String() string {
	parts := make([]string, 0, l.length)
	for k, v := range l.All() {
		parts = append(parts, fmt.Sprintf("%v:%v", k, v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// check verifies the span invariant on every level; used by tests.
func (l *List[K, V]) check() error {
	pos := map[*node[K, V]]int{l.head: 0}
	i := 0
	for x := l.head.next[0]; x != nil; x = x.next[0] {
		i++
		pos[x] = i
		if x.next[0] != nil && l.compare(x.key, x.next[0].key) >= 0 {
			return fmt.Errorf("keys out of order at position %d", i)
		}
	}
	if i != l.length {
		return fmt.Errorf("length %d, counted %d", l.length, i)
	}

	for lvl := 0; lvl < l.level; lvl++ {
		for x := l.head; x != nil; x = x.next[lvl] {
			if x.next[lvl] == nil {
				continue
			}
			if want := pos[x.next[lvl]] - pos[x]; x.span[lvl] != want {
				return fmt.Errorf("level %d: span %d at position %d, want %d", lvl, x.span[lvl], pos[x], want)
			}
		}
	}
	return nil
}
