// Package sidevalue implements the side-value carrier: an immutable bag of auxiliary payloads
// (diagnostics, provenance, etc) that travels alongside reactive values. The bag holds at most one
// payload per kind, where the kind is the dynamic type of the payload. Adding a payload of a kind
// that is already present combines the two instead of overwriting.
package sidevalue

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// SideValue is a payload carried next to a value.
type SideValue interface {
	// Combine merges another payload of the same kind into a new payload. Implementations must
	// not modify either operand.
	Combine(other SideValue) SideValue
}

// Values is an immutable set of side values keyed by kind. The zero value is the empty set.
type Values struct {
	items []SideValue
}

// Empty is the empty carrier.
var Empty = Values{}

// Of creates a carrier holding the given payloads, combining payloads of the same kind.
func Of(values ...SideValue) Values {
	ret := Empty
	for _, v := range values {
		ret = ret.With(v)
	}
	return ret
}

func kindOf(v SideValue) reflect.Type { return reflect.TypeOf(v) }

// With returns a new carrier with v added. If a payload of the same kind is present the two are
// combined.
func (vs Values) With(v SideValue) Values {
	if v == nil {
		return vs
	}

	kind := kindOf(v)
	items := make([]SideValue, len(vs.items), len(vs.items)+1)
	copy(items, vs.items)

	for i, existing := range items {
		if kindOf(existing) == kind {
			items[i] = existing.Combine(v)
			return Values{items: items}
		}
	}

	return Values{items: append(items, v)}
}

// Combine merges two carriers kind by kind.
func (vs Values) Combine(other Values) Values {
	if len(other.items) == 0 {
		return vs
	}
	if len(vs.items) == 0 {
		return other
	}

	ret := vs
	for _, v := range other.items {
		ret = ret.With(v)
	}
	return ret
}

// Len returns the number of kinds present.
func (vs Values) Len() int { return len(vs.items) }

// IsEmpty reports whether the carrier holds no payloads.
func (vs Values) IsEmpty() bool { return len(vs.items) == 0 }

// All enumerates the payloads.
func (vs Values) All() iter.Seq[SideValue] {
	return func(yield func(SideValue) bool) {
		for _, v := range vs.items {
			if !yield(v) {
				return
			}
		}
	}
}

// Get returns the payload of kind T, if present.
func Get[T SideValue](vs Values) (T, bool) {
	for _, v := range vs.items {
		if t, ok := v.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// String returns a string representation for debugging.
func (vs Values) String() string {
	parts := make([]string, len(vs.items))
	for i, v := range vs.items {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
