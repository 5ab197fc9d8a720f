package reactive

import (
	"context"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// Value is a mutable scalar root.
type Value[T any] struct {
	base[T]
	value      T
	sideValues sidevalue.Values
	equal      func(a, b T) bool
}

var _ Source[int] = &Value[int]{}

// NewValue creates a scalar root holding initial at version zero.
func NewValue[T any](initial T, opts ...Option) *Value[T] {
	v := &Value[T]{value: initial, equal: defaultEqual[T]}
	v.init(v, "value", nil, true, opts)
	return v
}

// AddObserver subscribes an observer.
func (v *Value[T]) AddObserver(o Observer) *Subscription { return v.observers.Add(o) }

// IsMaterialized returns true.
func (v *Value[T]) IsMaterialized() bool { return true }

// IsImmutable returns false.
func (v *Value[T]) IsImmutable() bool { return false }

// GetValue returns the current value.
func (v *Value[T]) GetValue(ctx context.Context) T { return v.GetVersionedValue(ctx).Value }

// Version returns the current version.
func (v *Value[T]) Version(ctx context.Context) int64 { return v.GetVersionedValue(ctx).Version }

// GetVersionedValue returns the current value along with its version.
func (v *Value[T]) GetVersionedValue(ctx context.Context) VersionedValue[T] {
	v.mu.Lock()
	vv := VersionedValue[T]{Value: v.value, Version: v.version, SideValues: v.sideValues}
	v.mu.Unlock()

	CollectorFrom(ctx).Record(v, vv.Version, vv.SideValues)
	return vv
}

// Set updates the value and reports whether it changed. Setting an equal value is a no-op.
func (v *Value[T]) Set(value T) bool {
	s := v.beginUpdate()
	defer s.Close()
	if v.equal(v.value, value) {
		return false
	}
	old := v.value
	v.value = value
	s.ValueChanged(old, value)
	return true
}

// SetSideValues replaces the side values attached to the value.
func (v *Value[T]) SetSideValues(sv sidevalue.Values) {
	s := v.beginUpdate()
	defer s.Close()
	v.sideValues = sv
	s.SignalChange(false)
}

// Constant is an immutable source. It never notifies, so AddObserver returns nil.
type Constant[T any] struct {
	base[T]
	value VersionedValue[T]
}

// FromSlice wraps a slice into an immutable collection. The slice is copied.
func FromSlice[T any](items []T, opts ...Option) *Constant[Items[T]] {
	c := &Constant[Items[T]]{value: VersionedValue[Items[T]]{Value: NewItems(items...)}}
	c.init(c, "immutable", nil, true, opts)
	return c
}

// Const wraps a scalar into an immutable source.
func Const[T any](value T, opts ...Option) *Constant[T] {
	c := &Constant[T]{value: VersionedValue[T]{Value: value}}
	c.init(c, "const", nil, true, opts)
	return c
}

// AddObserver returns nil: constants never change.
func (c *Constant[T]) AddObserver(Observer) *Subscription { return nil }

// IsMaterialized returns true.
func (c *Constant[T]) IsMaterialized() bool { return true }

// IsImmutable returns true.
func (c *Constant[T]) IsImmutable() bool { return true }

// GetValue returns the value.
func (c *Constant[T]) GetValue(ctx context.Context) T { return c.GetVersionedValue(ctx).Value }

// Version returns zero.
func (c *Constant[T]) Version(ctx context.Context) int64 { return c.GetVersionedValue(ctx).Version }

// GetVersionedValue returns the value at version zero.
func (c *Constant[T]) GetVersionedValue(ctx context.Context) VersionedValue[T] {
	CollectorFrom(ctx).Record(c, c.value.Version, c.value.SideValues)
	return c.value
}
