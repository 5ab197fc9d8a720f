package reactive_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/incremental/internal/testutils"
	"github.com/l7mp/incremental/pkg/reactive"
)

var _ = Describe("Select", func() {
	var c *reactive.Collection[int]
	var sel *reactive.SelectOp[int, int]

	BeforeEach(func() {
		c = newInts(1, 2, 3)
		sel = reactive.Select(c, func(x int) int { return 2 * x }, reactive.WithName("double"))
	})

	It("should project the items in order", func() {
		Expect(sel.Name()).To(Equal("double"))
		Expect(sel.Kind()).To(Equal("select"))
		Expect(sel.Inputs()).To(HaveLen(1))
		Expect(sel.IsMaterialized()).To(BeFalse())
		Expect(sel.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6)))
	})

	It("should forward item deltas", func() {
		sel.GetValue(ctx)
		r := testutils.NewRecorder[int]()
		sel.AddObserver(r)

		c.Add(4)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.AddedEvent(8, 2)}))
		Expect(sel.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6, 8)))

		r.Reset()
		c.Remove(2)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.RemovedEvent(4, 3)}))
		Expect(sel.GetValue(ctx).Slice()).To(Equal(ints(2, 6, 8)))

		r.Reset()
		c.Replace(3, 5)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.ReplacedEvent(6, 10, 4)}))
	})

	It("should keep the version announced by an incremental update", func() {
		sel.GetValue(ctx)
		sel.AddObserver(testutils.NewRecorder[int]())
		c.Add(4)
		Expect(sel.GetVersionedValue(ctx).Version).To(Equal(int64(2)))
		Expect(sel.GetVersionedValue(ctx).Version).To(Equal(int64(2)))
	})

	It("should skip replacements with equal projections", func() {
		parity := reactive.Select(c, func(x int) bool { return even(x) })
		r := testutils.NewRecorder[bool]()
		parity.AddObserver(r)
		v := parity.Version(ctx)

		c.Replace(1, 3)
		Expect(r.Len()).To(BeZero())
		Expect(parity.Version(ctx)).To(Equal(v))
	})

	It("should bump the version monotonically on every observed change", func() {
		last := sel.Version(ctx)
		for i := range 5 {
			c.Add(10 + i)
			v := sel.Version(ctx)
			Expect(v).To(BeNumerically(">", last))
			last = v
		}
		Expect(sel.Version(ctx)).To(Equal(last))
	})

	It("should track dependencies read by the selector", func() {
		factor := reactive.NewValue(2)
		scaled := reactive.SelectContext(c, func(ctx context.Context, x int) int {
			return x * factor.GetValue(ctx)
		})
		Expect(scaled.IsMaterialized()).To(BeTrue())
		Expect(scaled.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6)))

		r := testutils.NewRecorder[int]()
		scaled.AddObserver(r)
		Expect(factor.ObserverCount()).To(Equal(1))

		v := scaled.Version(ctx)
		factor.Set(3)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		Expect(scaled.GetValue(ctx).Slice()).To(Equal(ints(3, 6, 9)))
		Expect(scaled.Version(ctx)).To(BeNumerically(">", v))

		scaled.Dispose()
		Expect(factor.ObserverCount()).To(BeZero())
		Expect(c.ObserverCount()).To(BeZero())
	})

	It("should stop following dependencies that are no longer read", func() {
		useA := reactive.NewValue(true)
		a, b := reactive.NewValue(1), reactive.NewValue(100)
		pick := reactive.SelectContext(c, func(ctx context.Context, x int) int {
			if useA.GetValue(ctx) {
				return x + a.GetValue(ctx)
			}
			return x + b.GetValue(ctx)
		})
		pick.AddObserver(testutils.NewRecorder[int]())
		Expect(pick.GetValue(ctx).Slice()).To(Equal(ints(2, 3, 4)))
		Expect(a.ObserverCount()).To(Equal(1))
		Expect(b.ObserverCount()).To(BeZero())

		useA.Set(false)
		Expect(pick.GetValue(ctx).Slice()).To(Equal(ints(101, 102, 103)))
		Expect(a.ObserverCount()).To(BeZero())
		Expect(b.ObserverCount()).To(Equal(1))
	})

	It("should panic on a selector reading its own output", func() {
		var self *reactive.SelectOp[int, int]
		self = reactive.SelectContext(c, func(ctx context.Context, x int) int {
			return x + self.GetValue(ctx).Len()
		})
		Expect(func() { self.GetValue(ctx) }).To(PanicWith(MatchError(reactive.ErrReentrant)))
	})

	It("should stop propagating after dispose", func() {
		r := testutils.NewRecorder[int]()
		sel.AddObserver(r)
		Expect(c.ObserverCount()).To(Equal(1))

		sel.Dispose()
		Expect(c.ObserverCount()).To(BeZero())
		c.Add(4)
		Expect(r.Len()).To(BeZero())

		// still evaluates on read
		Expect(sel.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6, 8)))
	})
})

var _ = Describe("Where", func() {
	var c *reactive.Collection[int]
	var evens *reactive.WhereOp[int]
	var r *testutils.Recorder[int]

	BeforeEach(func() {
		c = newInts(1, 2, 3, 4)
		evens = reactive.Where(c, even)
		r = testutils.NewRecorder[int]()
		evens.AddObserver(r)
	})

	It("should filter the items in order", func() {
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(2, 4)))
	})

	It("should drop deltas of items not passing the filter", func() {
		v := evens.Version(ctx)
		c.Add(5)
		Expect(r.Len()).To(BeZero())
		Expect(evens.Version(ctx)).To(Equal(v))

		c.Add(6)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.AddedEvent(6, v+1)}))
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6)))
	})

	It("should translate replacements", func() {
		c.Replace(2, 3)  // in -> out
		c.Replace(1, 8)  // out -> in
		c.Replace(4, 10) // in -> in
		c.Replace(3, 5)  // out -> out
		kinds := []testutils.EventKind{}
		for _, e := range r.Events() {
			kinds = append(kinds, e.Kind)
		}
		Expect(kinds).To(Equal([]testutils.EventKind{testutils.Removed, testutils.Added, testutils.Replaced}))
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(8, 10)))
	})
})

var _ = Describe("Union", func() {
	It("should concatenate and keep multiplicities", func() {
		a, b := newInts(1, 2), newInts(2, 3)
		u := reactive.Union(a, b)
		Expect(u.GetValue(ctx).Slice()).To(Equal(ints(1, 2, 2, 3)))

		r := testutils.NewRecorder[int]()
		u.AddObserver(r)
		b.Add(4)
		a.Remove(1)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{
			testutils.AddedEvent(4, 2),
			testutils.RemovedEvent(1, 3),
		}))
		Expect(u.GetValue(ctx).Slice()).To(Equal(ints(2, 2, 3, 4)))
		Expect(u.Version(ctx)).To(Equal(int64(3)))
	})

	It("should combine side values independently of the order", func() {
		a, b := newInts(1), newInts(2)
		a.SetSideValues(diagnostics("a is stale"))
		b.SetSideValues(diagnostics("b is stale"))

		ab := reactive.Union(a, b).GetVersionedValue(ctx).SideValues
		ba := reactive.Union(b, a).GetVersionedValue(ctx).SideValues
		Expect(messages(ab)).To(Equal([]string{"a is stale", "b is stale"}))
		Expect(messages(ba)).To(Equal(messages(ab)))
	})
})

var _ = Describe("Materialize", func() {
	It("should compute the items once per version", func() {
		c := newInts(1, 2, 3)
		calls := 0
		m := reactive.Materialize[int](reactive.Select(c, func(x int) int {
			calls++
			return x * x
		}))
		Expect(m.IsMaterialized()).To(BeTrue())

		Expect(m.GetValue(ctx).Slice()).To(Equal(ints(1, 4, 9)))
		Expect(m.GetValue(ctx).Slice()).To(Equal(ints(1, 4, 9)))
		Expect(calls).To(Equal(3))

		c.Add(4)
		Expect(m.GetValue(ctx).Slice()).To(Equal(ints(1, 4, 9, 16)))
		Expect(calls).To(Equal(7))
	})

	It("should be idempotent", func() {
		c := newInts(1, 2)
		once := reactive.Materialize[int](reactive.Select(c, func(x int) int { return -x }))
		twice := reactive.Materialize(once)
		Expect(twice).To(BeIdenticalTo(once))
		Expect(reactive.Materialize[int](c)).To(BeIdenticalTo(reactive.CollectionSource[int](c)))

		r1, r2 := testutils.NewRecorder[int](), testutils.NewRecorder[int]()
		once.AddObserver(r1)
		twice.AddObserver(r2)
		c.Add(3)
		Expect(r2.Events()).To(Equal(r1.Events()))
		Expect(twice.GetVersionedValue(ctx)).To(Equal(once.GetVersionedValue(ctx)))
	})
})

var _ = Describe("SelectMany", func() {
	var parents *reactive.Collection[string]
	var children map[string]*reactive.Collection[int]
	var flat *reactive.SelectManyOp[string, int]
	var r *testutils.Recorder[int]

	BeforeEach(func() {
		children = map[string]*reactive.Collection[int]{"a": newInts(1, 2), "b": newInts(3)}
		parents = reactive.NewCollection[string]()
		parents.AddRange("a", "b")
		flat = reactive.SelectMany(parents, func(p string) reactive.CollectionSource[int] {
			return children[p]
		})
		Expect(flat.GetValue(ctx).Slice()).To(Equal(ints(1, 2, 3)))
		r = testutils.NewRecorder[int]()
		flat.AddObserver(r)
	})

	It("should forward deltas of the inner collections", func() {
		children["a"].Add(5)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.AddedEvent(5, 2)}))
		Expect(flat.GetValue(ctx).Slice()).To(Equal(ints(1, 2, 5, 3)))
		Expect(flat.Version(ctx)).To(Equal(int64(2)))
	})

	It("should follow and unfollow inner collections with their items", func() {
		parents.Remove("b")
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.RemovedEvent(3, 2)}))
		Expect(children["b"].ObserverCount()).To(BeZero())

		r.Reset()
		children["b"].Add(4)
		Expect(r.Len()).To(BeZero())
		Expect(flat.GetValue(ctx).Slice()).To(Equal(ints(1, 2)))
	})

	It("should forward inner deltas once per occurrence", func() {
		parents.Add("a")
		Expect(r.Events()).To(Equal([]testutils.Event[int]{
			testutils.AddedEvent(1, 2), testutils.AddedEvent(2, 2),
		}))

		r.Reset()
		children["a"].Add(7)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{
			testutils.AddedEvent(7, 3), testutils.AddedEvent(7, 3),
		}))
		Expect(flat.GetValue(ctx).Slice()).To(Equal(ints(1, 2, 7, 3, 1, 2, 7)))
		Expect(flat.Version(ctx)).To(Equal(int64(3)))
	})

	It("should turn an inner breaking change into a breaking change", func() {
		children["b"].Clear()
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		Expect(flat.GetValue(ctx).Slice()).To(Equal(ints(1, 2)))
	})
})

var _ = Describe("SelectManyList", func() {
	It("should flatten the selected slices", func() {
		words := reactive.NewCollection[string]()
		words.AddRange("ab", "c")
		chars := reactive.SelectManyList(words, func(w string) []string { return strings.Split(w, "") })
		Expect(chars.GetValue(ctx).Slice()).To(Equal([]string{"a", "b", "c"}))

		r := testutils.NewRecorder[string]()
		chars.AddObserver(r)
		words.Replace("ab", "d")
		Expect(r.Events()).To(Equal([]testutils.Event[string]{
			testutils.RemovedEvent("a", 2), testutils.RemovedEvent("b", 2), testutils.AddedEvent("d", 2),
		}))
		Expect(chars.GetValue(ctx).Slice()).To(Equal([]string{"d", "c"}))
	})
})
