package reactive_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/incremental/internal/testutils"
	"github.com/l7mp/incremental/pkg/reactive"
)

func positive(x int) bool { return x > 0 }

var _ = Describe("Some", func() {
	var c *reactive.Collection[int]
	var firstEven *reactive.SomeOp[int]
	var r *testutils.Recorder[int]

	BeforeEach(func() {
		c = newInts(1, 3)
		firstEven = reactive.SomeOrDefault(c, even, -1)
		r = testutils.NewRecorder[int]()
		firstEven.AddObserver(r)
	})

	It("should fall back to the default", func() {
		v, found := firstEven.Find(ctx)
		Expect(found).To(BeFalse())
		Expect(v).To(Equal(-1))
	})

	It("should report the first match", func() {
		v0 := firstEven.Version(ctx)
		c.Add(4)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.ChangedEvent(-1, 4, v0+1)}))
		Expect(firstEven.GetValue(ctx)).To(Equal(4))
		Expect(firstEven.Version(ctx)).To(Equal(v0 + 1))

		// a later match does not change the value
		c.Add(6)
		Expect(r.Len()).To(Equal(1))
		Expect(firstEven.GetValue(ctx)).To(Equal(4))
	})

	It("should signal the removal of the current match as breaking", func() {
		firstEven.GetValue(ctx)
		c.AddRange(4, 6)
		Expect(firstEven.GetValue(ctx)).To(Equal(4))
		r.Reset()

		c.Remove(4)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		v, found := firstEven.Find(ctx)
		Expect(found).To(BeTrue())
		Expect(v).To(Equal(6))
	})

	It("should count plain observers as invalidation only", func() {
		o := &testutils.InvalidationObserver{}
		firstEven.GetValue(ctx)
		firstEven.AddObserver(o)
		c.Add(2)
		Expect(o.Invalidations()).To(Equal([]bool{false}))
	})

	It("should compute at most once per input version", func() {
		calls := 0
		counting := reactive.Some(c, func(x int) bool {
			calls++
			return x > 1
		})
		Expect(counting.GetValue(ctx)).To(Equal(3))
		Expect(counting.GetValue(ctx)).To(Equal(3))
		Expect(calls).To(Equal(2))
	})
})

var _ = Describe("Some over sources that insert before the tail", func() {
	It("should pick up a match added to the left input of a union", func() {
		left, right := newInts(), newInts(5)
		first := reactive.Some(reactive.Union(left, right), positive)
		r := testutils.NewRecorder[int]()
		first.AddObserver(r)
		Expect(first.GetValue(ctx)).To(Equal(5))
		v0 := first.Version(ctx)

		left.Add(7)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		Expect(first.GetValue(ctx)).To(Equal(7))
		Expect(first.Version(ctx)).To(BeNumerically(">", v0))

		// a match after the current one keeps the value
		right.Add(9)
		Expect(first.GetValue(ctx)).To(Equal(7))
	})

	It("should pick up a match added to an earlier inner collection", func() {
		children := map[string]*reactive.Collection[int]{"a": newInts(1, 2), "b": newInts(3)}
		parents := reactive.NewCollection[string]()
		parents.AddRange("a", "b")
		flat := reactive.SelectMany(parents, func(p string) reactive.CollectionSource[int] {
			return children[p]
		})
		first := reactive.Some(flat, func(x int) bool { return x > 2 })
		r := testutils.NewRecorder[int]()
		first.AddObserver(r)
		Expect(first.GetValue(ctx)).To(Equal(3))
		v0 := first.Version(ctx)

		children["a"].Add(5)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		Expect(first.GetValue(ctx)).To(Equal(5))
		Expect(first.Version(ctx)).To(BeNumerically(">", v0))
	})

	It("should pick up a match replacing an earlier element of a flattened list", func() {
		words := reactive.NewCollection[string]()
		words.AddRange("ab", "c")
		chars := reactive.SelectManyList(words, func(w string) []string { return strings.Split(w, "") })
		first := reactive.Some(chars, func(s string) bool { return s >= "c" })
		Expect(first.GetValue(ctx)).To(Equal("c"))
		v0 := first.Version(ctx)

		words.Replace("ab", "d")
		Expect(first.GetValue(ctx)).To(Equal("d"))
		Expect(first.Version(ctx)).To(BeNumerically(">", v0))
	})

	It("should agree with a fresh evaluation after every update of a union", func() {
		left, right := newInts(), newInts()
		union := reactive.Union(left, right)
		first := reactive.SomeOrDefault(union, even, -1)
		first.AddObserver(testutils.NewRecorder[int]())

		steps := []func(){
			func() { right.Add(4) },
			func() { left.Add(3) },
			func() { left.Add(2) },
			func() { right.Add(6) },
			func() { left.Remove(2) },
			func() { left.Add(8) },
			func() { right.Remove(4) },
			func() { left.Replace(8, 10) },
			func() { left.Clear() },
		}
		value, version := first.GetValue(ctx), first.Version(ctx)
		for i, step := range steps {
			step()
			fresh := reactive.SomeOrDefault(reactive.Union(left, right), even, -1).GetValue(ctx)
			Expect(first.GetValue(ctx)).To(Equal(fresh), "step %d", i)
			if fresh != value {
				Expect(first.Version(ctx)).To(BeNumerically(">", version), "step %d", i)
			}
			value, version = fresh, first.Version(ctx)
		}
	})
})
