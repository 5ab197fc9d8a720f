package reactive_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/incremental/internal/testutils"
	"github.com/l7mp/incremental/pkg/reactive"
)

func parity(x int) int { return x % 2 }

func keysOf[K any, V comparable](groups reactive.Items[*reactive.Group[K, V]]) []K {
	ret := []K{}
	for g := range groups.All() {
		ret = append(ret, g.Key())
	}
	return ret
}

var _ = Describe("GroupBy", func() {
	var c *reactive.Collection[int]
	var byParity *reactive.GroupByOp[int, int, int]

	BeforeEach(func() {
		c = newInts(1, 2, 3, 4)
		byParity = reactive.GroupBy(c, parity)
	})

	It("should partition the items by key in key order", func() {
		groups := byParity.GetValue(ctx)
		Expect(groups.IsMaterialized()).To(BeTrue())
		Expect(keysOf(groups)).To(Equal(ints(0, 1)))

		evens, err := byParity.GroupAt(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(2, 4)))

		odds, ok := byParity.Lookup(ctx, 1)
		Expect(ok).To(BeTrue())
		Expect(odds.GetValue(ctx).Slice()).To(Equal(ints(1, 3)))

		_, ok = byParity.Lookup(ctx, 7)
		Expect(ok).To(BeFalse())
		_, err = byParity.GroupAt(ctx, 2)
		Expect(err).To(MatchError(reactive.ErrOutOfRange))
	})

	It("should route changes within the same keys to the group", func() {
		evens, err := byParity.GroupAt(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		r := testutils.NewRecorder[int]()
		evens.AddObserver(r)
		rg := testutils.NewRecorder[*reactive.Group[int, int]]()
		byParity.AddObserver(rg)

		groups := byParity.GetVersionedValue(ctx)
		ev := evens.Version(ctx)

		c.Add(6)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.AddedEvent(6, ev+1)}))
		Expect(rg.Len()).To(BeZero())
		Expect(byParity.GetVersionedValue(ctx)).To(Equal(groups))
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(2, 4, 6)))

		c.Remove(2)
		c.Replace(4, 8)
		Expect(r.Events()[1:]).To(Equal([]testutils.Event[int]{
			testutils.RemovedEvent(2, ev+2),
			testutils.ReplacedEvent(4, 8, ev+3),
		}))
		Expect(evens.GetValue(ctx).Slice()).To(Equal(ints(6, 8)))
		Expect(rg.Len()).To(BeZero())
	})

	It("should move items between existing groups", func() {
		evens, _ := byParity.Lookup(ctx, 0)
		odds, _ := byParity.Lookup(ctx, 1)
		re, ro := testutils.NewRecorder[int](), testutils.NewRecorder[int]()
		evens.AddObserver(re)
		odds.AddObserver(ro)

		c.Replace(1, 10)
		Expect(re.Events()).To(HaveLen(1))
		testutils.MatchEvent(re.Events()[0], testutils.Added, 10, evens.Version(ctx))
		Expect(ro.Events()).To(HaveLen(1))
		testutils.MatchEvent(ro.Events()[0], testutils.Removed, 1, odds.Version(ctx))
	})

	It("should signal a repartitioning as breaking", func() {
		evens, _ := byParity.Lookup(ctx, 0)
		rg := testutils.NewRecorder[*reactive.Group[int, int]]()
		byParity.AddObserver(rg)
		re := testutils.NewRecorder[int]()
		evens.AddObserver(re)
		v := byParity.Version(ctx)

		// removing the last odd item drops the odd group
		odds, _ := byParity.Lookup(ctx, 1)
		ro := testutils.NewRecorder[int]()
		odds.AddObserver(ro)
		c.Remove(1)
		Expect(rg.Len()).To(BeZero())
		c.Remove(3)
		Expect(rg.Events()).To(Equal([]testutils.Event[*reactive.Group[int, int]]{
			testutils.InvalidatedEvent[*reactive.Group[int, int]](true),
		}))
		Expect(ro.Events()[len(ro.Events())-1]).To(Equal(testutils.InvalidatedEvent[int](true)))
		Expect(odds.IsDropped()).To(BeTrue())
		Expect(odds.GetValue(ctx).Len()).To(BeZero())
		Expect(keysOf(byParity.GetValue(ctx))).To(Equal(ints(0)))
		Expect(byParity.Version(ctx)).To(Equal(v + 1))

		// the even group survived and kept its identity
		Expect(re.Len()).To(BeZero())
		same, _ := byParity.Lookup(ctx, 0)
		Expect(same).To(BeIdenticalTo(evens))

		// a new key appears
		c.Add(5)
		Expect(rg.Events()).To(HaveLen(2))
		Expect(keysOf(byParity.GetValue(ctx))).To(Equal(ints(0, 1)))
		newOdds, _ := byParity.Lookup(ctx, 1)
		Expect(newOdds).NotTo(BeIdenticalTo(odds))
		Expect(newOdds.GetValue(ctx).Slice()).To(Equal(ints(5)))
	})

	It("should keep the group list stable for a pure membership change", func() {
		byParity.AddObserver(testutils.NewRecorder[*reactive.Group[int, int]]())
		before := byParity.GetVersionedValue(ctx)
		c.AddRange(6, 7)
		after := byParity.GetVersionedValue(ctx)
		Expect(after.Version).To(Equal(before.Version))
		Expect(after.Value.Slice()).To(Equal(before.Value.Slice()))
	})

	It("should support custom orders and element selectors", func() {
		words := reactive.NewCollection[string]()
		words.AddRange("apple", "Avocado", "banana", "blueberry", "cherry")
		byInitial := reactive.GroupByFunc(words,
			func(w string) string { return strings.ToLower(w[:1]) },
			func(w string) int { return len(w) },
			func(a, b string) int { return strings.Compare(b, a) }) // descending
		Expect(keysOf(byInitial.GetValue(ctx))).To(Equal([]string{"c", "b", "a"}))

		a, ok := byInitial.Lookup(ctx, "a")
		Expect(ok).To(BeTrue())
		Expect(a.GetValue(ctx).Slice()).To(Equal(ints(5, 7)))
	})

	It("should carry the side values of the source into the groups", func() {
		c.SetSideValues(diagnostics("stale"))
		evens, _ := byParity.Lookup(ctx, 0)
		vv := evens.GetVersionedValue(ctx)
		Expect(messages(vv.SideValues)).To(Equal([]string{"stale"}))

		c.SetSideValues(diagnostics("fresh"))
		after := evens.GetVersionedValue(ctx)
		Expect(messages(after.SideValues)).To(Equal([]string{"fresh"}))
		Expect(after.Version).To(Equal(vv.Version + 1))
		Expect(after.Value.Slice()).To(Equal(ints(2, 4)))
	})

	It("should activate the grouping when a group is observed", func() {
		evens, _ := byParity.GroupAt(ctx, 0)
		Expect(c.ObserverCount()).To(BeZero())
		evens.AddObserver(testutils.NewRecorder[int]())
		Expect(c.ObserverCount()).To(Equal(1))
	})
})
