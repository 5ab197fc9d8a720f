package reactive_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/incremental/internal/testutils"
	"github.com/l7mp/incremental/pkg/reactive"
	"github.com/l7mp/incremental/pkg/sidevalue"
)

var _ = Describe("Collection", func() {
	var c *reactive.Collection[int]

	BeforeEach(func() {
		c = newInts()
	})

	It("should start empty at version zero", func() {
		vv := c.GetVersionedValue(ctx)
		Expect(vv.Value.Slice()).To(BeEmpty())
		Expect(vv.Value.IsMaterialized()).To(BeTrue())
		Expect(vv.Version).To(Equal(int64(0)))
		Expect(c.IsImmutable()).To(BeFalse())
	})

	It("should bump the version once per mutation", func() {
		c.Add(1)
		Expect(c.Version(ctx)).To(Equal(int64(1)))
		c.AddRange(2, 3, 4)
		Expect(c.Version(ctx)).To(Equal(int64(2)))
		Expect(c.Remove(2)).To(BeTrue())
		Expect(c.Version(ctx)).To(Equal(int64(3)))
		Expect(c.Remove(42)).To(BeFalse())
		Expect(c.Version(ctx)).To(Equal(int64(3)))
		Expect(c.GetValue(ctx).Slice()).To(Equal(ints(1, 3, 4)))
	})

	It("should hand out immutable snapshots", func() {
		c.AddRange(1, 2)
		snapshot := c.GetValue(ctx)
		c.Add(3)
		c.Replace(1, 10)
		Expect(snapshot.Slice()).To(Equal(ints(1, 2)))
		Expect(c.GetValue(ctx).Slice()).To(Equal(ints(10, 2, 3)))
	})

	It("should notify observers with the new version", func() {
		r := testutils.NewRecorder[int]()
		sub := c.AddObserver(r)
		Expect(sub).NotTo(BeNil())

		c.Add(1)
		c.Replace(1, 2)
		c.Remove(2)
		Expect(r.Events()).To(Equal([]testutils.Event[int]{
			testutils.AddedEvent(1, 1),
			testutils.ReplacedEvent(1, 2, 2),
			testutils.RemovedEvent(2, 3),
		}))

		sub.Dispose()
		sub.Dispose()
		Expect(sub.IsDisposed()).To(BeTrue())
		c.Add(5)
		Expect(r.Len()).To(Equal(3))
	})

	It("should batch updates under a single version", func() {
		r := testutils.NewRecorder[int]()
		c.AddObserver(r)

		c.Update(func(s *reactive.CollectionScope[int]) {
			s.Add(1)
			s.Add(2)
			s.Remove(1)
			Expect(s.Items()).To(Equal(ints(2)))
		})
		Expect(c.Version(ctx)).To(Equal(int64(1)))
		Expect(r.Events()).To(Equal([]testutils.Event[int]{
			testutils.AddedEvent(1, 1),
			testutils.AddedEvent(2, 1),
			testutils.RemovedEvent(1, 1),
		}))
	})

	It("should not publish an update that changed nothing", func() {
		r := testutils.NewRecorder[int]()
		c.AddObserver(r)
		c.Update(func(s *reactive.CollectionScope[int]) { s.Remove(7) })
		c.Clear()
		Expect(c.Version(ctx)).To(Equal(int64(0)))
		Expect(r.Len()).To(BeZero())
	})

	It("should signal clear as breaking", func() {
		c.AddRange(1, 2)
		r := testutils.NewRecorder[int]()
		c.AddObserver(r)
		c.Clear()
		Expect(r.Events()).To(Equal([]testutils.Event[int]{testutils.InvalidatedEvent[int](true)}))
		Expect(c.GetValue(ctx).Len()).To(BeZero())
	})

	It("should invalidate observers that cannot consume deltas", func() {
		o := &testutils.InvalidationObserver{}
		c.AddObserver(o)
		c.Add(1)
		c.AddRange(2, 3)
		Expect(o.Invalidations()).To(Equal([]bool{false, false}))
	})

	It("should notify observers in subscription order", func() {
		order := []string{}
		for _, name := range []string{"a", "b", "c"} {
			c.AddObserver(reactive.ObserverFunc(func(*reactive.Subscription, bool) {
				order = append(order, name)
			}))
		}
		c.Add(1)
		Expect(order).To(Equal([]string{"a", "b", "c"}))
	})

	It("should let observers unsubscribe while being notified", func() {
		calls := 0
		var sub *reactive.Subscription
		sub = c.AddObserver(reactive.ObserverFunc(func(s *reactive.Subscription, _ bool) {
			calls++
			s.Dispose()
		}))
		c.Add(1)
		c.Add(2)
		Expect(calls).To(Equal(1))
		Expect(sub.IsDisposed()).To(BeTrue())
		Expect(c.ObserverCount()).To(BeZero())
	})

	It("should reject a scope used after close", func() {
		var saved *reactive.CollectionScope[int]
		c.Update(func(s *reactive.CollectionScope[int]) { saved = s })
		Expect(func() { saved.Add(1) }).To(PanicWith(MatchError(reactive.ErrScopeClosed)))
	})

	It("should panic when an observer mutates the collection it is notified by", func() {
		c.AddObserver(reactive.CollectionObserverFuncs[int]{
			AddedFunc: func(_ *reactive.Subscription, item int, _ int64) {
				if item == 1 {
					c.Add(2)
				}
			},
		})
		Expect(func() { c.Add(1) }).To(PanicWith(MatchError(reactive.ErrReentrant)))

		// the collection stays usable
		c.Add(3)
		Expect(c.GetValue(ctx).Slice()).To(Equal(ints(1, 2, 3)))
	})

	It("should carry side values", func() {
		c.SetSideValues(sidevalue.Of(sidevalue.NewDiagnostics(sidevalue.Diagnostic{
			Severity: sidevalue.SeverityWarning, Message: "stale",
		})))
		vv := c.GetVersionedValue(ctx)
		Expect(vv.Version).To(Equal(int64(1)))
		d, ok := sidevalue.Get[sidevalue.Diagnostics](vv.SideValues)
		Expect(ok).To(BeTrue())
		Expect(d.Len()).To(Equal(1))
	})

	It("should serialize concurrent writers", func() {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 50 {
					c.Add(i*100 + j)
				}
			}()
		}
		wg.Wait()
		Expect(c.GetValue(ctx).Len()).To(Equal(400))
		Expect(c.Version(ctx)).To(Equal(int64(400)))
	})
})

var _ = Describe("Value", func() {
	It("should publish value changes", func() {
		v := reactive.NewValue("a")
		r := testutils.NewRecorder[string]()
		v.AddObserver(r)

		Expect(v.Set("a")).To(BeFalse())
		Expect(v.Set("b")).To(BeTrue())
		Expect(v.GetVersionedValue(ctx).Version).To(Equal(int64(1)))
		Expect(r.Events()).To(Equal([]testutils.Event[string]{testutils.ChangedEvent("a", "b", 1)}))
	})
})

var _ = Describe("Constant", func() {
	It("should never change", func() {
		c := reactive.FromSlice([]int{1, 2})
		Expect(c.IsImmutable()).To(BeTrue())
		Expect(c.AddObserver(testutils.NewRecorder[int]())).To(BeNil())
		Expect(c.GetVersionedValue(ctx).Version).To(BeZero())
		Expect(c.GetValue(ctx).Slice()).To(Equal(ints(1, 2)))

		sel := reactive.Select[int, int](c, func(x int) int { return x + 1 })
		Expect(sel.IsImmutable()).To(BeTrue())
		Expect(sel.GetValue(ctx).Slice()).To(Equal(ints(2, 3)))
	})
})
