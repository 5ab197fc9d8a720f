package reactive_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/incremental/pkg/reactive"
	"github.com/l7mp/incremental/pkg/sidevalue"
)

var _ = Describe("Registry", func() {
	var (
		owner *reactive.Collection[int]
		r     *reactive.Registry[int]
	)

	BeforeEach(func() {
		owner = newInts()
		r = reactive.NewRegistry[int](owner)
	})

	It("should resolve observer capabilities on subscription", func() {
		r.Add(reactive.ObserverFunc(func(*reactive.Subscription, bool) {}))
		r.Add(reactive.CollectionObserverFuncs[int]{})
		r.Add(reactive.ValueObserverFuncs[int]{})
		Expect(r.Len()).To(Equal(3))

		all, collections, values := 0, 0, 0
		for range r.All() {
			all++
		}
		for range r.CollectionObservers() {
			collections++
		}
		for range r.ValueObservers() {
			values++
		}
		Expect(all).To(Equal(3))
		Expect(collections).To(Equal(1))
		Expect(values).To(Equal(1))
	})

	It("should remove subscriptions", func() {
		o := reactive.CollectionObserverFuncs[int]{}
		first := r.Add(o)
		second := r.Add(reactive.ValueObserverFuncs[int]{})
		Expect(first.Source()).To(BeIdenticalTo(owner))
		Expect(first.Observer()).To(Equal(o))

		Expect(r.Remove(first)).To(BeTrue())
		Expect(first.IsDisposed()).To(BeTrue())
		Expect(r.Remove(first)).To(BeFalse())
		Expect(r.Remove(nil)).To(BeFalse())

		subs := []*reactive.Subscription{}
		for s := range r.All() {
			subs = append(subs, s)
		}
		Expect(subs).To(Equal([]*reactive.Subscription{second}))
	})

	It("should skip subscriptions disposed during iteration", func() {
		first := r.Add(reactive.CollectionObserverFuncs[int]{})
		second := r.Add(reactive.CollectionObserverFuncs[int]{})

		seen := 0
		for s := range r.CollectionObservers() {
			seen++
			if s == first {
				r.Remove(second)
			}
		}
		Expect(seen).To(Equal(1))
	})
})

var _ = Describe("Subscription", func() {
	It("should dispose once", func() {
		c := newInts()
		calls := 0
		s := c.AddObserver(reactive.ObserverFunc(func(*reactive.Subscription, bool) { calls++ }))
		Expect(c.ObserverCount()).To(Equal(1))

		s.Dispose()
		s.Dispose()
		Expect(s.IsDisposed()).To(BeTrue())
		Expect(c.ObserverCount()).To(Equal(0))

		c.Add(1)
		Expect(calls).To(Equal(0))
	})

	It("should tolerate a nil subscription", func() {
		var s *reactive.Subscription
		Expect(func() { s.Dispose() }).NotTo(Panic())
	})
})

var _ = Describe("Collector", func() {
	It("should record the sources read in first-read order", func() {
		a := newInts(1)
		b := reactive.NewValue(2)

		rec := reactive.Track(ctx, func(ctx context.Context) {
			b.GetValue(ctx)
			a.GetValue(ctx)
			b.GetValue(ctx)
		})
		Expect(rec.Dependencies).To(Equal([]reactive.Dependency{
			{Source: b, Version: 0},
			{Source: a, Version: 1},
		}))
	})

	It("should collect reported and inherited side values", func() {
		a := newInts(1)
		a.SetSideValues(diagnostics("from source"))

		rec := reactive.Track(ctx, func(ctx context.Context) {
			a.GetValue(ctx)
			reactive.ReportSideValue(ctx, sidevalue.NewDiagnostics(
				sidevalue.Diagnostic{Severity: sidevalue.SeverityWarning, Message: "reported"}))
		})
		Expect(messages(rec.SideValues)).To(ConsistOf("from source", "reported"))
	})

	It("should isolate nested recordings", func() {
		a, b := newInts(1), newInts(2)

		var inner reactive.Recording
		outer := reactive.Track(ctx, func(ctx context.Context) {
			inner = reactive.Track(ctx, func(ctx context.Context) { a.GetValue(ctx) })
			b.GetValue(ctx)
		})
		Expect(inner.Dependencies).To(HaveLen(1))
		Expect(inner.Dependencies[0].Source).To(BeIdenticalTo(a))
		Expect(outer.Dependencies).To(HaveLen(1))
		Expect(outer.Dependencies[0].Source).To(BeIdenticalTo(b))
	})

	It("should drop everything without a collector", func() {
		c := reactive.CollectorFrom(context.Background())
		Expect(func() {
			c.Record(newInts(), 1, sidevalue.Empty)
			c.ReportSideValues(diagnostics("dropped"))
			reactive.ReportSideValue(context.Background(), sidevalue.NewDiagnostics())
		}).NotTo(Panic())
	})
})

var _ = Describe("Items", func() {
	It("should copy materialized items", func() {
		list := []int{1, 2, 3}
		items := reactive.NewItems(list...)
		list[0] = 42
		Expect(items.IsMaterialized()).To(BeTrue())
		Expect(items.Slice()).To(Equal(ints(1, 2, 3)))
		Expect(items.Len()).To(Equal(3))
		Expect(items.String()).To(Equal("[1 2 3]"))
	})

	It("should re-evaluate lazy items on every enumeration", func() {
		calls := 0
		items := reactive.LazyItems(func(yield func(int) bool) {
			calls++
			for _, x := range []int{1, 2} {
				if !yield(x) {
					return
				}
			}
		})
		Expect(items.IsMaterialized()).To(BeFalse())
		Expect(items.Slice()).To(Equal(ints(1, 2)))
		Expect(items.Len()).To(Equal(2))
		Expect(calls).To(Equal(2))

		m := items.Materialize()
		Expect(m.IsMaterialized()).To(BeTrue())
		Expect(calls).To(Equal(3))
		Expect(m.Slice()).To(Equal(ints(1, 2)))
		Expect(calls).To(Equal(3))
	})

	It("should treat the zero value as empty", func() {
		var items reactive.Items[int]
		Expect(items.Slice()).To(BeEmpty())
		Expect(items.Len()).To(BeZero())
	})
})

var _ = Describe("Errors", func() {
	It("should wrap the sentinels", func() {
		err := reactive.NewNotSupportedError("added", "some-1")
		Expect(errors.Is(err, reactive.ErrNotSupported)).To(BeTrue())
		var nse *reactive.NotSupportedError
		Expect(errors.As(err, &nse)).To(BeTrue())
		Expect(nse.Operation).To(Equal("added"))

		err = reactive.NewOutOfRangeError("groupby-1", 3, 2)
		Expect(errors.Is(err, reactive.ErrOutOfRange)).To(BeTrue())
	})
})
