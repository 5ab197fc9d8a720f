package reactive

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/api/equality"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// node is the evaluation core of an operator. The value is computed lazily on read and memoized
// per input version: reading a node whose inputs did not change since the last evaluation returns
// the cached value without running the computation. Once the node has observers it subscribes to
// its inputs, and from then on the cache is trusted until a notification marks it dirty.
//
// Lock order is always downstream to upstream: a node may read its inputs while holding its own
// lock but never the other way around.
type node[TOut, T any] struct {
	base[T]

	// compute produces the value from the inputs, and returns the input versions it used.
	compute func(ctx context.Context) (TOut, sidevalue.Values, []int64)
	equal   func(a, b TOut) bool
	// upstreams holds the observer to subscribe to each input with. A nil entry subscribes with
	// an observer that invalidates the node.
	upstreams []Observer
	// extra reports whether sources other than the inputs and the ad hoc dependencies changed,
	// and whether these changes have already been announced to the observers.
	extra      func(ctx context.Context) (stale, covered bool)
	onActivate func()
	onDispose  func()

	materialized bool
	immutable    bool

	value         TOut
	sideValues    sidevalue.Values
	evaluated     bool
	dirty         bool
	active        bool
	inputVersions []int64
	announced     []int64
	upstreamSubs  []*Subscription
	adHoc         map[Observable]*dependency
	adHocPrev     map[Observable]*dependency
}

type dependency struct {
	sub     *Subscription
	version int64
}

func (n *node[TOut, T]) initNode(self Observable, kind string, inputs []Observable, scalar bool, opts []Option) {
	n.init(self, kind, inputs, scalar, opts)
	n.upstreams = make([]Observer, len(inputs))
	n.announced = make([]int64, len(inputs))
	n.upstreamSubs = make([]*Subscription, len(inputs))
	n.adHoc = map[Observable]*dependency{}
	n.equal = defaultEqual[TOut]
	n.dirty = true
	n.immutable = true
	for _, in := range inputs {
		if !in.IsImmutable() {
			n.immutable = false
		}
	}
}

// AddObserver subscribes an observer and activates the node.
func (n *node[TOut, T]) AddObserver(o Observer) *Subscription {
	if n.immutable {
		return nil
	}
	s := n.observers.Add(o)
	n.activate()
	return s
}

// IsMaterialized reports whether the values of the node are held in memory.
func (n *node[TOut, T]) IsMaterialized() bool { return n.materialized }

// IsImmutable reports whether the node can never change.
func (n *node[TOut, T]) IsImmutable() bool { return n.immutable }

// GetValue returns the current value.
func (n *node[TOut, T]) GetValue(ctx context.Context) TOut {
	return n.GetVersionedValue(ctx).Value
}

// Version returns the current version.
func (n *node[TOut, T]) Version(ctx context.Context) int64 {
	return n.GetVersionedValue(ctx).Version
}

// GetVersionedValue returns the current value, evaluating the node if needed.
func (n *node[TOut, T]) GetVersionedValue(ctx context.Context) VersionedValue[TOut] {
	vv := n.snapshot(ctx)
	CollectorFrom(ctx).Record(n.self, vv.Version, vv.SideValues)
	return vv
}

func (n *node[TOut, T]) snapshot(ctx context.Context) VersionedValue[TOut] {
	n.mu.Lock()
	defer n.unlock()
	n.refreshLocked(ctx)
	return VersionedValue[TOut]{Value: n.value, Version: n.version, SideValues: n.sideValues}
}

// ensure brings the cached value up to date without reporting the read.
func (n *node[TOut, T]) ensure(ctx context.Context) {
	n.mu.Lock()
	defer n.unlock()
	n.refreshLocked(ctx)
}

func (n *node[TOut, T]) unlock() {
	deferred := n.takeDeferred()
	n.mu.Unlock()
	runAll(deferred)
}

// Dispose unsubscribes the node from everything it observes. The node still evaluates on read,
// and re-activates when a new observer subscribes.
func (n *node[TOut, T]) Dispose() {
	n.mu.Lock()
	defer n.unlock()

	for i, s := range n.upstreamSubs {
		s.Dispose()
		n.upstreamSubs[i] = nil
	}
	for _, d := range n.adHoc {
		d.sub.Dispose()
		d.sub = nil
	}
	if n.onDispose != nil {
		n.onDispose()
	}
	n.active = false
	n.dirty = true
	n.log.V(2).Info("disposed")
}

func (n *node[TOut, T]) activate() {
	n.mu.Lock()
	defer n.unlock()
	n.activateLocked()
}

func (n *node[TOut, T]) activateLocked() {
	if n.active {
		return
	}
	n.active = true
	n.dirty = true

	for i, in := range n.inputs {
		o := n.upstreams[i]
		if o == nil {
			o = ObserverFunc(n.onUpstreamInvalidated)
		}
		n.upstreamSubs[i] = in.AddObserver(o)
	}
	for src, d := range n.adHoc {
		d.sub = src.AddObserver(ObserverFunc(n.onDependencyInvalidated))
	}
	if n.onActivate != nil {
		n.onActivate()
	}
	n.log.V(2).Info("activated")

	// revalidate so that changes made before the subscriptions existed are not missed
	if n.evaluated {
		n.refreshLocked(context.Background())
	}
}

func (n *node[TOut, T]) refreshLocked(ctx context.Context) {
	if n.active && !n.dirty && n.evaluated {
		return
	}

	inCtx := withoutCollector(ctx)
	stale := !n.evaluated
	for i, in := range n.inputs {
		if v := in.Version(inCtx); n.evaluated && v != n.inputVersions[i] {
			stale = true
		}
	}
	extraStale, extraCovered := false, true
	if n.extra != nil {
		extraStale, extraCovered = n.extra(inCtx)
	}
	adHocStale := n.adHocStaleLocked(inCtx)
	if !stale && !extraStale && !adHocStale {
		n.dirty = false
		return
	}

	col := &nodeCollector{follow: n.followLocked}
	n.adHocPrev, n.adHoc = n.adHoc, map[Observable]*dependency{}
	value, sv, used := n.compute(WithCollector(ctx, col))
	for src, d := range n.adHocPrev {
		if _, ok := n.adHoc[src]; !ok {
			d.sub.Dispose()
		}
	}
	n.adHocPrev = nil
	sv = sv.Combine(col.result())

	covered := n.evaluated && extraCovered && !adHocStale
	if covered {
		for i, v := range used {
			if v != n.inputVersions[i] && v > n.announced[i] {
				covered = false
			}
		}
	}
	changed := !n.evaluated || !n.equal(n.value, value) ||
		!equality.Semantic.DeepEqual(n.sideValues, sv)
	if changed && !covered {
		n.version++
	}

	n.value, n.sideValues, n.inputVersions = value, sv, used
	n.evaluated, n.dirty = true, false

	n.env.recorder.Evaluated(n.kind, changed)
	n.log.V(5).Info("evaluated", "version", n.version, "changed", changed, "announced", covered,
		"inputs", used)
}

func (n *node[TOut, T]) adHocStaleLocked(ctx context.Context) bool {
	for src, d := range n.adHoc {
		if src.Version(ctx) != d.version {
			return true
		}
	}
	return false
}

// followLocked registers an ad hoc dependency discovered while running a user function.
func (n *node[TOut, T]) followLocked(src Observable, version int64) {
	if src == n.self {
		return
	}
	for _, in := range n.inputs {
		if src == in {
			return
		}
	}

	if d, ok := n.adHoc[src]; ok {
		d.version = version
		return
	}
	if d, ok := n.adHocPrev[src]; ok {
		d.version = version
		n.adHoc[src] = d
		return
	}

	d := &dependency{version: version}
	if n.active {
		d.sub = src.AddObserver(ObserverFunc(n.onDependencyInvalidated))
	}
	n.adHoc[src] = d
	n.log.V(4).Info("tracking dependency", "source", src.Name(), "version", version)
}

// announceLocked records that the observers have been told about the changes of input i up to
// the given version, so re-evaluating from that version must not bump the version again.
func (n *node[TOut, T]) announceLocked(i int, version int64) {
	if version > n.announced[i] {
		n.announced[i] = version
	}
}

// beginIncremental opens a scope for processing an incremental update of input i.
func (n *node[TOut, T]) beginIncremental(i int, version int64) *UpdateScope[T] {
	s := n.beginUpdate()
	n.dirty = true
	n.announceLocked(i, version)
	return s
}

// invalidate propagates an invalidation to the observers.
func (n *node[TOut, T]) invalidate(breaking bool) {
	s := n.beginUpdate()
	defer s.Close()
	n.dirty = true
	s.SignalChange(breaking)
}

func (n *node[TOut, T]) onUpstreamInvalidated(s *Subscription, breaking bool) {
	if s.IsDisposed() {
		return
	}
	n.invalidate(breaking)
}

func (n *node[TOut, T]) onDependencyInvalidated(s *Subscription, _ bool) {
	if s.IsDisposed() {
		return
	}
	n.invalidate(true)
}

// callContext returns a context for running user functions outside of a full evaluation. The
// sources read are tracked as ad hoc dependencies. Must be called with the lock held.
func (n *node[TOut, T]) callContext() context.Context {
	return WithCollector(context.Background(), &nodeCollector{follow: n.followLocked})
}

type nodeCollector struct {
	mu         sync.Mutex
	follow     func(src Observable, version int64)
	sideValues sidevalue.Values
}

func (c *nodeCollector) Record(src Observable, version int64, sv sidevalue.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.follow(src, version)
	c.sideValues = c.sideValues.Combine(sv)
}

func (c *nodeCollector) ReportSideValues(sv sidevalue.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sideValues = c.sideValues.Combine(sv)
}

func (c *nodeCollector) result() sidevalue.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sideValues
}
