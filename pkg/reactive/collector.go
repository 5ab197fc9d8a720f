package reactive

import (
	"context"
	"sync"

	"github.com/l7mp/incremental/pkg/sidevalue"
)

// Collector observes the sources a computation reads. Every source reports itself to the
// collector found in the context it is read with, so a function that reads other sources while
// computing a value automatically declares them as dependencies.
type Collector interface {
	// Record notes that source was read at the given version and carried the given side values.
	Record(source Observable, version int64, sideValues sidevalue.Values)
	// ReportSideValues attaches side values to the result being computed.
	ReportSideValues(sideValues sidevalue.Values)
}

type collectorKey struct{}

// WithCollector returns a context that installs c as the current collector. A nil collector
// disables collection for the returned context.
func WithCollector(ctx context.Context, c Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFrom returns the collector installed in the context, or a collector that drops
// everything if none is installed.
func CollectorFrom(ctx context.Context) Collector {
	if ctx == nil {
		return nopCollector{}
	}
	if c, ok := ctx.Value(collectorKey{}).(Collector); ok && c != nil {
		return c
	}
	return nopCollector{}
}

// ReportSideValue attaches a side value to the result currently being computed.
func ReportSideValue(ctx context.Context, v sidevalue.SideValue) {
	CollectorFrom(ctx).ReportSideValues(sidevalue.Of(v))
}

func withoutCollector(ctx context.Context) context.Context {
	if _, ok := CollectorFrom(ctx).(nopCollector); ok {
		return ctx
	}
	return WithCollector(ctx, nil)
}

type nopCollector struct{}

func (nopCollector) Record(Observable, int64, sidevalue.Values) {}
func (nopCollector) ReportSideValues(sidevalue.Values) {}

// Dependency is a source read by a tracked computation.
type Dependency struct {
	Source  Observable
	Version int64
}

// Recording is the result of Track.
type Recording struct {
	// Dependencies lists the sources read, in first-read order.
	Dependencies []Dependency
	// SideValues is the combination of the side values of everything read and reported.
	SideValues sidevalue.Values
}

// Track runs fn with a fresh collector and returns what it observed. Collectors installed by
// outer computations are not notified.
func Track(ctx context.Context, fn func(ctx context.Context)) Recording {
	r := &recordingCollector{index: map[Observable]int{}}
	fn(WithCollector(ctx, r))
	r.mu.Lock()
	defer r.mu.Unlock()
	return Recording{Dependencies: r.deps, SideValues: r.sideValues}
}

type recordingCollector struct {
	mu         sync.Mutex
	index      map[Observable]int
	deps       []Dependency
	sideValues sidevalue.Values
}

func (r *recordingCollector) Record(source Observable, version int64, sv sidevalue.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[source]; ok {
		r.deps[i].Version = version
	} else {
		r.index[source] = len(r.deps)
		r.deps = append(r.deps, Dependency{Source: source, Version: version})
	}
	r.sideValues = r.sideValues.Combine(sv)
}

func (r *recordingCollector) ReportSideValues(sv sidevalue.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sideValues = r.sideValues.Combine(sv)
}
