package scenario

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/incremental/pkg/reactive"
)

// EventKind is the type of a recorded notification.
type EventKind string

const (
	EventAdded       EventKind = "added"
	EventRemoved     EventKind = "removed"
	EventReplaced    EventKind = "replaced"
	EventChanged     EventKind = "changed"
	EventInvalidated EventKind = "invalidated"
)

// Event is a notification received from one of the pipeline outputs.
type Event struct {
	Node     string    `json:"node"`
	Kind     EventKind `json:"kind"`
	Item     string    `json:"item,omitempty"`
	Old      string    `json:"old,omitempty"`
	Version  int64     `json:"version,omitempty"`
	Breaking bool      `json:"breaking,omitempty"`
}

// String returns a one-line representation.
func (e Event) String() string {
	switch e.Kind {
	case EventInvalidated:
		return fmt.Sprintf("%s: invalidated (breaking=%t)", e.Node, e.Breaking)
	case EventReplaced, EventChanged:
		return fmt.Sprintf("%s: %s %s -> %s @v%d", e.Node, e.Kind, e.Old, e.Item, e.Version)
	default:
		return fmt.Sprintf("%s: %s %s @v%d", e.Node, e.Kind, e.Item, e.Version)
	}
}

// Watcher subscribes to the outputs of a pipeline and forwards every notification to a handler.
// Groups created by a @groupby stage are picked up by Refresh.
type Watcher struct {
	pipeline *Pipeline
	handler  func(Event)
	subs     []*reactive.Subscription
	groups   map[*reactive.Group[int, int]]*reactive.Subscription
	mu       sync.Mutex
}

// Watch starts watching the outputs of the pipeline.
func (p *Pipeline) Watch(ctx context.Context, handler func(Event)) *Watcher {
	w := &Watcher{
		pipeline: p,
		handler:  handler,
		subs:     []*reactive.Subscription{},
		groups:   map[*reactive.Group[int, int]]*reactive.Subscription{},
	}

	w.add(p.Output.AddObserver(itemObserver(p.Output.Name(), w.emit)))

	if p.Groups != nil {
		name := p.Groups.Name()
		w.add(p.Groups.AddObserver(reactive.CollectionObserverFuncs[*reactive.Group[int, int]]{
			InvalidatedFunc: func(_ *reactive.Subscription, breaking bool) {
				w.emit(Event{Node: name, Kind: EventInvalidated, Breaking: breaking})
			},
			AddedFunc: func(_ *reactive.Subscription, g *reactive.Group[int, int], version int64) {
				w.emit(Event{Node: name, Kind: EventAdded, Item: groupLabel(g), Version: version})
			},
			RemovedFunc: func(_ *reactive.Subscription, g *reactive.Group[int, int], version int64) {
				w.emit(Event{Node: name, Kind: EventRemoved, Item: groupLabel(g), Version: version})
			},
			ReplacedFunc: func(_ *reactive.Subscription, o, g *reactive.Group[int, int], version int64) {
				w.emit(Event{Node: name, Kind: EventReplaced, Old: groupLabel(o), Item: groupLabel(g), Version: version})
			},
		}))
		w.Refresh(ctx)
	}

	if p.Match != nil {
		name := p.Match.Name()
		w.add(p.Match.AddObserver(reactive.ValueObserverFuncs[int]{
			InvalidatedFunc: func(_ *reactive.Subscription, breaking bool) {
				w.emit(Event{Node: name, Kind: EventInvalidated, Breaking: breaking})
			},
			ChangedFunc: func(_ *reactive.Subscription, oldValue, newValue int, version int64) {
				w.emit(Event{Node: name, Kind: EventChanged, Old: strconv.Itoa(oldValue),
					Item: strconv.Itoa(newValue), Version: version})
			},
		}))
	}

	return w
}

func (w *Watcher) add(s *reactive.Subscription) {
	if s != nil {
		w.subs = append(w.subs, s)
	}
}

func (w *Watcher) emit(e Event) {
	if w.handler != nil {
		w.handler(e)
	}
}

// Refresh subscribes to new groups and releases dropped ones.
func (w *Watcher) Refresh(ctx context.Context) {
	if w.pipeline.Groups == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for g, s := range w.groups {
		if g.IsDropped() {
			s.Dispose()
			delete(w.groups, g)
		}
	}

	for g := range w.pipeline.Groups.GetValue(ctx).All() {
		if _, ok := w.groups[g]; ok {
			continue
		}
		w.groups[g] = g.AddObserver(itemObserver(g.Name(), w.emit))
	}
}

// Close releases every subscription.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range w.subs {
		s.Dispose()
	}
	for g, s := range w.groups {
		s.Dispose()
		delete(w.groups, g)
	}
	w.subs = nil
}

func itemObserver(name string, emit func(Event)) reactive.Observer {
	return reactive.CollectionObserverFuncs[int]{
		InvalidatedFunc: func(_ *reactive.Subscription, breaking bool) {
			emit(Event{Node: name, Kind: EventInvalidated, Breaking: breaking})
		},
		AddedFunc: func(_ *reactive.Subscription, item int, version int64) {
			emit(Event{Node: name, Kind: EventAdded, Item: strconv.Itoa(item), Version: version})
		},
		RemovedFunc: func(_ *reactive.Subscription, item int, version int64) {
			emit(Event{Node: name, Kind: EventRemoved, Item: strconv.Itoa(item), Version: version})
		},
		ReplacedFunc: func(_ *reactive.Subscription, oldItem, newItem int, version int64) {
			emit(Event{Node: name, Kind: EventReplaced, Old: strconv.Itoa(oldItem),
				Item: strconv.Itoa(newItem), Version: version})
		},
	}
}

func groupLabel(g *reactive.Group[int, int]) string { return "group " + strconv.Itoa(g.Key()) }

// StepReport is the outcome of a single script step.
type StepReport struct {
	Index    int      `json:"index"`
	Op       string   `json:"op"`
	Events   []Event  `json:"events"`
	Snapshot Snapshot `json:"snapshot"`
}

// Report is the outcome of a scenario run.
type Report struct {
	Name    string       `json:"name,omitempty"`
	Initial Snapshot     `json:"initial"`
	Steps   []StepReport `json:"steps"`
}

// Run builds the pipeline of a scenario, watches its outputs and replays the script, recording the
// notifications and a snapshot after every step. The pipeline is returned for inspection even when
// a step fails.
func Run(ctx context.Context, s *Scenario, log logr.Logger, opts ...reactive.Option) (*Pipeline, *Report, error) {
	p, err := Build(s, log, opts...)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu     sync.Mutex
		events []Event
	)
	w := p.Watch(ctx, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer w.Close()

	report := &Report{Name: s.Name, Initial: p.Snapshot(ctx), Steps: []StepReport{}}

	for i, step := range s.Script {
		mu.Lock()
		events = []Event{}
		mu.Unlock()

		if err := p.Apply(ctx, step); err != nil {
			return p, report, NewStepError(i, err)
		}

		snapshot := p.Snapshot(ctx)
		w.Refresh(ctx)

		mu.Lock()
		report.Steps = append(report.Steps, StepReport{Index: i, Op: step.Op(), Events: events, Snapshot: snapshot})
		mu.Unlock()

		p.log.V(4).Info("step applied", "index", i, "op", step.Op(), "events", len(events))
	}

	return p, report, nil
}
