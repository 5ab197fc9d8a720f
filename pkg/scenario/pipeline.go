package scenario

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/go-logr/logr"

	"github.com/l7mp/incremental/pkg/reactive"
)

// Pipeline is the reactive graph built from a scenario.
type Pipeline struct {
	// Root is the mutable source collection.
	Root *reactive.Collection[int]
	// Variables are the reactive values functions can refer to.
	Variables map[string]*reactive.Value[int]
	// Output is the last collection stage of the chain, or the root for an empty chain.
	Output reactive.CollectionSource[int]
	// Groups is set when the chain ends in @groupby.
	Groups *reactive.GroupByOp[int, int, int]
	// Match is set when the chain ends in @some.
	Match *reactive.SomeOp[int]

	stages []reactive.Node
	log    logr.Logger
}

// Build creates the reactive graph for a scenario. The options are applied to the root collection
// and the variables; operators inherit the logger and the recorder from their input.
func Build(s *Scenario, log logr.Logger, opts ...reactive.Option) (*Pipeline, error) {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	log = log.WithName("scenario")
	opts = append([]reactive.Option{reactive.WithLogger(log)}, opts...)

	rootName := s.Source.Name
	if rootName == "" {
		rootName = "source"
	}
	p := &Pipeline{
		Root:      reactive.NewCollection[int](append(opts, reactive.WithName(rootName))...),
		Variables: map[string]*reactive.Value[int]{},
		stages:    []reactive.Node{},
		log:       log,
	}

	for _, name := range slices.Sorted(maps.Keys(s.Variables)) {
		p.Variables[name] = reactive.NewValue(s.Variables[name],
			append(opts, reactive.WithName("$"+name))...)
	}

	if len(s.Source.Items) > 0 {
		p.Root.AddRange(s.Source.Items...)
	}

	var src reactive.CollectionSource[int] = p.Root
	for i, stage := range s.Pipeline {
		next, err := p.addStage(src, stage)
		if err != nil {
			return nil, NewScenarioError(fmt.Errorf("pipeline stage %d (%s): %w", i, stage.Op(), err))
		}
		if next != nil {
			src = next
		}
	}
	p.Output = src

	log.V(2).Info("pipeline built", "name", s.Name, "stages", len(p.stages))

	return p, nil
}

func (p *Pipeline) addStage(src reactive.CollectionSource[int], stage Stage) (reactive.CollectionSource[int], error) {
	var opts []reactive.Option
	if stage.Name != "" {
		opts = append(opts, reactive.WithName(stage.Name))
	}

	var next reactive.CollectionSource[int]
	switch {
	case stage.Select != nil:
		proj, dynamic, err := parseProjection(*stage.Select, p.Variables)
		if err != nil {
			return nil, err
		}
		if dynamic {
			next = reactive.SelectContext(src, proj, opts...)
		} else {
			next = reactive.Select(src, func(x int) int { return proj(context.Background(), x) }, opts...)
		}

	case stage.Where != nil:
		pred, dynamic, err := parsePredicate(*stage.Where, p.Variables)
		if err != nil {
			return nil, err
		}
		if dynamic {
			next = reactive.WhereContext(src, pred, opts...)
		} else {
			next = reactive.Where(src, func(x int) bool { return pred(context.Background(), x) }, opts...)
		}

	case stage.SelectMany != nil:
		exp, err := parseExpander(*stage.SelectMany)
		if err != nil {
			return nil, err
		}
		next = reactive.SelectManyList(src, exp, opts...)

	case stage.Union != nil:
		next = reactive.Union[int](src, reactive.FromSlice(stage.Union), opts...)

	case stage.Materialize:
		next = reactive.Materialize(src, opts...)

	case stage.GroupBy != nil:
		key, dynamic, err := parseProjection(*stage.GroupBy, nil)
		if err != nil {
			return nil, err
		}
		if dynamic {
			return nil, fmt.Errorf("@groupby keys cannot refer to variables")
		}
		p.Groups = reactive.GroupBy(src, func(x int) int { return key(context.Background(), x) }, opts...)
		p.stages = append(p.stages, p.Groups)
		return nil, nil

	case stage.Some != nil:
		pred, dynamic, err := parsePredicate(*stage.Some, nil)
		if err != nil {
			return nil, err
		}
		if dynamic {
			return nil, fmt.Errorf("@some predicates cannot refer to variables")
		}
		p.Match = reactive.Some(src, func(x int) bool { return pred(context.Background(), x) }, opts...)
		p.stages = append(p.stages, p.Match)
		return nil, nil

	default:
		return nil, fmt.Errorf("no operator")
	}

	if next != src {
		p.stages = append(p.stages, next)
	}
	return next, nil
}

// Sink returns the last node of the graph.
func (p *Pipeline) Sink() reactive.Node {
	switch {
	case p.Groups != nil:
		return p.Groups
	case p.Match != nil:
		return p.Match
	default:
		return p.Output
	}
}

// Stages returns the operator nodes in chain order.
func (p *Pipeline) Stages() []reactive.Node { return slices.Clone(p.stages) }

// Apply performs a single mutation. Items missing from @remove or @replace are reported after
// the rest of the batch has been applied.
func (p *Pipeline) Apply(ctx context.Context, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.log.V(4).Info("applying step", "op", step.Op())

	var missing []int
	switch {
	case step.Add != nil:
		p.Root.AddRange(step.Add...)

	case step.Remove != nil:
		p.Root.Update(func(s *reactive.CollectionScope[int]) {
			for _, x := range step.Remove {
				if !s.Remove(x) {
					missing = append(missing, x)
				}
			}
		})

	case step.Replace != nil:
		p.Root.Update(func(s *reactive.CollectionScope[int]) {
			for _, pair := range step.Replace {
				if len(pair) != 2 {
					continue
				}
				if !s.Replace(pair[0], pair[1]) {
					missing = append(missing, pair[0])
				}
			}
		})

	case step.Clear:
		p.Root.Clear()

	case step.Set != nil:
		for _, name := range slices.Sorted(maps.Keys(step.Set)) {
			v, ok := p.Variables[name]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
			}
			v.Set(step.Set[name])
		}

	default:
		return fmt.Errorf("no mutation")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s: items not found: %v", step.Op(), missing)
	}
	return nil
}

// GroupSnapshot is the content of a single group.
type GroupSnapshot struct {
	Key   int   `json:"key"`
	Items []int `json:"items"`
}

// Snapshot is the state of the pipeline outputs at a point in time.
type Snapshot struct {
	Version int64           `json:"version"`
	Items   []int           `json:"items"`
	Groups  []GroupSnapshot `json:"groups,omitempty"`
	Match   *int            `json:"match,omitempty"`
}

// Snapshot reads the current outputs.
func (p *Pipeline) Snapshot(ctx context.Context) Snapshot {
	vv := p.Output.GetVersionedValue(ctx)
	ret := Snapshot{Version: vv.Version, Items: vv.Value.Slice()}

	if p.Groups != nil {
		ret.Groups = []GroupSnapshot{}
		for g := range p.Groups.GetValue(ctx).All() {
			ret.Groups = append(ret.Groups, GroupSnapshot{Key: g.Key(), Items: g.GetValue(ctx).Slice()})
		}
	}

	if p.Match != nil {
		if x, ok := p.Match.Find(ctx); ok {
			ret.Match = &x
		}
	}

	return ret
}
