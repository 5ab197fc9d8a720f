// Package scenario loads declarative reactive pipelines over integer collections from YAML and
// replays mutation scripts against them.
//
// A scenario declares a root collection, an optional set of reactive variables, a chain of
// operators and a script:
//
//	name: even-squares
//	source:
//	  name: numbers
//	  items: [1, 2, 3, 4]
//	variables:
//	  threshold: 2
//	pipeline:
//	  - "@where": "gt:$threshold"
//	  - "@select": square
//	  - "@groupby": "mod:3"
//	script:
//	  - "@add": [5, 6]
//	  - "@set": {threshold: 4}
//
// Operators: @select (projection), @where (predicate), @selectmany (expander), @union (list of
// constant items), @materialize. The chain may be closed by a single @groupby (projection used as
// the key) or @some (predicate) stage. Steps: @add, @remove, @replace ([old, new] pairs), @clear,
// @set (variable assignments).
package scenario

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Scenario is a declarative pipeline and the mutations to replay against it.
type Scenario struct {
	// Name is a human readable name.
	Name string `json:"name,omitempty"`
	// Source is the root collection.
	Source Source `json:"source"`
	// Variables declares reactive integer values that functions can refer to as "$name".
	Variables map[string]int `json:"variables,omitempty"`
	// Pipeline is the operator chain applied to the source.
	Pipeline []Stage `json:"pipeline,omitempty"`
	// Script is the list of mutations.
	Script []Step `json:"script,omitempty"`
}

// Source is the root collection of a scenario.
type Source struct {
	Name  string `json:"name,omitempty"`
	Items []int  `json:"items,omitempty"`
}

// Stage is a single operator. Exactly one field must be set.
type Stage struct {
	Select      *string `json:"@select,omitempty"`
	Where       *string `json:"@where,omitempty"`
	SelectMany  *string `json:"@selectmany,omitempty"`
	Union       []int   `json:"@union,omitempty"`
	Materialize bool    `json:"@materialize,omitempty"`
	GroupBy     *string `json:"@groupby,omitempty"`
	Some        *string `json:"@some,omitempty"`
	// Name optionally names the resulting node.
	Name string `json:"name,omitempty"`
}

// Op returns the operator name of the stage.
func (s Stage) Op() string {
	ops := s.ops()
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

func (s Stage) ops() []string {
	ret := []string{}
	if s.Select != nil {
		ret = append(ret, "@select")
	}
	if s.Where != nil {
		ret = append(ret, "@where")
	}
	if s.SelectMany != nil {
		ret = append(ret, "@selectmany")
	}
	if s.Union != nil {
		ret = append(ret, "@union")
	}
	if s.Materialize {
		ret = append(ret, "@materialize")
	}
	if s.GroupBy != nil {
		ret = append(ret, "@groupby")
	}
	if s.Some != nil {
		ret = append(ret, "@some")
	}
	return ret
}

func (s Stage) terminal() bool { return s.GroupBy != nil || s.Some != nil }

// Step is a single mutation. Exactly one field must be set.
type Step struct {
	Add     []int          `json:"@add,omitempty"`
	Remove  []int          `json:"@remove,omitempty"`
	Replace [][]int        `json:"@replace,omitempty"`
	Clear   bool           `json:"@clear,omitempty"`
	Set     map[string]int `json:"@set,omitempty"`
}

// Op returns the name of the mutation.
func (s Step) Op() string {
	ops := s.ops()
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

func (s Step) ops() []string {
	ret := []string{}
	if s.Add != nil {
		ret = append(ret, "@add")
	}
	if s.Remove != nil {
		ret = append(ret, "@remove")
	}
	if s.Replace != nil {
		ret = append(ret, "@replace")
	}
	if s.Clear {
		ret = append(ret, "@clear")
	}
	if s.Set != nil {
		ret = append(ret, "@set")
	}
	return ret
}

// Load reads a scenario from a file.
func Load(file string) (*Scenario, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(b)
}

// Parse parses and validates a YAML (or JSON) scenario.
func Parse(b []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(b, &s); err != nil {
		return nil, NewScenarioError(fmt.Errorf("failed to parse scenario: %w", err))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the structure of the scenario. Function expressions are checked when the
// pipeline is built.
func (s *Scenario) Validate() error {
	for i, stage := range s.Pipeline {
		switch ops := stage.ops(); len(ops) {
		case 0:
			return NewScenarioError(fmt.Errorf("pipeline stage %d: no operator", i))
		case 1:
		default:
			return NewScenarioError(fmt.Errorf("pipeline stage %d: multiple operators %v", i, ops))
		}
		if stage.terminal() && i != len(s.Pipeline)-1 {
			return NewScenarioError(fmt.Errorf("pipeline stage %d: %s must be the last stage",
				i, stage.Op()))
		}
	}

	for i, step := range s.Script {
		switch ops := step.ops(); len(ops) {
		case 0:
			return NewScenarioError(fmt.Errorf("script step %d: no mutation", i))
		case 1:
		default:
			return NewScenarioError(fmt.Errorf("script step %d: multiple mutations %v", i, ops))
		}
		for _, pair := range step.Replace {
			if len(pair) != 2 {
				return NewScenarioError(fmt.Errorf("script step %d: @replace expects [old, new] pairs", i))
			}
		}
		for name := range step.Set {
			if _, ok := s.Variables[name]; !ok {
				return NewScenarioError(fmt.Errorf("script step %d: %w: %q", i, ErrUnknownVariable, name))
			}
		}
	}

	return nil
}

// String returns a short description.
func (s *Scenario) String() string {
	name := s.Name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("scenario %s: %d stages, %d steps", name, len(s.Pipeline), len(s.Script))
}
