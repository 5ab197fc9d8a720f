package visualize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/emicklei/dot"
)

// Generator renders a graph.
type Generator interface {
	Generate(g *Graph) string
}

// GeneratorFunc adapts a plain function to a Generator.
type GeneratorFunc func(g *Graph) string

// Generate calls f.
func (f GeneratorFunc) Generate(g *Graph) string { return f(g) }

var generators = map[string]GeneratorFunc{
	"dot":     renderDot,
	"mermaid": renderMermaid,
}

// Formats lists the supported diagram formats in alphabetical order.
func Formats() []string {
	ret := make([]string, 0, len(generators))
	for name := range generators {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// NewGenerator returns the generator of a diagram format.
func NewGenerator(format string) (Generator, error) {
	gen, ok := generators[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown diagram format %q (supported: %s)",
			format, strings.Join(Formats(), ", "))
	}
	return gen, nil
}

func renderDot(g *Graph) string { return BuildDotGraph(g).String() }

// renderMermaid converts the DOT graph into a flowchart wrapped in a markdown code fence.
func renderMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("```mermaid\n")
	b.WriteString(dot.MermaidFlowchart(BuildDotGraph(g), dot.MermaidLeftToRight))
	b.WriteString("\n```\n")
	return b.String()
}
