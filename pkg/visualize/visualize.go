// Package visualize renders reactive pipelines as diagrams.
package visualize

import (
	"context"
	"fmt"
	"strings"

	"github.com/emicklei/dot"

	"github.com/l7mp/incremental/internal/dag"
	"github.com/l7mp/incremental/pkg/reactive"
)

// Graph represents the visualization graph of a pipeline.
type Graph struct {
	Title string
	Nodes []NodeInfo
	Edges []Edge
}

// NodeInfo represents a single pipeline stage in the graph.
type NodeInfo struct {
	ID           string
	Name         string
	Kind         string
	Version      int64
	Observers    int
	Materialized bool
	Immutable    bool
	Root         bool
	Sink         bool
	// Level is the length of the longest path from a root.
	Level int
}

// Edge connects an input to the stage reading it.
type Edge struct {
	From, To string
}

type versioned interface {
	Version(ctx context.Context) int64
}

type observable interface {
	ObserverCount() int
}

type flagged interface {
	IsMaterialized() bool
	IsImmutable() bool
}

// BuildGraph walks the pipeline from the given sinks down to the roots. Reading versions
// evaluates the stages, so the graph shows the current state of the pipeline.
func BuildGraph(ctx context.Context, title string, sinks ...reactive.Node) *Graph {
	g := &Graph{Title: title, Nodes: []NodeInfo{}, Edges: []Edge{}}
	ids := map[reactive.Node]string{}
	consumed := map[string]bool{}

	var visit func(n reactive.Node) string
	visit = func(n reactive.Node) string {
		if id, ok := ids[n]; ok {
			return id
		}
		id := fmt.Sprintf("n%d", len(ids))
		ids[n] = id

		info := NodeInfo{ID: id, Name: n.Name(), Kind: n.Kind(), Root: len(n.Inputs()) == 0}
		if v, ok := n.(versioned); ok {
			info.Version = v.Version(ctx)
		}
		if o, ok := n.(observable); ok {
			info.Observers = o.ObserverCount()
		}
		if f, ok := n.(flagged); ok {
			info.Materialized, info.Immutable = f.IsMaterialized(), f.IsImmutable()
		}
		g.Nodes = append(g.Nodes, info)

		for _, in := range n.Inputs() {
			from := visit(in)
			consumed[from] = true
			g.Edges = append(g.Edges, Edge{From: from, To: id})
		}
		return id
	}

	for _, s := range sinks {
		visit(s)
	}
	for i := range g.Nodes {
		g.Nodes[i].Sink = !consumed[g.Nodes[i].ID]
	}

	layout(g)

	return g
}

// layout orders the nodes from the roots towards the sinks and assigns their levels.
func layout(g *Graph) {
	d := dag.New()
	for _, n := range g.Nodes {
		d.AddNode(n.ID)
	}
	for _, e := range g.Edges {
		d.AddEdge(e.From, e.To)
	}

	order, err := d.TopoSort()
	if err != nil {
		// input links never form a cycle
		return
	}
	levels, _ := d.Levels()

	byID := make(map[string]NodeInfo, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	for i, id := range order {
		n := byID[id]
		n.Level = levels[id]
		g.Nodes[i] = n
	}
}

// Label formats the display label of a node.
func Label(n NodeInfo) string {
	parts := []string{n.Name}
	if n.Name != n.Kind && !strings.HasPrefix(n.Name, n.Kind+"-") {
		parts = append(parts, fmt.Sprintf("(%s)", n.Kind))
	}
	parts = append(parts, fmt.Sprintf("v%d", n.Version))
	return strings.Join(parts, " ")
}

// BuildDotGraph creates a dot.Graph from the visualization graph.
// This unified graph can then be rendered in different formats (DOT, Mermaid, etc.).
func BuildDotGraph(g *Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR") // Left to right layout.
	graph.Attr("newrank", "true")
	if g.Title != "" {
		graph.Attr("label", g.Title)
		graph.Attr("labelloc", "t")
		graph.Attr("fontsize", "16")
	}

	nodes := make(map[string]dot.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		node := graph.Node(n.ID).
			Attr("label", Label(n)).
			Attr("fontname", "helvetica")

		switch {
		case n.Root:
			node.Attr("shape", "ellipse").
				Attr("style", "filled").
				Attr("fillcolor", "lightgreen")
		case n.Sink:
			node.Attr("shape", "box").
				Attr("style", "filled,rounded").
				Attr("fillcolor", "lightyellow")
		default:
			node.Attr("shape", "box").
				Attr("style", "filled,rounded").
				Attr("fillcolor", "lightblue").
				Attr("color", "darkblue")
		}
		if n.Materialized && !n.Root {
			node.Attr("penwidth", "2")
		}
		nodes[n.ID] = node
	}

	for _, e := range g.Edges {
		graph.Edge(nodes[e.From], nodes[e.To]).
			Attr("fontname", "helvetica").
			Attr("fontsize", "10")
	}

	return graph
}
