// Package dag implements a small directed graph over string labels with the orderings needed to
// lay out reactive pipelines: roots, topological order and levels.
package dag

import (
	"errors"
	"sort"
)

// ErrCycle is returned when an ordering is requested for a graph that has a cycle.
var ErrCycle = errors.New("graph has a cycle")

// Graph is a directed graph. Nodes are kept in insertion order and every ordering returned by
// the graph breaks ties by insertion order.
type Graph struct {
	Nodes   []string
	byLabel map[string]int
	edges   map[string]map[string]bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byLabel: map[string]int{}, edges: map[string]map[string]bool{}}
}

// AddNode adds a node and reports whether it was new.
func (g *Graph) AddNode(label string) bool {
	if _, ok := g.byLabel[label]; ok {
		return false
	}
	g.byLabel[label] = len(g.Nodes)
	g.Nodes = append(g.Nodes, label)
	g.edges[label] = map[string]bool{}
	return true
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(label string) bool {
	_, ok := g.byLabel[label]
	return ok
}

// AddEdge adds an edge, creating the endpoints if needed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from][to] = true
}

// HasEdge reports whether the edge exists.
func (g *Graph) HasEdge(from, to string) bool {
	return g.edges[from] != nil && g.edges[from][to]
}

// Edges returns the successors of a node.
func (g *Graph) Edges(from string) []string {
	ret := make([]string, 0, len(g.edges[from]))
	for k := range g.edges[from] {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return g.byLabel[ret[i]] < g.byLabel[ret[j]] })
	return ret
}

func (g *Graph) indegrees() map[string]int {
	ret := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		for to := range g.edges[n] {
			ret[to]++
		}
	}
	return ret
}

// Roots returns the nodes without an incoming edge.
func (g *Graph) Roots() []string {
	in := g.indegrees()
	ret := []string{}
	for _, n := range g.Nodes {
		if in[n] == 0 {
			ret = append(ret, n)
		}
	}
	return ret
}

// Sinks returns the nodes without an outgoing edge.
func (g *Graph) Sinks() []string {
	ret := []string{}
	for _, n := range g.Nodes {
		if len(g.edges[n]) == 0 {
			ret = append(ret, n)
		}
	}
	return ret
}

// TopoSort returns the nodes so that every edge points forward.
func (g *Graph) TopoSort() ([]string, error) {
	in := g.indegrees()
	ret := make([]string, 0, len(g.Nodes))
	ready := g.Roots()

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		ret = append(ret, n)

		next := []string{}
		for _, to := range g.Edges(n) {
			in[to]--
			if in[to] == 0 {
				next = append(next, to)
			}
		}
		ready = append(ready, next...)
		sort.SliceStable(ready, func(i, j int) bool { return g.byLabel[ready[i]] < g.byLabel[ready[j]] })
	}

	if len(ret) != len(g.Nodes) {
		return nil, ErrCycle
	}
	return ret, nil
}

// Levels returns the length of the longest path from a root to every node.
func (g *Graph) Levels() (map[string]int, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	ret := make(map[string]int, len(order))
	for _, n := range order {
		for _, to := range g.Edges(n) {
			ret[to] = max(ret[to], ret[n]+1)
		}
	}
	for _, n := range order {
		if _, ok := ret[n]; !ok {
			ret[n] = 0
		}
	}
	return ret, nil
}
