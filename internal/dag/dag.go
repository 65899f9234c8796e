// SPDX-License-Identifier: MPL-2.0

// Package dag models load-before relations as a directed graph and finds
// the cycles that keep modules from ever loading.
package dag

import "slices"

// Graph is a directed graph keyed by module name. An edge from A to B
// means A waits for B to be registered. The zero value is not usable; call
// New.
type Graph struct {
	// adjacency maps each node to the nodes it waits for.
	adjacency map[string][]string
	// nodes tracks all nodes in insertion order for deterministic output.
	nodes   []string
	nodeSet map[string]bool
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from waits for to. Both nodes are implicitly added.
// Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	return g.nodeSet[name]
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// CycleFrom returns a path that leaves start and comes back to it, first
// and last element both start, or nil when start is on no cycle. Edges are
// followed in insertion order, so the result is deterministic.
func (g *Graph) CycleFrom(start string) []string {
	if !g.nodeSet[start] {
		return nil
	}

	visited := make(map[string]bool)
	var path []string

	var visit func(name string) bool
	visit = func(name string) bool {
		path = append(path, name)
		for _, next := range g.adjacency[name] {
			if next == start {
				path = append(path, start)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if visit(start) {
		return slices.Clip(path)
	}
	return nil
}

// Cycles returns one cycle per node that lies on a cycle, keyed by node.
func (g *Graph) Cycles() map[string][]string {
	out := make(map[string][]string)
	for _, n := range g.nodes {
		if c := g.CycleFrom(n); c != nil {
			out[n] = c
		}
	}
	return out
}
