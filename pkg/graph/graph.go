// Package graph defines the directed road multigraph the routing engine
// operates on. Graphs are built once per corridor and treated as immutable;
// derived views (blocked-edge filtering, reversal) always allocate a new
// Graph and never touch the original.
package graph

import (
	"sort"

	"github.com/paulmach/orb"
)

// Node is a road-network junction.
type Node struct {
	ID    int64
	Point orb.Point // (lng, lat)
}

// Edge is a directed road segment between two nodes. Parallel edges between
// the same node pair are allowed.
type Edge struct {
	From     int64
	To       int64
	LengthM  float64
	Geometry orb.LineString // dense shape From→To; nil means straight segment
	Name     string
	Highway  string
	Maxspeed string // raw tag value, e.g. "50", "30 mph"; empty if untagged
}

// Graph is a directed multigraph. Adjacency order is insertion order, which
// keeps traversal deterministic for a given build.
type Graph struct {
	nodes    map[int64]Node
	out      map[int64][]*Edge
	numEdges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[int64]Node),
		out:   make(map[int64][]*Edge),
	}
}

// AddNode registers a node. Re-adding an existing ID overwrites its coordinates.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID] = n
}

// AddEdge appends a directed edge. Both endpoints must already be nodes.
func (g *Graph) AddEdge(e Edge) {
	g.out[e.From] = append(g.out[e.From], &e)
	g.numEdges++
}

// Node returns the node with the given ID.
func (g *Graph) Node(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Out returns the outgoing edges of u in insertion order.
func (g *Graph) Out(u int64) []*Edge {
	return g.out[u]
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the directed edge count, counting parallel edges.
func (g *Graph) NumEdges() int { return g.numEdges }

// NodeIDs returns all node IDs in ascending order.
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BestEdge returns the minimum-length edge u→v, collapsing parallel edges.
// On exact length ties the first-inserted edge wins.
func (g *Graph) BestEdge(u, v int64) (*Edge, bool) {
	var best *Edge
	for _, e := range g.out[u] {
		if e.To != v {
			continue
		}
		if best == nil || e.LengthM < best.LengthM {
			best = e
		}
	}
	return best, best != nil
}

// Reverse returns a new graph with every edge direction flipped. Edge
// attributes are carried over; geometry is not reversed since the reversed
// graph is only used for shortest-path tree construction, never rendering.
func (g *Graph) Reverse() *Graph {
	r := New()
	for id, n := range g.nodes {
		r.nodes[id] = n
	}
	for _, edges := range g.out {
		for _, e := range edges {
			rev := *e
			rev.From, rev.To = e.To, e.From
			r.AddEdge(rev)
		}
	}
	return r
}
