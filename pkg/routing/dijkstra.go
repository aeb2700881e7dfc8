// Package routing implements the shortest-path engine: Dijkstra with an
// optional exploration trace, a precomputed reverse shortest-path tree for a
// fixed destination, and nearest-node snapping.
package routing

import (
	"errors"

	"ems_router/pkg/graph"
	"ems_router/pkg/viz"
)

var (
	// ErrNoPathFound is returned when the target is unreachable from the source.
	ErrNoPathFound = errors.New("no path found")
	// ErrNoPrecomputedPath is returned when a node has no predecessor in a
	// shortest-path tree.
	ErrNoPrecomputedPath = errors.New("no precomputed path to destination")
	// ErrCycleDetected is returned when walking a shortest-path tree revisits
	// a node. A tree with a cycle is corrupt, never a usable path.
	ErrCycleDetected = errors.New("cycle detected in precomputed path")
)

// neighbor is a collapsed view of all parallel edges u→to.
type neighbor struct {
	to int64
	w  float64
}

// collapsedNeighbors returns u's neighbors in first-seen order, each with the
// minimum parallel-edge length.
func collapsedNeighbors(g *graph.Graph, u int64) []neighbor {
	edges := g.Out(u)
	if len(edges) == 0 {
		return nil
	}
	order := make([]neighbor, 0, len(edges))
	index := make(map[int64]int, len(edges))
	for _, e := range edges {
		if i, ok := index[e.To]; ok {
			if e.LengthM < order[i].w {
				order[i].w = e.LengthM
			}
			continue
		}
		index[e.To] = len(order)
		order = append(order, neighbor{to: e.To, w: e.LengthM})
	}
	return order
}

// ShortestPath runs Dijkstra from source to target over the directed graph.
// Edge weight is the length of the shortest parallel edge between a node
// pair. When trace is true, every relaxed edge is recorded in relaxation
// order as a straight segment; the trace never affects the returned path.
func ShortestPath(g *graph.Graph, source, target int64, trace bool) ([]int64, []viz.Segment, error) {
	dist := map[int64]float64{source: 0}
	pred := map[int64]int64{}
	visited := map[int64]bool{}
	var explored []viz.Segment

	var pq minHeap
	pq.Push(source, 0)

	for pq.Len() > 0 {
		item := pq.Pop()
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == target {
			break
		}
		for _, nb := range collapsedNeighbors(g, u) {
			if visited[nb.to] {
				continue
			}
			newDist := item.dist + nb.w
			if d, ok := dist[nb.to]; !ok || newDist < d {
				dist[nb.to] = newDist
				pred[nb.to] = u
				pq.Push(nb.to, newDist)
			}
			if trace {
				if seg, ok := segmentBetween(g, u, nb.to); ok {
					explored = append(explored, seg)
				}
			}
		}
	}

	if _, ok := dist[target]; !ok {
		return nil, nil, ErrNoPathFound
	}

	var path []int64
	cur := target
	for {
		path = append(path, cur)
		if cur == source {
			break
		}
		cur = pred[cur]
	}
	reverseInPlace(path)
	return path, explored, nil
}

// PathLength returns the total weight of a node path using minimum
// parallel-edge lengths.
func PathLength(g *graph.Graph, path []int64) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		if e, ok := g.BestEdge(path[i], path[i+1]); ok {
			total += e.LengthM
		}
	}
	return total
}

func segmentBetween(g *graph.Graph, u, v int64) (viz.Segment, bool) {
	from, ok := g.Node(u)
	if !ok {
		return viz.Segment{}, false
	}
	to, ok := g.Node(v)
	if !ok {
		return viz.Segment{}, false
	}
	return viz.Segment{from.Point, to.Point}, true
}

func reverseInPlace(p []int64) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
