package graph

import (
	"github.com/paulmach/orb"

	"ems_router/pkg/geo"
)

// DefaultBlockRadiusM is the closure radius applied around each blocked point.
const DefaultBlockRadiusM = 100.0

// FilterBlocked returns a derived graph with every edge within radiusM of a
// blocked point removed. The node set is unchanged, so snapping results are
// stable regardless of filtering. An empty block list returns g itself.
//
// The filter is two-phase: first mark nodes within radiusM of any blocked
// point, then distance-test only edges incident to a marked node. This keeps
// the cost proportional to the blocked neighborhood instead of
// O(blocked × edges).
func FilterBlocked(g *Graph, blocked []orb.Point, radiusM float64) *Graph {
	if len(blocked) == 0 {
		return g
	}
	if radiusM <= 0 {
		radiusM = DefaultBlockRadiusM
	}

	// Phase 1: nodes near any blocked point.
	nearby := make(map[int64]bool)
	for id, n := range g.nodes {
		for _, bp := range blocked {
			if geo.Distance(bp, n.Point) < radiusM {
				nearby[id] = true
				break
			}
		}
	}

	// Phase 2: distance-test endpoints and midpoint of incident edges only.
	out := New()
	for id, n := range g.nodes {
		out.nodes[id] = n
	}
	for u, edges := range g.out {
		for _, e := range edges {
			if nearby[u] || nearby[e.To] {
				if edgeBlocked(g, e, blocked, radiusM) {
					continue
				}
			}
			out.out[e.From] = append(out.out[e.From], e)
			out.numEdges++
		}
	}
	return out
}

func edgeBlocked(g *Graph, e *Edge, blocked []orb.Point, radiusM float64) bool {
	from, ok := g.nodes[e.From]
	if !ok {
		return false
	}
	to, ok := g.nodes[e.To]
	if !ok {
		return false
	}
	mid := geo.Midpoint(from.Point, to.Point)
	for _, bp := range blocked {
		if geo.Distance(bp, from.Point) < radiusM ||
			geo.Distance(bp, mid) < radiusM ||
			geo.Distance(bp, to.Point) < radiusM {
			return true
		}
	}
	return false
}
