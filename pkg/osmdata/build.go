// Package osmdata turns OSM data from the Overpass API into routable
// corridor graphs: drivable-way filtering, oneway handling, degree-2 chain
// simplification, and largest-component pruning.
package osmdata

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"ems_router/pkg/geo"
	"ems_router/pkg/graph"
)

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	if !carHighways[tags.Find("highway")] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")

	// Implied oneway for motorways and roundabouts.
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	// Explicit oneway tag overrides.
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		// Time-dependent direction, skip entirely.
		forward = false
		backward = false
	}

	return forward, backward
}

// streetName picks a display name for a way: name tag, then ref, then empty.
func streetName(tags osm.Tags) string {
	if n := tags.Find("name"); n != "" {
		return n
	}
	return tags.Find("ref")
}

// BuildGraph converts decoded OSM data into a directed road multigraph.
// Interstitial nodes (used once, mid-way) are merged into single edges that
// carry the full chain geometry, and only the largest weakly connected
// component is kept so snapped endpoints cannot land on stray fragments.
func BuildGraph(o *osm.OSM, logger *zap.Logger) *graph.Graph {
	if logger == nil {
		logger = zap.NewNop()
	}

	coords := make(map[osm.NodeID]orb.Point, len(o.Nodes))
	for _, n := range o.Nodes {
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
	}

	// Pass 1: drivable ways and node usage. A node used more than once, or
	// terminating a way, is a junction; everything else is shape detail.
	type wayInfo struct {
		nodes    []osm.NodeID
		forward  bool
		backward bool
		name     string
		highway  string
		maxspeed string
	}
	usage := make(map[osm.NodeID]int)
	var ways []wayInfo

	for _, w := range o.Ways {
		if !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}
		ids := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = wn.ID
			usage[wn.ID]++
		}
		usage[ids[0]]++
		usage[ids[len(ids)-1]]++
		ways = append(ways, wayInfo{
			nodes:    ids,
			forward:  fwd,
			backward: bwd,
			name:     streetName(w.Tags),
			highway:  w.Tags.Find("highway"),
			maxspeed: w.Tags.Find("maxspeed"),
		})
	}

	// Pass 2: emit one edge per junction-to-junction chain.
	b := &builder{g: graph.New(), coords: coords}

	for _, w := range ways {
		chain := make([]osm.NodeID, 0, len(w.nodes))
		for i, id := range w.nodes {
			if _, ok := coords[id]; !ok {
				// Broken reference: close out the chain collected so far.
				b.skipped++
				chain = chain[:0]
				continue
			}
			chain = append(chain, id)
			if len(chain) < 2 {
				continue
			}
			if usage[id] > 1 || i == len(w.nodes)-1 {
				b.emitChain(chain, w.forward, w.backward, w.name, w.highway, w.maxspeed)
				chain = append(chain[:0], id)
			}
		}
	}

	if b.skipped > 0 {
		logger.Warn("skipped way segments with missing node coordinates", zap.Int("count", b.skipped))
	}

	pruned := graph.LargestComponent(b.g)
	if pruned.NumNodes() < b.g.NumNodes() {
		logger.Info("pruned disconnected fragments",
			zap.Int("kept_nodes", pruned.NumNodes()),
			zap.Int("total_nodes", b.g.NumNodes()))
	}
	return pruned
}

type builder struct {
	g       *graph.Graph
	coords  map[osm.NodeID]orb.Point
	skipped int
}

// emitChain adds the forward and/or backward edge for one simplified
// junction-to-junction chain. Geometry is stored only when the chain has
// interstitial shape points; plain two-node edges render as straight segments.
func (b *builder) emitChain(chain []osm.NodeID, fwd, bwd bool, name, highway, maxspeed string) {
	if len(chain) < 2 {
		return
	}
	from := int64(chain[0])
	to := int64(chain[len(chain)-1])
	b.g.AddNode(graph.Node{ID: from, Point: b.coords[chain[0]]})
	b.g.AddNode(graph.Node{ID: to, Point: b.coords[chain[len(chain)-1]]})

	pts := make(orb.LineString, len(chain))
	length := 0.0
	for i, id := range chain {
		pts[i] = b.coords[id]
		if i > 0 {
			length += geo.Distance(pts[i-1], pts[i])
		}
	}
	if length == 0 {
		length = 0.1 // avoid zero-weight edges
	}

	var geomFwd, geomBwd orb.LineString
	if len(pts) > 2 {
		geomFwd = pts
		geomBwd = make(orb.LineString, len(pts))
		for i := range pts {
			geomBwd[i] = pts[len(pts)-1-i]
		}
	}

	if fwd {
		b.g.AddEdge(graph.Edge{
			From: from, To: to, LengthM: length,
			Geometry: geomFwd, Name: name, Highway: highway, Maxspeed: maxspeed,
		})
	}
	if bwd {
		b.g.AddEdge(graph.Edge{
			From: to, To: from, LengthM: length,
			Geometry: geomBwd, Name: name, Highway: highway, Maxspeed: maxspeed,
		})
	}
}
