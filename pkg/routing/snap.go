package routing

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"ems_router/pkg/graph"
)

// ErrNoNodes is returned when snapping against an empty graph.
var ErrNoNodes = errors.New("no nodes in graph")

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

// Snapper resolves arbitrary coordinates to the nearest graph node using an
// R-tree over equirectangular-projected node positions. Good enough at
// corridor scale; exact tie-breaks go to the smallest node ID.
type Snapper struct {
	tr     rtree.RTreeG[int64]
	cosLat float64
}

// NewSnapper indexes all nodes of g. The projection reference latitude is the
// midpoint of the graph's latitude extent.
func NewSnapper(g *graph.Graph) *Snapper {
	s := &Snapper{cosLat: 1}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		if n.Point[1] < minLat {
			minLat = n.Point[1]
		}
		if n.Point[1] > maxLat {
			maxLat = n.Point[1]
		}
	}
	if minLat <= maxLat {
		s.cosLat = math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	}

	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		p := s.project(n.Point)
		s.tr.Insert(p, p, id)
	}
	return s
}

// project maps (lng, lat) degrees to approximate planar meters.
func (s *Snapper) project(p orb.Point) [2]float64 {
	return [2]float64{p[0] * s.cosLat * metersPerDegree, p[1] * metersPerDegree}
}

// Nearest returns the ID of the graph node closest to p. On exact distance
// ties the smallest node ID wins.
func (s *Snapper) Nearest(p orb.Point) (int64, error) {
	if s.tr.Len() == 0 {
		return 0, ErrNoNodes
	}

	q := s.project(p)
	best := int64(0)
	bestDist := math.Inf(1)
	found := false

	s.tr.Nearby(
		rtree.BoxDist[float64, int64](q, q, nil),
		func(min, max [2]float64, id int64, dist float64) bool {
			if found && dist > bestDist {
				return false
			}
			if !found || dist < bestDist || id < best {
				best = id
				bestDist = dist
				found = true
			}
			return true
		},
	)

	return best, nil
}
