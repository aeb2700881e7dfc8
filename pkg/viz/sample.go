// Package viz bounds visualization payloads: exploration traces and
// background street-network overlays are capped and coordinate-rounded
// before they leave the process.
package viz

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"ems_router/pkg/graph"
)

// Segment is one visual edge segment: two (lng, lat) endpoints.
type Segment [2]orb.Point

// Default payload caps and coordinate precision.
const (
	MaxExplorationSegments = 2500
	MaxNetworkSegments     = 2200
	CoordDigits            = 6
)

// Downsample returns at most maxN segments chosen at a fixed stride. The
// first and last input segments are always preserved so the visual record
// keeps its true start and end.
func Downsample(segs []Segment, maxN int) []Segment {
	n := len(segs)
	if maxN <= 0 {
		return nil
	}
	if n <= maxN {
		return segs
	}
	if maxN == 1 {
		return segs[:1]
	}
	out := make([]Segment, 0, maxN)
	for i := 0; i < maxN; i++ {
		idx := i * (n - 1) / (maxN - 1)
		out = append(out, segs[idx])
	}
	return out
}

// Round returns a copy of segs with all coordinates rounded to the given
// number of decimal digits.
func Round(segs []Segment, digits int) []Segment {
	if segs == nil {
		return nil
	}
	p := math.Pow10(digits)
	out := make([]Segment, len(segs))
	for i, s := range segs {
		for j, pt := range s {
			out[i][j] = orb.Point{
				math.Round(pt[0]*p) / p,
				math.Round(pt[1]*p) / p,
			}
		}
	}
	return out
}

// SampleNetwork reservoir-samples up to maxN straight edge segments from the
// graph, for drawing a faint background street network. Nodes are visited in
// ascending ID order, so the result is deterministic for a given graph and
// rng seed.
func SampleNetwork(g *graph.Graph, maxN int, rng *rand.Rand) []Segment {
	if maxN <= 0 {
		return nil
	}
	sample := make([]Segment, 0, maxN)
	seen := 0
	for _, u := range g.NodeIDs() {
		from, ok := g.Node(u)
		if !ok {
			continue
		}
		for _, e := range g.Out(u) {
			to, ok := g.Node(e.To)
			if !ok {
				continue
			}
			seg := Segment{from.Point, to.Point}
			seen++
			if len(sample) < maxN {
				sample = append(sample, seg)
				continue
			}
			if j := rng.Intn(seen); j < maxN {
				sample[j] = seg
			}
		}
	}
	return sample
}
