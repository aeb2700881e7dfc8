package nav

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"ems_router/pkg/geo"
	"ems_router/pkg/graph"
)

// Maneuver classification thresholds, degrees of bearing change.
const (
	stepBoundaryDeg = 35.0
	continueMaxDeg  = 20.0
	slightMaxDeg    = 60.0
	turnMaxDeg      = 135.0

	mergeBelowM = 30.0

	minSpeedMPS = 0.1

	unnamedStreet = "Unnamed Road"
)

// Step is one turn-by-turn instruction covering a contiguous slice of the
// route, addressed by cumulative distance.
type Step struct {
	ID             int
	Instruction    string
	Street         string
	Maneuver       string
	StartDistanceM float64
	EndDistanceM   float64
}

// Route is a fully synthesized route: merged polyline, per-coordinate
// cumulative distance and time, and turn-by-turn steps.
type Route struct {
	Coords         orb.LineString
	CumDistM       []float64
	CumTimeS       []float64
	TotalDistanceM float64
	TotalTimeS     float64
	Steps          []Step
}

// edgeSpan is one traversed edge mapped onto the merged polyline.
type edgeSpan struct {
	street   string
	bearing  float64
	startIdx int
	endIdx   int
	timeS    float64
}

// Build synthesizes a route for a node path. Each consecutive pair is
// resolved to its best edge; an edge without stored geometry contributes a
// straight segment, and a missing edge contributes a straight segment at the
// fallback speed so one bad pair never sinks the whole route.
func Build(g *graph.Graph, path []int64, scenario string) (*Route, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	if len(path) == 1 {
		n, ok := g.Node(path[0])
		if !ok {
			return nil, fmt.Errorf("node %d not in graph", path[0])
		}
		return &Route{
			Coords:   orb.LineString{n.Point},
			CumDistM: []float64{0},
			CumTimeS: []float64{0},
		}, nil
	}

	var coords orb.LineString
	var spans []edgeSpan

	for i := 0; i+1 < len(path); i++ {
		u, v := path[i], path[i+1]
		nu, ok := g.Node(u)
		if !ok {
			return nil, fmt.Errorf("node %d not in graph", u)
		}
		nv, ok := g.Node(v)
		if !ok {
			return nil, fmt.Errorf("node %d not in graph", v)
		}

		pts := orb.LineString{nu.Point, nv.Point}
		lengthM := geo.Distance(nu.Point, nv.Point)
		var street, highway, maxspeed string
		if e, ok := g.BestEdge(u, v); ok {
			if len(e.Geometry) >= 2 {
				pts = e.Geometry
			}
			lengthM = e.LengthM
			street, highway, maxspeed = e.Name, e.Highway, e.Maxspeed
		}

		start := 0
		if len(coords) > 0 {
			start = len(coords) - 1
			if coords[len(coords)-1] == pts[0] {
				pts = pts[1:]
			}
		}
		coords = append(coords, pts...)

		mps := speedKPH(maxspeed, highway, scenario) / 3.6
		if mps < minSpeedMPS {
			mps = minSpeedMPS
		}
		spans = append(spans, edgeSpan{
			street: street,
			// Entry heading from the first polyline segment; the node-to-node
			// chord is misleading on curved simplified edges.
			bearing:  geo.Bearing(coords[start], coords[start+1]),
			startIdx: start,
			endIdx:   len(coords) - 1,
			timeS:    lengthM / mps,
		})
	}

	cumDist := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		cumDist[i] = cumDist[i-1] + geo.Distance(coords[i-1], coords[i])
	}

	// Each edge's travel time is spread over its span proportionally to
	// measured distance, clamped so the timeline never runs backwards.
	cumTime := make([]float64, len(coords))
	for _, sp := range spans {
		spanDist := cumDist[sp.endIdx] - cumDist[sp.startIdx]
		base := cumTime[sp.startIdx]
		for j := sp.startIdx + 1; j <= sp.endIdx; j++ {
			frac := 1.0
			if spanDist > 0 {
				frac = (cumDist[j] - cumDist[sp.startIdx]) / spanDist
			}
			t := base + frac*sp.timeS
			if t < cumTime[j-1] {
				t = cumTime[j-1]
			}
			cumTime[j] = t
		}
	}

	return &Route{
		Coords:         coords,
		CumDistM:       cumDist,
		CumTimeS:       cumTime,
		TotalDistanceM: cumDist[len(cumDist)-1],
		TotalTimeS:     cumTime[len(cumTime)-1],
		Steps:          buildSteps(spans, cumDist),
	}, nil
}

// buildSteps groups edge spans into steps: a new step begins on a street-name
// change or a bearing change of stepBoundaryDeg or more. Short steps sharing
// a street with their predecessor are merged away.
func buildSteps(spans []edgeSpan, cumDist []float64) []Step {
	if len(spans) == 0 {
		return nil
	}

	steps := []Step{{
		Maneuver:       "depart",
		Street:         spans[0].street,
		StartDistanceM: cumDist[spans[0].startIdx],
		EndDistanceM:   cumDist[spans[0].endIdx],
	}}

	for k := 1; k < len(spans); k++ {
		delta := geo.AngleDiff(spans[k].bearing, spans[k-1].bearing)
		if spans[k].street == spans[k-1].street && math.Abs(delta) < stepBoundaryDeg {
			steps[len(steps)-1].EndDistanceM = cumDist[spans[k].endIdx]
			continue
		}
		steps = append(steps, Step{
			Maneuver:       classifyTurn(delta),
			Street:         spans[k].street,
			StartDistanceM: cumDist[spans[k].startIdx],
			EndDistanceM:   cumDist[spans[k].endIdx],
		})
	}

	merged := steps[:1]
	for _, s := range steps[1:] {
		prev := &merged[len(merged)-1]
		if s.Street == prev.Street && s.EndDistanceM-s.StartDistanceM < mergeBelowM {
			prev.EndDistanceM = s.EndDistanceM
			continue
		}
		merged = append(merged, s)
	}

	for i := range merged {
		merged[i].ID = i
		merged[i].Instruction = instruction(merged[i].Maneuver, displayStreet(merged[i].Street))
		merged[i].Street = displayStreet(merged[i].Street)
	}
	return merged
}

func classifyTurn(delta float64) string {
	abs := math.Abs(delta)
	switch {
	case abs < continueMaxDeg:
		return "continue"
	case abs < slightMaxDeg:
		if delta > 0 {
			return "slight_right"
		}
		return "slight_left"
	case abs < turnMaxDeg:
		if delta > 0 {
			return "right"
		}
		return "left"
	default:
		return "uturn"
	}
}

func instruction(maneuver, street string) string {
	switch maneuver {
	case "depart":
		return fmt.Sprintf("Head on %s", street)
	case "continue":
		return fmt.Sprintf("Continue on %s", street)
	case "slight_left":
		return fmt.Sprintf("Slight left onto %s", street)
	case "slight_right":
		return fmt.Sprintf("Slight right onto %s", street)
	case "left":
		return fmt.Sprintf("Turn left onto %s", street)
	case "right":
		return fmt.Sprintf("Turn right onto %s", street)
	case "uturn":
		return fmt.Sprintf("Make a U-turn to stay on %s", street)
	default:
		return fmt.Sprintf("Continue on %s", street)
	}
}

func displayStreet(name string) string {
	if name == "" {
		return unnamedStreet
	}
	return name
}
