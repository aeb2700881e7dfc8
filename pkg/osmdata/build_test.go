package osmdata

import (
	"testing"

	"github.com/paulmach/osm"
)

func tags(kv ...string) osm.Tags {
	var t osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		t = append(t, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return t
}

func wayNodes(ids ...osm.NodeID) osm.WayNodes {
	wn := make(osm.WayNodes, len(ids))
	for i, id := range ids {
		wn[i] = osm.WayNode{ID: id}
	}
	return wn
}

// testOSM is a T-shaped street layout:
//
//	1 - 2 - 3 - 4   "Main Street" (node 2 is shape detail, node 3 a junction)
//	        |
//	        5       "Side Road", oneway 3→5
func testOSM() *osm.OSM {
	o := &osm.OSM{}
	coords := [][2]float64{{0, 0}, {0.001, 0}, {0.002, 0}, {0.003, 0}, {0.002, -0.001}}
	for i, c := range coords {
		o.Nodes = append(o.Nodes, &osm.Node{ID: osm.NodeID(i + 1), Lon: c[0], Lat: c[1]})
	}
	o.Ways = osm.Ways{
		&osm.Way{
			ID:    100,
			Nodes: wayNodes(1, 2, 3, 4),
			Tags:  tags("highway", "residential", "name", "Main Street", "maxspeed", "40"),
		},
		&osm.Way{
			ID:    101,
			Nodes: wayNodes(3, 5),
			Tags:  tags("highway", "service", "name", "Side Road", "oneway", "yes"),
		},
	}
	return o
}

func TestBuildGraphSimplifiesChains(t *testing.T) {
	g := BuildGraph(testOSM(), nil)

	// Node 2 is interstitial and must be merged away.
	if _, ok := g.Node(2); ok {
		t.Error("interstitial node 2 should be simplified away")
	}
	for _, id := range []int64{1, 3, 4, 5} {
		if _, ok := g.Node(id); !ok {
			t.Errorf("junction node %d missing", id)
		}
	}

	// 1↔3 and 3↔4 bidirectional, 3→5 oneway: 5 directed edges.
	if g.NumEdges() != 5 {
		t.Errorf("NumEdges = %d, want 5", g.NumEdges())
	}

	e, ok := g.BestEdge(1, 3)
	if !ok {
		t.Fatal("edge 1→3 missing")
	}
	if e.Name != "Main Street" || e.Highway != "residential" || e.Maxspeed != "40" {
		t.Errorf("edge attributes = %q/%q/%q", e.Name, e.Highway, e.Maxspeed)
	}
	// Merged chain carries its shape points.
	if len(e.Geometry) != 3 {
		t.Errorf("geometry has %d points, want 3", len(e.Geometry))
	}
	if e.LengthM <= 0 {
		t.Errorf("LengthM = %f, want > 0", e.LengthM)
	}

	// Reverse direction carries reversed geometry.
	rev, ok := g.BestEdge(3, 1)
	if !ok {
		t.Fatal("edge 3→1 missing")
	}
	if rev.Geometry[0] != e.Geometry[2] {
		t.Error("reverse edge geometry is not reversed")
	}

	// Plain two-node edge has no stored geometry.
	side, ok := g.BestEdge(3, 5)
	if !ok {
		t.Fatal("edge 3→5 missing")
	}
	if side.Geometry != nil {
		t.Error("two-node edge should have nil geometry")
	}
	if _, ok := g.BestEdge(5, 3); ok {
		t.Error("oneway edge 5→3 should not exist")
	}
}

func TestBuildGraphFiltersNonDrivable(t *testing.T) {
	o := testOSM()
	o.Ways = append(o.Ways,
		&osm.Way{ID: 102, Nodes: wayNodes(1, 4), Tags: tags("highway", "footway")},
		&osm.Way{ID: 103, Nodes: wayNodes(1, 4), Tags: tags("highway", "residential", "access", "private")},
		&osm.Way{ID: 104, Nodes: wayNodes(1, 4), Tags: tags("highway", "residential", "motor_vehicle", "no")},
	)
	g := BuildGraph(o, nil)
	if g.NumEdges() != 5 {
		t.Errorf("NumEdges = %d, want 5 (non-drivable ways ignored)", g.NumEdges())
	}
}

func TestBuildGraphKeepsLargestComponent(t *testing.T) {
	o := testOSM()
	// Detached two-node fragment far away.
	o.Nodes = append(o.Nodes,
		&osm.Node{ID: 50, Lon: 1.0, Lat: 1.0},
		&osm.Node{ID: 51, Lon: 1.001, Lat: 1.0},
	)
	o.Ways = append(o.Ways,
		&osm.Way{ID: 105, Nodes: wayNodes(50, 51), Tags: tags("highway", "residential")},
	)
	g := BuildGraph(o, nil)
	if _, ok := g.Node(50); ok {
		t.Error("disconnected fragment should be pruned")
	}
	if g.NumNodes() != 4 {
		t.Errorf("NumNodes = %d, want 4", g.NumNodes())
	}
}

func TestDirectionFlags(t *testing.T) {
	tests := []struct {
		name     string
		tags     osm.Tags
		fwd, bwd bool
	}{
		{"default bidirectional", tags("highway", "residential"), true, true},
		{"oneway yes", tags("highway", "residential", "oneway", "yes"), true, false},
		{"oneway reverse", tags("highway", "residential", "oneway", "-1"), false, true},
		{"motorway implied", tags("highway", "motorway"), true, false},
		{"roundabout implied", tags("highway", "residential", "junction", "roundabout"), true, false},
		{"oneway no overrides motorway", tags("highway", "motorway", "oneway", "no"), true, true},
		{"reversible skipped", tags("highway", "residential", "oneway", "reversible"), false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fwd, bwd := directionFlags(tc.tags)
			if fwd != tc.fwd || bwd != tc.bwd {
				t.Errorf("directionFlags = (%v, %v), want (%v, %v)", fwd, bwd, tc.fwd, tc.bwd)
			}
		})
	}
}
