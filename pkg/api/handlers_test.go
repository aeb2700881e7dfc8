package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"ems_router/pkg/nav"
	"ems_router/pkg/osmdata"
	"ems_router/pkg/planner"
	"ems_router/pkg/routing"
	"ems_router/pkg/viz"
)

// mockPlanner implements Planner for testing.
type mockPlanner struct {
	result  *planner.Result
	err     error
	stats   planner.Stats
	lastReq planner.Request
}

func (m *mockPlanner) Plan(ctx context.Context, req planner.Request) (*planner.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockPlanner) Stats() planner.Stats { return m.stats }

func sampleResult() *planner.Result {
	return &planner.Result{
		AlgorithmLabel: "Dijkstra",
		Route: &nav.Route{
			Coords:         orb.LineString{{-77.020, 38.900}, {-77.019, 38.901}},
			CumDistM:       []float64{0, 140.5},
			CumTimeS:       []float64{0, 10.1},
			TotalDistanceM: 140.5,
			TotalTimeS:     10.1,
			Steps: []nav.Step{{
				ID: 0, Instruction: "Head on Main St", Street: "Main St",
				Maneuver: "depart", StartDistanceM: 0, EndDistanceM: 140.5,
			}},
		},
		SnappedStart:     orb.Point{-77.020, 38.900},
		SnappedEnd:       orb.Point{-77.019, 38.901},
		Exploration:      []viz.Segment{{{-77.02, 38.9}, {-77.019, 38.901}}},
		ExplorationTotal: 4,
		Network:          []viz.Segment{{{-77.021, 38.9}, {-77.02, 38.9}}},
		NetworkTotal:     7,
	}
}

func postRoute(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)
	return w
}

func TestHandleRoute_Success(t *testing.T) {
	mock := &mockPlanner{result: sampleResult()}
	h := NewHandlers(mock)

	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019},"scenario_type":"TRAUMA"}`
	w := postRoute(t, h, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AlgorithmLabel != "Dijkstra" {
		t.Errorf("AlgorithmLabel = %q", resp.AlgorithmLabel)
	}
	if resp.TotalDistanceM != 140.5 || resp.TotalTimeS != 10.1 {
		t.Errorf("totals = %f/%f", resp.TotalDistanceM, resp.TotalTimeS)
	}
	if len(resp.PathCoordinates) != 2 || resp.PathCoordinates[0] != [2]float64{-77.020, 38.900} {
		t.Errorf("PathCoordinates = %v", resp.PathCoordinates)
	}
	if resp.SnappedEnd != [2]float64{-77.019, 38.901} {
		t.Errorf("SnappedEnd = %v", resp.SnappedEnd)
	}
	if len(resp.Steps) != 1 || resp.Steps[0].Maneuver != "depart" || resp.Steps[0].StreetName != "Main St" {
		t.Errorf("Steps = %+v", resp.Steps)
	}
	if resp.Exploration != nil || resp.BackgroundNetwork != nil {
		t.Error("overlays present without include_exploration")
	}
	if mock.lastReq.Scenario != "TRAUMA" {
		t.Errorf("scenario = %q, want TRAUMA", mock.lastReq.Scenario)
	}
}

func TestHandleRoute_IncludeExploration(t *testing.T) {
	h := NewHandlers(&mockPlanner{result: sampleResult()})

	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019},"include_exploration":true}`
	w := postRoute(t, h, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	var resp RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Counts report the pre-downsample totals, not the capped segment counts.
	if resp.Exploration == nil || resp.Exploration.Count != 4 || len(resp.Exploration.Segments) != 1 {
		t.Errorf("Exploration = %+v", resp.Exploration)
	}
	if resp.BackgroundNetwork == nil || resp.BackgroundNetwork.Count != 7 || len(resp.BackgroundNetwork.Segments) != 1 {
		t.Errorf("BackgroundNetwork = %+v", resp.BackgroundNetwork)
	}
}

func TestHandleRoute_BlockedEdges(t *testing.T) {
	mock := &mockPlanner{result: sampleResult()}
	h := NewHandlers(mock)

	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019},"blocked_edges":[[38.905,-77.021]]}`
	w := postRoute(t, h, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	// Wire order is [lat, lng]; planner order is (lng, lat).
	if len(mock.lastReq.Blocked) != 1 || mock.lastReq.Blocked[0] != (orb.Point{-77.021, 38.905}) {
		t.Errorf("Blocked = %v", mock.lastReq.Blocked)
	}
}

func TestHandleRoute_InvalidJSON(t *testing.T) {
	h := NewHandlers(&mockPlanner{})
	if w := postRoute(t, h, "not json"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_MissingContentType(t *testing.T) {
	h := NewHandlers(&mockPlanner{})

	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019}}`
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_OutOfBounds(t *testing.T) {
	h := NewHandlers(&mockPlanner{})

	// Latitude out of valid range (-90 to 90).
	body := `{"start":{"lat":91.0,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019}}`
	if w := postRoute(t, h, body); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_UnknownAlgorithm(t *testing.T) {
	h := NewHandlers(&mockPlanner{})

	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019},"algorithm":"astar"}`
	if w := postRoute(t, h, body); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_ErrorMapping(t *testing.T) {
	body := `{"start":{"lat":38.9,"lng":-77.02},"end":{"lat":38.901,"lng":-77.019}}`
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"map source unavailable", osmdata.ErrUnavailable, http.StatusBadGateway},
		{"empty corridor", osmdata.ErrEmptyCorridor, http.StatusUnprocessableEntity},
		{"no nodes", routing.ErrNoNodes, http.StatusUnprocessableEntity},
		{"no path", routing.ErrNoPathFound, http.StatusNotFound},
		{"cycle detected", routing.ErrCycleDetected, http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandlers(&mockPlanner{err: tc.err})
			if w := postRoute(t, h, body); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockPlanner{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	h := NewHandlers(&mockPlanner{stats: planner.Stats{CachedCorridors: 3, CachedTrees: 2}})

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp planner.Stats
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.CachedCorridors != 3 || resp.CachedTrees != 2 {
		t.Errorf("stats = %+v", resp)
	}
}
