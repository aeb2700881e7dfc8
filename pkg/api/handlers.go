package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/paulmach/orb"

	"ems_router/pkg/nav"
	"ems_router/pkg/osmdata"
	"ems_router/pkg/planner"
	"ems_router/pkg/routing"
	"ems_router/pkg/viz"
)

// maxRequestBytes bounds the request body; blocked_edges lists can be large.
const maxRequestBytes = 1 << 20

// Planner computes routes. *planner.Engine implements it.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*planner.Result, error)
	Stats() planner.Stats
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	planner Planner
}

// NewHandlers creates handlers around the given planner.
func NewHandlers(p Planner) *Handlers {
	return &Handlers{planner: p}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Parse request.
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Validate coordinates.
	if err := validateCoord(req.Start.Lat, req.Start.Lng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End.Lat, req.End.Lng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	algo, err := planner.ParseAlgorithm(req.Algorithm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_algorithm", "algorithm")
		return
	}

	blocked := make([]orb.Point, 0, len(req.BlockedEdges))
	for _, be := range req.BlockedEdges {
		if err := validateCoord(be[0], be[1]); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "blocked_edges")
			return
		}
		blocked = append(blocked, orb.Point{be[1], be[0]})
	}

	result, err := h.planner.Plan(r.Context(), planner.Request{
		Start:              orb.Point{req.Start.Lng, req.Start.Lat},
		End:                orb.Point{req.End.Lng, req.End.Lat},
		Scenario:           req.ScenarioType,
		Algorithm:          algo,
		Blocked:            blocked,
		IncludeExploration: req.IncludeExploration,
	})
	if err != nil {
		writePlanError(w, err)
		return
	}

	resp := buildRouteResponse(result, req.IncludeExploration)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.planner.Stats())
}

func writePlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, osmdata.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "map_source_unavailable", "")
	case errors.Is(err, osmdata.ErrEmptyCorridor):
		writeError(w, http.StatusUnprocessableEntity, "empty_corridor", "")
	case errors.Is(err, routing.ErrNoNodes):
		writeError(w, http.StatusUnprocessableEntity, "no_nodes_in_region", "")
	case errors.Is(err, routing.ErrNoPathFound):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, routing.ErrNoPrecomputedPath), errors.Is(err, routing.ErrCycleDetected):
		writeError(w, http.StatusInternalServerError, "route_cache_corrupt", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func buildRouteResponse(result *planner.Result, includeOverlays bool) RouteResponse {
	route := result.Route
	resp := RouteResponse{
		AlgorithmLabel:      result.AlgorithmLabel,
		TotalDistanceM:      route.TotalDistanceM,
		TotalTimeS:          route.TotalTimeS,
		CumulativeDistanceM: route.CumDistM,
		CumulativeTimeS:     route.CumTimeS,
		PathCoordinates:     make([][2]float64, len(route.Coords)),
		SnappedStart:        [2]float64{result.SnappedStart[0], result.SnappedStart[1]},
		SnappedEnd:          [2]float64{result.SnappedEnd[0], result.SnappedEnd[1]},
		Steps:               stepsJSON(route.Steps),
	}
	for i, p := range route.Coords {
		resp.PathCoordinates[i] = [2]float64{p[0], p[1]}
	}
	if includeOverlays {
		resp.Exploration = overlayJSON(result.Exploration, result.ExplorationTotal)
		resp.BackgroundNetwork = overlayJSON(result.Network, result.NetworkTotal)
	}
	return resp
}

func stepsJSON(steps []nav.Step) []NavStepJSON {
	out := make([]NavStepJSON, len(steps))
	for i, s := range steps {
		out[i] = NavStepJSON{
			ID:             s.ID,
			Instruction:    s.Instruction,
			StreetName:     s.Street,
			StartDistanceM: s.StartDistanceM,
			EndDistanceM:   s.EndDistanceM,
			Maneuver:       s.Maneuver,
		}
	}
	return out
}

// overlayJSON renders capped segments with the pre-cap total as the count.
func overlayJSON(segs []viz.Segment, total int) *OverlayJSON {
	if total < len(segs) {
		total = len(segs)
	}
	out := &OverlayJSON{Segments: make([][2][2]float64, len(segs)), Count: total}
	for i, s := range segs {
		out.Segments[i] = [2][2]float64{
			{s[0][0], s[0][1]},
			{s[1][0], s[1][1]},
		}
	}
	return out
}

func validateCoord(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
