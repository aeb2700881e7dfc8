package api

// RouteRequest is the JSON body for POST /api/v1/route. Blocked edges arrive
// as [lat, lng] pairs.
type RouteRequest struct {
	Start              LatLngJSON   `json:"start"`
	End                LatLngJSON   `json:"end"`
	ScenarioType       string       `json:"scenario_type"`
	Algorithm          string       `json:"algorithm"`
	BlockedEdges       [][2]float64 `json:"blocked_edges,omitempty"`
	IncludeExploration bool         `json:"include_exploration"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NavStepJSON is one turn-by-turn instruction in the response.
type NavStepJSON struct {
	ID             int     `json:"id"`
	Instruction    string  `json:"instruction"`
	StreetName     string  `json:"street_name"`
	StartDistanceM float64 `json:"start_distance_m"`
	EndDistanceM   float64 `json:"end_distance_m"`
	Maneuver       string  `json:"maneuver"`
}

// OverlayJSON is a capped set of [start, end] segments, each point [lng, lat].
// Count is the total before downsampling, so it can exceed len(Segments).
type OverlayJSON struct {
	Segments [][2][2]float64 `json:"segments"`
	Count    int             `json:"count"`
}

// RouteResponse is the JSON response for a successful route query.
// All coordinates are [lng, lat].
type RouteResponse struct {
	AlgorithmLabel      string        `json:"algorithm_label"`
	TotalDistanceM      float64       `json:"total_distance_m"`
	TotalTimeS          float64       `json:"total_time_s"`
	CumulativeDistanceM []float64     `json:"cumulative_distance_m"`
	CumulativeTimeS     []float64     `json:"cumulative_time_s"`
	PathCoordinates     [][2]float64  `json:"path_coordinates"`
	SnappedStart        [2]float64    `json:"snapped_start"`
	SnappedEnd          [2]float64    `json:"snapped_end"`
	Steps               []NavStepJSON `json:"steps"`
	Exploration         *OverlayJSON  `json:"exploration,omitempty"`
	BackgroundNetwork   *OverlayJSON  `json:"background_network,omitempty"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
