// Package planner orchestrates a route request end to end: corridor
// acquisition, blocked-edge filtering, snapping, path computation, route
// synthesis, and visualization sampling.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"ems_router/pkg/corridor"
	"ems_router/pkg/graph"
	"ems_router/pkg/nav"
	"ems_router/pkg/routing"
	"ems_router/pkg/viz"
)

// Algorithm selects the shortest-path strategy for a request.
type Algorithm int

const (
	AlgorithmBuiltIn Algorithm = iota
	AlgorithmExternal
)

// ParseAlgorithm maps the wire value to an Algorithm. The empty string means
// the built-in engine.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "built-in":
		return AlgorithmBuiltIn, nil
	case "external":
		return AlgorithmExternal, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", s)
	}
}

func (a Algorithm) String() string {
	if a == AlgorithmExternal {
		return "external"
	}
	return "built-in"
}

// Labels reported back to the caller for each strategy.
const (
	labelBuiltIn  = "Dijkstra"
	labelTree     = "Dijkstra (precomputed destination tree)"
	labelExternal = "External worker"
)

// Solver computes a path out of process. *bridge.Bridge implements it.
type Solver interface {
	Solve(ctx context.Context, g *graph.Graph, source, target int64) ([]int64, []viz.Segment, error)
}

// Config carries the per-deployment tunables.
type Config struct {
	PadDeg           float64
	BlockRadiusM     float64
	Destination      orb.Point
	DestThresholdDeg float64
	MaxExploration   int
	MaxNetwork       int
	CoordDigits      int
}

// DefaultConfig returns the standing deployment defaults, aimed at the
// hospital destination the tree cache serves.
func DefaultConfig() Config {
	return Config{
		PadDeg:           corridor.DefaultPadDeg,
		BlockRadiusM:     graph.DefaultBlockRadiusM,
		Destination:      orb.Point{-77.0195, 38.9185},
		DestThresholdDeg: routing.DestinationThresholdDeg,
		MaxExploration:   viz.MaxExplorationSegments,
		MaxNetwork:       viz.MaxNetworkSegments,
		CoordDigits:      viz.CoordDigits,
	}
}

// Request is one route computation.
type Request struct {
	Start              orb.Point
	End                orb.Point
	Scenario           string
	Algorithm          Algorithm
	Blocked            []orb.Point
	IncludeExploration bool
}

// Result is a fully synthesized answer. The overlay totals count segments
// before capping, so callers can report how much was sampled away.
type Result struct {
	AlgorithmLabel   string
	Route            *nav.Route
	SnappedStart     orb.Point
	SnappedEnd       orb.Point
	Exploration      []viz.Segment
	ExplorationTotal int
	Network          []viz.Segment
	NetworkTotal     int
}

// Stats reports cache occupancy.
type Stats struct {
	CachedCorridors int `json:"cached_corridors"`
	CachedTrees     int `json:"cached_trees"`
}

// Engine owns the shared caches and the external solver handle.
type Engine struct {
	cfg    Config
	graphs *corridor.Cache
	trees  *routing.TreeCache
	solver Solver
	logger *zap.Logger
}

// New wires an engine. The solver may be nil when the external algorithm is
// never selected.
func New(cfg Config, graphs *corridor.Cache, trees *routing.TreeCache, solver Solver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, graphs: graphs, trees: trees, solver: solver, logger: logger}
}

// Plan runs the full pipeline for one request.
func (e *Engine) Plan(ctx context.Context, req Request) (*Result, error) {
	bbox := corridor.BBoxFor(req.Start, req.End, e.cfg.PadDeg)
	key := corridor.KeyOf(bbox)

	g, err := e.graphs.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	working := graph.FilterBlocked(g, req.Blocked, e.cfg.BlockRadiusM)

	// Snapping runs on the unfiltered graph: the filter never removes nodes,
	// so results are identical and the snapper index is reusable logic-wise.
	snapper := routing.NewSnapper(g)
	src, err := snapper.Nearest(req.Start)
	if err != nil {
		return nil, err
	}
	dst, err := snapper.Nearest(req.End)
	if err != nil {
		return nil, err
	}

	useTree := req.Algorithm != AlgorithmExternal && len(req.Blocked) == 0 &&
		e.trees != nil && e.trees.Matches(req.End)
	if useTree {
		// Requests near the standing destination all share one tree, so the
		// path target is the node nearest the standing coordinate, not the
		// node nearest the request's end.
		if dst, err = snapper.Nearest(e.trees.Destination()); err != nil {
			return nil, err
		}
	}

	path, explored, label, err := e.computePath(ctx, working, key, req, src, dst, useTree)
	if err != nil {
		return nil, err
	}

	route, err := nav.Build(working, path, req.Scenario)
	if err != nil {
		return nil, err
	}

	startNode, _ := g.Node(src)
	endNode, _ := g.Node(dst)
	res := &Result{
		AlgorithmLabel: label,
		Route:          route,
		SnappedStart:   startNode.Point,
		SnappedEnd:     endNode.Point,
	}

	if req.IncludeExploration {
		res.ExplorationTotal = len(explored)
		res.Exploration = viz.Round(viz.Downsample(explored, e.cfg.MaxExploration), e.cfg.CoordDigits)
		rng := rand.New(rand.NewSource(int64(working.NumNodes())*31 + int64(working.NumEdges())))
		res.NetworkTotal = working.NumEdges()
		res.Network = viz.Round(viz.SampleNetwork(working, e.cfg.MaxNetwork, rng), e.cfg.CoordDigits)
	}
	return res, nil
}

// computePath picks the strategy: external solver when requested, the
// precomputed destination tree when useTree is set, plain Dijkstra otherwise.
// The caller decides the tree fast path; it applies only with no blocked
// edges and a request end within the standing-target threshold, with dst
// already overridden to the standing destination node.
func (e *Engine) computePath(ctx context.Context, working *graph.Graph, key corridor.Key, req Request, src, dst int64, useTree bool) ([]int64, []viz.Segment, string, error) {
	if req.Algorithm == AlgorithmExternal && e.solver != nil {
		path, explored, err := e.solver.Solve(ctx, working, src, dst)
		return path, explored, labelExternal, err
	}

	if useTree {
		tree := e.trees.Tree(key, working, dst)
		path, err := tree.Reconstruct(src)
		if err == nil {
			return path, nil, labelTree, nil
		}
		if !errors.Is(err, routing.ErrNoPrecomputedPath) {
			return nil, nil, "", err
		}
		// The tree predates this source node; answer directly instead.
		e.logger.Warn("destination tree missing source, recomputing",
			zap.Int64("source", src), zap.Int64("dest", dst))
	}

	path, explored, err := routing.ShortestPath(working, src, dst, req.IncludeExploration)
	return path, explored, labelBuiltIn, err
}

// Stats reports current cache occupancy for the stats endpoint.
func (e *Engine) Stats() Stats {
	s := Stats{}
	if e.graphs != nil {
		s.CachedCorridors = e.graphs.Len()
	}
	if e.trees != nil {
		s.CachedTrees = e.trees.Len()
	}
	return s
}
