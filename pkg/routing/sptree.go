package routing

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"ems_router/pkg/corridor"
	"ems_router/pkg/graph"
)

// Tree is a reverse shortest-path tree rooted at a fixed destination:
// Pred[v] is the next hop from v toward Dest, Dist[v] the remaining distance.
// Dest itself has no predecessor entry.
type Tree struct {
	Dest int64
	Pred map[int64]int64
	Dist map[int64]float64
}

// BuildTree runs Dijkstra on the reversed graph rooted at dest, so that the
// predecessor map gives, for every reachable source, the next hop toward
// dest in the original edge direction.
func BuildTree(g *graph.Graph, dest int64) *Tree {
	r := g.Reverse()

	dist := map[int64]float64{dest: 0}
	pred := map[int64]int64{}
	visited := map[int64]bool{}

	var pq minHeap
	pq.Push(dest, 0)

	for pq.Len() > 0 {
		item := pq.Pop()
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		for _, nb := range collapsedNeighbors(r, u) {
			if visited[nb.to] {
				continue
			}
			newDist := item.dist + nb.w
			if d, ok := dist[nb.to]; !ok || newDist < d {
				dist[nb.to] = newDist
				pred[nb.to] = u
				pq.Push(nb.to, newDist)
			}
		}
	}

	return &Tree{Dest: dest, Pred: pred, Dist: dist}
}

// Reconstruct walks predecessors from source to the tree's destination.
// A missing predecessor yields ErrNoPrecomputedPath; revisiting a node
// yields ErrCycleDetected.
func (t *Tree) Reconstruct(source int64) ([]int64, error) {
	path := []int64{source}
	seen := map[int64]bool{source: true}
	cur := source
	for cur != t.Dest {
		nxt, ok := t.Pred[cur]
		if !ok {
			return nil, ErrNoPrecomputedPath
		}
		if seen[nxt] {
			return nil, ErrCycleDetected
		}
		seen[nxt] = true
		path = append(path, nxt)
		cur = nxt
	}
	return path, nil
}

// TreeCache holds one reverse shortest-path tree per corridor key, all rooted
// at a single standing destination. Trees are built from the unfiltered
// cached graph, so callers must bypass the cache whenever blocked edges are
// in play.
type TreeCache struct {
	dest         orb.Point
	thresholdDeg float64
	logger       *zap.Logger

	mu    sync.Mutex
	trees *lru.Cache[corridor.Key, *Tree]
}

// DestinationThresholdDeg is the coordinate tolerance for treating a request
// destination as the standing destination (~200 m).
const DestinationThresholdDeg = 0.002

// NewTreeCache creates a bounded tree cache for the given standing destination.
func NewTreeCache(dest orb.Point, capacity int, logger *zap.Logger) *TreeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	trees, err := lru.New[corridor.Key, *Tree](capacity)
	if err != nil {
		panic(err) // only fails on capacity <= 0
	}
	return &TreeCache{
		dest:         dest,
		thresholdDeg: DestinationThresholdDeg,
		logger:       logger,
		trees:        trees,
	}
}

// Destination returns the standing destination coordinate.
func (tc *TreeCache) Destination() orb.Point { return tc.dest }

// Matches reports whether end is within the match threshold of the standing
// destination.
func (tc *TreeCache) Matches(end orb.Point) bool {
	dLng := end[0] - tc.dest[0]
	dLat := end[1] - tc.dest[1]
	if dLng < 0 {
		dLng = -dLng
	}
	if dLat < 0 {
		dLat = -dLat
	}
	return dLat < tc.thresholdDeg && dLng < tc.thresholdDeg
}

// Tree returns the reverse shortest-path tree for the given corridor key,
// building it on first use. destNode must be the graph node nearest the
// standing destination.
func (tc *TreeCache) Tree(key corridor.Key, g *graph.Graph, destNode int64) *Tree {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t, ok := tc.trees.Get(key); ok && t.Dest == destNode {
		return t
	}
	tc.logger.Info("building reverse shortest-path tree",
		zap.Int64("dest_node", destNode),
		zap.Int("nodes", g.NumNodes()))
	t := BuildTree(g, destNode)
	tc.trees.Add(key, t)
	return t
}

// Len returns the number of cached trees.
func (tc *TreeCache) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.trees.Len()
}
