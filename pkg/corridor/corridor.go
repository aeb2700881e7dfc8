// Package corridor acquires and caches road-network graphs for the padded
// bounding box around a request's endpoints. Near-identical requests share a
// cached graph through coordinate-rounded cache keys.
package corridor

import (
	"context"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"ems_router/pkg/graph"
)

// Defaults for bbox padding and cache shape.
const (
	DefaultPadDeg   = 0.02
	KeyDigits       = 3 // ~100 m cache-key granularity
	DefaultCapacity = 16
)

// BBox is a geographic bounding box.
type BBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Key is a BBox rounded to the cache-key precision. Requests whose padded
// bbox rounds to the same key share one cached graph.
type Key BBox

// BBoxFor returns the bounding box of start and end padded by padDeg on every
// side, so endpoints near the corridor boundary stay reachable.
func BBoxFor(start, end orb.Point, padDeg float64) BBox {
	return BBox{
		North: math.Max(start[1], end[1]) + padDeg,
		South: math.Min(start[1], end[1]) - padDeg,
		East:  math.Max(start[0], end[0]) + padDeg,
		West:  math.Min(start[0], end[0]) - padDeg,
	}
}

// KeyOf rounds a bbox to the cache-key precision.
func KeyOf(b BBox) Key {
	return Key{
		North: roundTo(b.North, KeyDigits),
		South: roundTo(b.South, KeyDigits),
		East:  roundTo(b.East, KeyDigits),
		West:  roundTo(b.West, KeyDigits),
	}
}

// BBox returns the key's bounds as a BBox.
func (k Key) BBox() BBox { return BBox(k) }

func roundTo(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

// Source provides a drivable road-network graph for a bounding box.
type Source interface {
	Drivable(ctx context.Context, b BBox) (*graph.Graph, error)
}

// build tracks one in-flight graph acquisition.
type build struct {
	done chan struct{}
	g    *graph.Graph
	err  error
}

// Cache is a bounded LRU of corridor graphs with at-most-once build
// semantics per key: concurrent requests for the same uncached key share a
// single build. Builds are detached from the requesting caller's context, so
// an abandoned request still populates the cache for future callers.
type Cache struct {
	src          Source
	logger       *zap.Logger
	buildTimeout time.Duration

	mu       sync.Mutex
	graphs   *lru.Cache[Key, *graph.Graph]
	inflight map[Key]*build
}

// NewCache creates a corridor cache over the given source.
func NewCache(src Source, capacity int, buildTimeout time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	graphs, err := lru.New[Key, *graph.Graph](capacity)
	if err != nil {
		panic(err) // only fails on capacity <= 0
	}
	return &Cache{
		src:          src,
		logger:       logger,
		buildTimeout: buildTimeout,
		graphs:       graphs,
		inflight:     make(map[Key]*build),
	}
}

// Acquire returns the graph for key, building and caching it on first use.
// If the caller's context is canceled while a build is in flight, Acquire
// returns the context error but the build continues in the background.
func (c *Cache) Acquire(ctx context.Context, key Key) (*graph.Graph, error) {
	c.mu.Lock()
	if g, ok := c.graphs.Get(key); ok {
		c.mu.Unlock()
		return g, nil
	}
	b, ok := c.inflight[key]
	if !ok {
		b = &build{done: make(chan struct{})}
		c.inflight[key] = b
		go c.run(key, b)
	}
	c.mu.Unlock()

	select {
	case <-b.done:
		return b.g, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) run(key Key, b *build) {
	start := time.Now()
	ctx := context.Background()
	if c.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.buildTimeout)
		defer cancel()
	}

	g, err := c.src.Drivable(ctx, key.BBox())
	b.g, b.err = g, err

	c.mu.Lock()
	if err == nil {
		c.graphs.Add(key, g)
	}
	delete(c.inflight, key)
	c.mu.Unlock()
	close(b.done)

	if err != nil {
		c.logger.Warn("corridor build failed",
			zap.Float64("north", key.North), zap.Float64("south", key.South),
			zap.Float64("east", key.East), zap.Float64("west", key.West),
			zap.Error(err))
		return
	}
	c.logger.Info("corridor built",
		zap.Int("nodes", g.NumNodes()), zap.Int("edges", g.NumEdges()),
		zap.Duration("took", time.Since(start)))
}

// Len returns the number of cached corridor graphs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graphs.Len()
}
