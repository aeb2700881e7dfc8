package corridor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"ems_router/pkg/graph"
)

func TestBBoxForPadsAndOrients(t *testing.T) {
	b := BBoxFor(orb.Point{-77.05, 38.90}, orb.Point{-77.01, 38.95}, 0.02)
	if b.North != 38.97 || b.South != 38.88 {
		t.Errorf("lat bounds = (%f, %f), want (38.97, 38.88)", b.North, b.South)
	}
	if b.East != -76.99 || b.West != -77.07 {
		t.Errorf("lng bounds = (%f, %f), want (-76.99, -77.07)", b.East, b.West)
	}
}

func TestKeyOfRoundsToSharedKey(t *testing.T) {
	a := KeyOf(BBoxFor(orb.Point{-77.05001, 38.90002}, orb.Point{-77.01, 38.95}, 0.02))
	b := KeyOf(BBoxFor(orb.Point{-77.04999, 38.89998}, orb.Point{-77.01, 38.95}, 0.02))
	if a != b {
		t.Errorf("near-identical requests produced different keys: %+v vs %+v", a, b)
	}
}

// countingSource counts builds and returns a canned graph or error.
type countingSource struct {
	builds int32
	delay  time.Duration
	err    error
}

func (s *countingSource) Drivable(ctx context.Context, b BBox) (*graph.Graph, error) {
	atomic.AddInt32(&s.builds, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	g := graph.New()
	g.AddNode(graph.Node{ID: 1, Point: orb.Point{b.West, b.South}})
	return g, nil
}

func TestAcquireCachesPerKey(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, 4, 0, nil)
	key := KeyOf(BBox{North: 38.97, South: 38.88, East: -76.99, West: -77.07})

	g1, err := c.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	g2, err := c.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if g1 != g2 {
		t.Error("second Acquire did not return the cached graph")
	}
	if n := atomic.LoadInt32(&src.builds); n != 1 {
		t.Errorf("builds = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestAcquireSharesInflightBuild(t *testing.T) {
	src := &countingSource{delay: 50 * time.Millisecond}
	c := NewCache(src, 4, 0, nil)
	key := KeyOf(BBox{North: 1, South: 0, East: 1, West: 0})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Acquire(context.Background(), key); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&src.builds); n != 1 {
		t.Errorf("builds = %d, want 1 (at-most-once per key)", n)
	}
}

func TestAcquireErrorNotCached(t *testing.T) {
	boom := errors.New("map source down")
	src := &countingSource{err: boom}
	c := NewCache(src, 4, 0, nil)
	key := KeyOf(BBox{North: 1, South: 0, East: 1, West: 0})

	if _, err := c.Acquire(context.Background(), key); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	// A failed build must not poison the cache.
	src.err = nil
	if _, err := c.Acquire(context.Background(), key); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if n := atomic.LoadInt32(&src.builds); n != 2 {
		t.Errorf("builds = %d, want 2", n)
	}
}

func TestAcquireCanceledCallerDoesNotAbortBuild(t *testing.T) {
	src := &countingSource{delay: 50 * time.Millisecond}
	c := NewCache(src, 4, 0, nil)
	key := KeyOf(BBox{North: 1, South: 0, East: 1, West: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Acquire(ctx, key); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The detached build completes and populates the cache.
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Error("abandoned build did not populate the cache")
	}
	if n := atomic.LoadInt32(&src.builds); n != 1 {
		t.Errorf("builds = %d, want 1", n)
	}
}

func TestCacheEvictsBeyondCapacity(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, 2, 0, nil)
	for i := 0; i < 3; i++ {
		key := KeyOf(BBox{North: float64(i) + 1, South: float64(i), East: 1, West: 0})
		if _, err := c.Acquire(context.Background(), key); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 (LRU capacity)", c.Len())
	}
}
