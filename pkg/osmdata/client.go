package osmdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"ems_router/pkg/corridor"
	"ems_router/pkg/graph"
)

var (
	// ErrUnavailable is returned when the map-data source cannot be reached
	// or returns an unusable response.
	ErrUnavailable = errors.New("map data source unavailable")
	// ErrEmptyCorridor is returned when no drivable ways exist in the box.
	ErrEmptyCorridor = errors.New("no drivable ways in bounding box")
)

// DefaultOverpassURL is the public Overpass API endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// Client fetches drivable road networks from an Overpass-compatible API.
// When CacheDir is set, raw responses are cached on disk keyed by query hash,
// so repeated corridor builds across restarts skip the network entirely.
type Client struct {
	HTTPClient *http.Client
	URL        string
	CacheDir   string
	Logger     *zap.Logger
}

// NewClient creates a client against the given Overpass endpoint.
func NewClient(overpassURL, cacheDir string, logger *zap.Logger) *Client {
	if overpassURL == "" {
		overpassURL = DefaultOverpassURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		URL:        overpassURL,
		CacheDir:   cacheDir,
		Logger:     logger,
	}
}

// Drivable implements corridor.Source: it returns the drivable road graph
// for the bounding box.
func (c *Client) Drivable(ctx context.Context, b corridor.BBox) (*graph.Graph, error) {
	query := overpassQuery(b)

	data, cached := c.readCached(query)
	if !cached {
		var err error
		data, err = c.fetch(ctx, query)
		if err != nil {
			return nil, err
		}
		c.writeCached(query, data)
	}

	o := &osm.OSM{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	g := BuildGraph(o, c.Logger)
	if g.NumEdges() == 0 {
		return nil, ErrEmptyCorridor
	}
	return g, nil
}

// overpassQuery builds a query for drivable ways with their node geometry.
func overpassQuery(b corridor.BBox) string {
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.South, b.West, b.North, b.East)
	return fmt.Sprintf(
		`[out:json][timeout:60];(way["highway"]["area"!="yes"](%s););(._;>;);out body;`,
		bbox)
}

func (c *Client) fetch(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (c *Client) cachePath(query string) string {
	sum := sha256.Sum256([]byte(query))
	return filepath.Join(c.CacheDir, hex.EncodeToString(sum[:16])+".json")
}

func (c *Client) readCached(query string) ([]byte, bool) {
	if c.CacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.cachePath(query))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Client) writeCached(query string, data []byte) {
	if c.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		c.Logger.Warn("cannot create response cache dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.cachePath(query), data, 0o644); err != nil {
		c.Logger.Warn("cannot write response cache", zap.Error(err))
	}
}
