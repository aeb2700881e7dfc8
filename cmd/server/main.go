package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"ems_router/pkg/api"
	"ems_router/pkg/bridge"
	"ems_router/pkg/corridor"
	"ems_router/pkg/osmdata"
	"ems_router/pkg/planner"
	"ems_router/pkg/routing"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	overpassURL := flag.String("overpass-url", osmdata.DefaultOverpassURL, "Overpass API endpoint")
	cacheDir := flag.String("cache-dir", "", "Directory for cached map responses (empty = no disk cache)")
	corridorCap := flag.Int("corridor-cache", corridor.DefaultCapacity, "Max cached corridor graphs")
	treeCap := flag.Int("tree-cache", corridor.DefaultCapacity, "Max cached destination trees")
	destLat := flag.Float64("dest-lat", 38.9185, "Standing destination latitude")
	destLng := flag.Float64("dest-lng", -77.0195, "Standing destination longitude")
	workerCmd := flag.String("worker", "", "External solver command line (empty = built-in only)")
	workerTimeout := flag.Duration("worker-timeout", bridge.DefaultTimeout, "External solver response timeout")
	buildTimeout := flag.Duration("build-timeout", 100*time.Second, "Corridor build timeout")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dest := orb.Point{*destLng, *destLat}

	client := osmdata.NewClient(*overpassURL, *cacheDir, logger)
	graphs := corridor.NewCache(client, *corridorCap, *buildTimeout, logger)
	trees := routing.NewTreeCache(dest, *treeCap, logger)

	var solver planner.Solver
	if *workerCmd != "" {
		br := bridge.New(strings.Fields(*workerCmd), *workerTimeout, logger)
		defer br.Close()
		solver = br
	}

	cfg := planner.DefaultConfig()
	cfg.Destination = dest
	engine := planner.New(cfg, graphs, trees, solver, logger)

	addr := fmt.Sprintf(":%d", *port)
	srvCfg := api.DefaultConfig(addr)
	srvCfg.CORSOrigin = *corsOrigin

	handlers := api.NewHandlers(engine)
	srv := api.NewServer(srvCfg, handlers, logger)

	logger.Info("route engine ready",
		zap.String("addr", addr),
		zap.Float64("dest_lat", *destLat),
		zap.Float64("dest_lng", *destLng),
		zap.Bool("external_solver", solver != nil))

	if err := api.ListenAndServe(srv, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
