package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/whereitwent/whereitwent/internal/adapters/socket"
	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/geosync"
	"github.com/whereitwent/whereitwent/internal/pkg/config"
	"github.com/whereitwent/whereitwent/internal/pkg/logging"
)

// scout is a terminal client for the places stream. It connects to the
// WebSocket gateway and drives the sync controller either from a recorded
// track of position fixes (live mode) or by replaying the same track as
// view pans (explore mode), printing each reconciled result set.

func main() {
	var (
		wsURL    = flag.String("url", "ws://localhost:8080/ws/places", "WebSocket endpoint")
		fixes    = flag.String("fixes", "", "NDJSON file of {\"lat\":..,\"lon\":..} fixes")
		lat      = flag.Float64("lat", 38.846224, "initial latitude")
		lon      = flag.Float64("lon", -77.306373, "initial longitude")
		zoom     = flag.Float64("zoom", 16, "initial zoom level")
		mode     = flag.String("mode", "explore", "explore or live")
		interval = flag.Duration("interval", 3*time.Second, "fix replay cadence")
	)
	flag.Parse()

	cfg, err := config.Load("whereitwent-scout")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}
	logging.Setup(logLevel, "text")
	logger := slog.Default()

	track, err := loadTrack(*fixes)
	if err != nil {
		log.Fatalf("fixes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := socket.NewClient(socket.Options{
		URL:           *wsURL,
		MaxReconnects: cfg.Sync.ReconnectAttempts,
		Logger:        logger,
	})
	if err := transport.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer transport.Disconnect()

	store := geosync.NewStore()
	source := &trackSource{track: track, interval: *interval}
	ctrl := geosync.NewController(transport, source, &echoViewport{}, store, geosync.Options{
		MoveSettle:    time.Duration(cfg.Sync.MoveSettleMs) * time.Millisecond,
		ZoomSettle:    time.Duration(cfg.Sync.ZoomSettleMs) * time.Millisecond,
		MoveThreshold: cfg.Sync.MoveThresholdM,
		Logger:        logger,
	})
	defer ctrl.Close()

	ctrl.Start(geosync.View{Center: domain.GeoPoint{Lat: *lat, Lon: *lon}, Zoom: *zoom})

	switch *mode {
	case "live":
		ctrl.SetMode(geosync.ModeLiveTracking)
	case "explore":
		// Replay the track as view pans so the move-settle debounce and
		// the explore query path get exercised.
		if len(track) > 0 {
			go replayAsPans(ctx, ctrl, track, *zoom, *interval)
		}
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}

	go printResults(ctx, store)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Printf("\n%d places discovered\n", len(store.Places()))
}

func replayAsPans(ctx context.Context, ctrl *geosync.Controller, track []domain.GeoPoint, zoom float64, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for _, p := range track {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ctrl.OnViewMoveEnd(geosync.View{Center: p, Zoom: zoom})
		}
	}
}

// printResults polls the store and reprints whenever the result set grows
// or an error surfaces.
func printResults(ctx context.Context, store *geosync.Store) {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()

	var lastCount int
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if msg := store.Err(); msg != "" && msg != lastErr {
			lastErr = msg
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		places := store.Places()
		if len(places) == lastCount {
			continue
		}
		lastCount = len(places)
		fmt.Printf("--- %d places\n", len(places))
		for _, p := range places {
			fmt.Printf("  %-40s %s %s (%.5f, %.5f)\n",
				p.Name, p.State, p.ZipCode, p.Location.Lat, p.Location.Lon)
		}
	}
}

// loadTrack reads one fix per NDJSON line. An empty path yields an empty
// track, which leaves the scout standing still at the initial view.
func loadTrack(path string) ([]domain.GeoPoint, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var track []domain.GeoPoint
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var p domain.GeoPoint
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(track)+1, err)
		}
		track = append(track, p.Clamp())
	}
	return track, sc.Err()
}

// trackSource replays a recorded track as position fixes on a fixed
// cadence. It implements the position source contract: fixes are delivered
// from a goroutine, never synchronously from Subscribe.
type trackSource struct {
	track    []domain.GeoPoint
	interval time.Duration

	mu      sync.Mutex
	stopped bool
}

func (s *trackSource) Subscribe(onFix func(geosync.Fix), onErr func(error)) (func(), error) {
	if len(s.track) == 0 {
		return nil, fmt.Errorf("no fixes loaded, pass -fixes to track a route")
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for _, p := range s.track {
			select {
			case <-done:
				return
			case <-t.C:
				onFix(geosync.Fix{Location: p, Time: time.Now()})
			}
		}
		onErr(fmt.Errorf("end of recorded track"))
	}()
	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.stopped {
			s.stopped = true
			close(done)
		}
	}
	return stop, nil
}

// echoViewport prints pans instead of moving a map.
type echoViewport struct{}

func (echoViewport) PanTo(p domain.GeoPoint) {
	fmt.Printf("~ view panned to (%.5f, %.5f)\n", p.Lat, p.Lon)
}
