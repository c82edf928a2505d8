package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/pkg/geospatial"
	"github.com/whereitwent/whereitwent/internal/pkg/metrics"
)

// Cells at or above this level are fetched from the upstream API directly
// instead of descending further.
const maxFetchLevel = 16

// cellCacheTTLSeconds is how long resolved cells stay cached (12 hours).
const cellCacheTTLSeconds = 12 * 60 * 60

// NearbyService resolves a circular search region to the places inside it.
// Results arrive cell by cell, so callers receive partial batches while the
// remaining cells are still being resolved.
type NearbyService struct {
	upstream ports.PlacesAPI
	cache    ports.CacheService
	archive  ports.PlaceRepository
	logger   *slog.Logger
}

// NewNearbyService creates a new NearbyService. The archive repository is
// optional; when present, every resolved batch is persisted in the
// background.
func NewNearbyService(upstream ports.PlacesAPI, cache ports.CacheService, archive ports.PlaceRepository, logger *slog.Logger) *NearbyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NearbyService{upstream: upstream, cache: cache, archive: archive, logger: logger}
}

// Search resolves the region and streams batches of places through emit.
// Each batch is already filtered to the region radius. It returns the total
// number of places emitted. Cancelling ctx aborts the resolution; partial
// batches already emitted stay valid.
func (s *NearbyService) Search(ctx context.Context, region domain.SearchRegion, emit func([]domain.Place) error) (int, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	cell := geospatial.CellForRegion(region.Center.Lat, region.Center.Lon, region.RadiusMeters)
	parent := cell.Parent()

	// The region cell alone suffices when the region sits comfortably
	// inside the parent; otherwise the circle may spill into neighboring
	// cells and those must be resolved too.
	targets := []geospatial.Cell{cell}
	if geospatial.DistanceToNearestEdge(region.Center.Lat, region.Center.Lon, parent) <= region.RadiusMeters {
		targets = geospatial.IntersectingCells(region.Center.Lat, region.Center.Lon, region.RadiusMeters, cell)
	}

	s.logger.Debug("resolving search region",
		"lat", region.Center.Lat, "lon", region.Center.Lon,
		"radius_m", region.RadiusMeters,
		"cell", cell.Token, "level", cell.Level, "cells", len(targets))

	total := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			metrics.SearchesIssued.WithLabelValues("cancelled").Inc()
			return total, err
		}

		places, err := s.resolveCell(ctx, target)
		if err != nil {
			metrics.SearchesIssued.WithLabelValues("error").Inc()
			return total, err
		}
		s.cachePlaces(ctx, target, places)

		inRange := filterByRadius(region, places)
		if len(inRange) == 0 {
			continue
		}
		if err := emit(inRange); err != nil {
			metrics.SearchesIssued.WithLabelValues("cancelled").Inc()
			return total, err
		}
		metrics.StreamBatches.Inc()
		total += len(inRange)

		s.archiveAsync(inRange)
	}

	metrics.SearchesIssued.WithLabelValues("ok").Inc()
	return total, nil
}

// resolveCell returns every place indexed under the cell. Deep cells are
// fetched from the upstream API; shallower cells descend into their four
// children, consulting the cell cache at each step.
func (s *NearbyService) resolveCell(ctx context.Context, cell geospatial.Cell) ([]domain.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cell.Level >= maxFetchLevel {
		radius := geospatial.CellDiameter(cell.Level) / 2
		places, err := s.upstream.SearchNearby(ctx, cell.Lat, cell.Lon, radius, 20)
		if err != nil {
			s.logger.Warn("upstream fetch failed for cell", "cell", cell.Token, "error", err)
			return nil, err
		}
		return places, nil
	}

	children := cell.Children()
	cached := s.cachedBatch(ctx, children)

	var places []domain.Place
	for _, child := range children {
		if hit, ok := cached[child.Token]; ok {
			places = append(places, hit...)
			continue
		}
		resolved, err := s.resolveCell(ctx, child)
		if err != nil {
			return nil, err
		}
		s.cachePlaces(ctx, child, resolved)
		places = append(places, resolved...)
	}
	return places, nil
}

// cachedBatch warms all child cells in one cache round trip. Only decodable
// hits are returned; a corrupted entry is deleted so the cell is refetched
// rather than trusted.
func (s *NearbyService) cachedBatch(ctx context.Context, cells []geospatial.Cell) map[string][]domain.Place {
	if s.cache == nil {
		return nil
	}
	keys := make([]string, len(cells))
	for i, cell := range cells {
		keys[i] = cellCacheKey(cell)
	}
	raw, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		return nil
	}

	hits := make(map[string][]domain.Place, len(raw))
	for i, cell := range cells {
		data, ok := raw[keys[i]]
		if !ok {
			metrics.CacheMisses.WithLabelValues("cell").Inc()
			continue
		}
		var places []domain.Place
		if err := json.Unmarshal(data, &places); err != nil {
			s.logger.Warn("discarding corrupted cell cache entry", "cell", cell.Token, "error", err)
			_ = s.cache.Delete(ctx, keys[i])
			metrics.CacheMisses.WithLabelValues("cell").Inc()
			continue
		}
		metrics.CacheHits.WithLabelValues("cell").Inc()
		hits[cell.Token] = places
	}
	return hits
}

func (s *NearbyService) cachePlaces(ctx context.Context, cell geospatial.Cell, places []domain.Place) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(places)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cellCacheKey(cell), data, cellCacheTTLSeconds); err != nil {
		s.logger.Warn("cell cache write failed", "cell", cell.Token, "error", err)
	}
}

func (s *NearbyService) archiveAsync(places []domain.Place) {
	if s.archive == nil {
		return
	}
	batch := make([]domain.Place, len(places))
	copy(batch, places)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.UpsertBatch(ctx, batch); err != nil {
			s.logger.Warn("place archive write failed", "count", len(batch), "error", err)
		}
	}()
}

func cellCacheKey(cell geospatial.Cell) string {
	return "places:cell:" + cell.Token
}

func filterByRadius(region domain.SearchRegion, places []domain.Place) []domain.Place {
	out := make([]domain.Place, 0, len(places))
	for _, p := range places {
		d := geospatial.Haversine(region.Center.Lat, region.Center.Lon, p.Location.Lat, p.Location.Lon)
		if d <= region.RadiusMeters {
			out = append(out, p)
		}
	}
	return out
}
