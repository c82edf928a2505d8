package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/pkg/metrics"
)

// SpendingService handles federal-award search logic.
type SpendingService struct {
	spending ports.SpendingAPI
	cache    ports.CacheService
	logger   *slog.Logger
}

// NewSpendingService creates a new SpendingService.
func NewSpendingService(spending ports.SpendingAPI, cache ports.CacheService, logger *slog.Logger) *SpendingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpendingService{spending: spending, cache: cache, logger: logger}
}

// SearchAwards validates the filters and resolves a page of awards, reading
// through the cache.
func (s *SpendingService) SearchAwards(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
	if !filters.HasAny() {
		return nil, fmt.Errorf("at least one of recipient or place of performance must be set")
	}
	if len(filters.AwardTypeCodes) == 0 {
		filters.AwardTypeCodes = domain.DefaultAwardTypeCodes()
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	cacheKey := spendingCacheKey(filters, page, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var result domain.SpendingResult
			if err := json.Unmarshal(data, &result); err == nil {
				metrics.CacheHits.WithLabelValues("spending").Inc()
				return &result, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("spending").Inc()
	}

	result, err := s.spending.SearchAwards(ctx, filters, page, limit)
	if err != nil {
		metrics.SpendingLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SpendingLookups.WithLabelValues("ok").Inc()

	// Cache for 10 minutes; award data moves slowly.
	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return result, nil
}

// AwardsForPlace searches by a place's state and zip, the shape the nearby
// stream hands to the spending surface.
func (s *SpendingService) AwardsForPlace(ctx context.Context, state, zip string, page, limit int) (*domain.SpendingResult, error) {
	if state == "" && zip == "" {
		return nil, fmt.Errorf("state or zip is required")
	}
	filters := domain.SpendingFilters{
		AwardTypeCodes: domain.DefaultAwardTypeCodes(),
		PlaceOfPerformanceLocations: []domain.PlaceOfPerformance{
			{Country: "USA", State: state, Zip: zip},
		},
	}
	return s.SearchAwards(ctx, filters, page, limit)
}

func spendingCacheKey(filters domain.SpendingFilters, page, limit int) string {
	var b strings.Builder
	b.WriteString("spending:")
	b.WriteString(strings.Join(filters.AwardTypeCodes, ""))
	for _, r := range filters.RecipientSearchText {
		b.WriteString(":" + r)
	}
	for _, p := range filters.PlaceOfPerformanceLocations {
		fmt.Fprintf(&b, ":%s-%s-%s", p.Country, p.State, p.Zip)
	}
	fmt.Fprintf(&b, ":%d:%d", page, limit)
	return b.String()
}
