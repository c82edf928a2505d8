package ports

import (
	"context"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// PlacesAPI is the upstream places provider.
type PlacesAPI interface {
	SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, maxResults int) ([]domain.Place, error)
	SearchText(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error)
	Autocomplete(ctx context.Context, input string, near *domain.GeoPoint) ([]string, error)
}

// SpendingAPI searches federal award data.
type SpendingAPI interface {
	SearchAwards(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error)
}

// SummaryGenerator produces a prose summary of a spending result.
type SummaryGenerator interface {
	Summarize(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error)
}

// EventPublisher publishes streamed search batches to a message broker.
type EventPublisher interface {
	PublishPlacesBatch(ctx context.Context, requestID uint64, places []domain.Place) error
	PublishSearchComplete(ctx context.Context, requestID uint64, total int) error
	PublishSearchError(ctx context.Context, requestID uint64, message string) error
}

// EventSubscriber consumes streamed search batches from a message broker.
type EventSubscriber interface {
	SubscribeSearch(ctx context.Context, requestID uint64, handler SearchEventHandler) (func(), error)
}

// SearchEventHandler receives every event of one search, in arrival order.
type SearchEventHandler interface {
	HandlePlaces(ctx context.Context, places []domain.Place) error
	HandleComplete(ctx context.Context, total int) error
	HandleError(ctx context.Context, message string) error
}

// CacheService provides read-through caching. GetMany returns only the
// keys that were present.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
