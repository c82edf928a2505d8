package ports

import (
	"context"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// PlaceRepository archives places discovered by nearby searches.
type PlaceRepository interface {
	UpsertBatch(ctx context.Context, places []domain.Place) error
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Place, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// ReportRepository persists generated spending reports.
type ReportRepository interface {
	Insert(ctx context.Context, report *domain.Report) error
	Update(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, limit int) ([]domain.Report, error)
}
