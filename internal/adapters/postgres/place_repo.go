package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// PlaceRepo implements ports.PlaceRepository with pgx. Places resolved from
// the upstream API are archived here so text search and offline lookups
// survive cache expiry.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

// UpsertBatch inserts many places using pgx.Batch. A place is identified by
// its name and coordinates; repeated sightings refresh the metadata.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.Place) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(`
			INSERT INTO places (name, lat, lon, state, zip_code, types)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name, lat, lon) DO UPDATE
			SET state = EXCLUDED.state, zip_code = EXCLUDED.zip_code,
			    types = EXCLUDED.types, last_seen_at = now()
		`, p.Name, p.Location.Lat, p.Location.Lon, p.State, p.ZipCode, p.Types)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// FindNearby returns archived places within radiusMeters of the given
// point, closest first.
func (r *PlaceRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Place, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, lat, lon, COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(types, '{}')
		FROM places
		WHERE earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lon)) <= $3
		ORDER BY earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lon))
		LIMIT $4
	`, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlaces(rows)
}

// Search performs full-text search on place names.
func (r *PlaceRepo) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, lat, lon, COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(types, '{}')
		FROM places
		WHERE to_tsvector('english', name) @@ plainto_tsquery('english', $1)
		   OR name ILIKE '%' || $1 || '%'
		ORDER BY last_seen_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func scanPlaces(rows pgx.Rows) ([]domain.Place, error) {
	var places []domain.Place
	for rows.Next() {
		var p domain.Place
		if err := rows.Scan(&p.Name, &p.Location.Lat, &p.Location.Lon, &p.State, &p.ZipCode, &p.Types); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}
