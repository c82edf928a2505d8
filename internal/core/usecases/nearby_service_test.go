package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
	"github.com/whereitwent/whereitwent/internal/pkg/geospatial"
)

// --- Mock PlacesAPI ---

type mockPlacesAPI struct {
	mu             sync.Mutex
	searchNearbyFn func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error)
	calls          int
}

func (m *mockPlacesAPI) SearchNearby(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.searchNearbyFn != nil {
		return m.searchNearbyFn(ctx, lat, lon, radius, maxResults)
	}
	return nil, nil
}

func (m *mockPlacesAPI) SearchText(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error) {
	return nil, nil
}

func (m *mockPlacesAPI) Autocomplete(ctx context.Context, input string, near *domain.GeoPoint) ([]string, error) {
	return nil, nil
}

func (m *mockPlacesAPI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock CacheService ---

type mockCache struct {
	mu           sync.Mutex
	store        map[string][]byte
	getCalls     int
	getManyCalls int
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if data, ok := m.store[key]; ok {
		return data, nil
	}
	return nil, errors.New("cache miss")
}

func (m *mockCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getManyCalls++
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if data, ok := m.store[k]; ok {
			out[k] = data
		}
	}
	return out, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// --- Tests ---

// Fairfax, VA. Small radius so the region cell is at or beyond the fetch
// cutoff and resolves with a single upstream call.
const (
	testLat = 38.846224
	testLon = -77.306373
)

func nearPlace(name string, dLat, dLon float64) domain.Place {
	return domain.Place{
		Name:     name,
		Location: domain.GeoPoint{Lat: testLat + dLat, Lon: testLon + dLon},
		State:    "Virginia",
		ZipCode:  "22030",
	}
}

func TestNearbySearch_StreamsAndFilters(t *testing.T) {
	api := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			return []domain.Place{
				nearPlace("City Hall", 0, 0),
				// Roughly 2km north, outside a 50m region.
				nearPlace("Far Station", 0.018, 0),
			}, nil
		},
	}

	svc := usecases.NewNearbyService(api, nil, nil, nil)
	region := domain.NewSearchRegion(testLat, testLon, 50)

	var got []domain.Place
	total, err := svc.Search(context.Background(), region, func(batch []domain.Place) error {
		got = append(got, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != len(got) {
		t.Fatalf("total %d does not match emitted count %d", total, len(got))
	}
	for _, p := range got {
		if p.Name == "Far Station" {
			t.Errorf("place outside the region was not filtered out")
		}
	}
	if len(got) == 0 {
		t.Fatal("expected at least the in-range place to be emitted")
	}
}

func TestNearbySearch_UsesCellCache(t *testing.T) {
	api := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			return []domain.Place{nearPlace("Courthouse", 0, 0)}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewNearbyService(api, cache, nil, nil)
	region := domain.NewSearchRegion(testLat, testLon, 600)

	noop := func([]domain.Place) error { return nil }
	if _, err := svc.Search(context.Background(), region, noop); err != nil {
		t.Fatalf("first search: %v", err)
	}
	firstCalls := api.callCount()
	if firstCalls == 0 {
		t.Fatal("expected upstream fetches on a cold cache")
	}

	if _, err := svc.Search(context.Background(), region, noop); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if api.callCount() != firstCalls {
		t.Errorf("second search hit upstream %d times, want 0 (all cells cached)",
			api.callCount()-firstCalls)
	}

	// Child cells are looked up in batches, one round trip per descent.
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.getManyCalls == 0 {
		t.Error("expected batched cache lookups during cell descent")
	}
	if cache.getCalls != 0 {
		t.Errorf("cell descent used %d single-key lookups, want 0", cache.getCalls)
	}
}

func TestNearbySearch_CorruptedCacheEntryRefetched(t *testing.T) {
	api := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			return []domain.Place{nearPlace("Library", 0, 0)}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewNearbyService(api, cache, nil, nil)
	region := domain.NewSearchRegion(testLat, testLon, 600)

	noop := func([]domain.Place) error { return nil }
	if _, err := svc.Search(context.Background(), region, noop); err != nil {
		t.Fatalf("first search: %v", err)
	}

	// Corrupt every cached entry; the next search must fall back to the
	// upstream rather than fail or return garbage.
	cache.mu.Lock()
	for key := range cache.store {
		cache.store[key] = []byte("{not json")
	}
	cache.mu.Unlock()

	before := api.callCount()
	total, err := svc.Search(context.Background(), region, noop)
	if err != nil {
		t.Fatalf("search over corrupted cache: %v", err)
	}
	if api.callCount() == before {
		t.Error("expected refetch after corrupted cache entries")
	}
	if total == 0 {
		t.Error("expected places despite corrupted cache")
	}

	// Refetched results must be written back as valid JSON.
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for key, data := range cache.store {
		var places []domain.Place
		if err := json.Unmarshal(data, &places); err != nil {
			t.Errorf("cache entry %s still invalid after refetch: %v", key, err)
		}
	}
}

func TestNearbySearch_UpstreamErrorPropagates(t *testing.T) {
	api := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			return nil, errors.New("quota exhausted")
		},
	}
	svc := usecases.NewNearbyService(api, nil, nil, nil)
	region := domain.NewSearchRegion(testLat, testLon, 100)

	_, err := svc.Search(context.Background(), region, func([]domain.Place) error { return nil })
	if err == nil {
		t.Fatal("expected upstream error to propagate")
	}
}

func TestNearbySearch_CancelledContextStops(t *testing.T) {
	api := &mockPlacesAPI{}
	svc := usecases.NewNearbyService(api, nil, nil, nil)
	region := domain.NewSearchRegion(testLat, testLon, 600)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, region, func([]domain.Place) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if api.callCount() != 0 {
		t.Errorf("upstream called %d times after cancellation", api.callCount())
	}
}

func TestLevelForRadiusMatchesFetchCutoff(t *testing.T) {
	// A 50m region maps to a level at or beyond the fetch cutoff, so a
	// search resolves without descending into children.
	if level := geospatial.LevelForRadius(50); level < 16 {
		t.Fatalf("LevelForRadius(50) = %d, want >= 16", level)
	}
}
