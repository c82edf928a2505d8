package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/whereitwent/whereitwent/internal/adapters/http"
	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
)

// ---- Mock upstreams ----

type mockPlacesAPI struct {
	searchNearbyFn func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error)
	searchTextFn   func(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error)
	autocompleteFn func(ctx context.Context, input string, near *domain.GeoPoint) ([]string, error)
}

func (m *mockPlacesAPI) SearchNearby(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
	if m.searchNearbyFn != nil {
		return m.searchNearbyFn(ctx, lat, lon, radius, maxResults)
	}
	return nil, nil
}

func (m *mockPlacesAPI) SearchText(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, query, near, maxResults)
	}
	return nil, nil
}

func (m *mockPlacesAPI) Autocomplete(ctx context.Context, input string, near *domain.GeoPoint) ([]string, error) {
	if m.autocompleteFn != nil {
		return m.autocompleteFn(ctx, input, near)
	}
	return nil, nil
}

type mockSpendingAPI struct {
	searchAwardsFn func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error)
}

func (m *mockSpendingAPI) SearchAwards(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
	if m.searchAwardsFn != nil {
		return m.searchAwardsFn(ctx, filters, page, limit)
	}
	return &domain.SpendingResult{}, nil
}

type mockReportRepo struct {
	reports map[string]*domain.Report
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[string]*domain.Report)}
}

func (m *mockReportRepo) Insert(ctx context.Context, r *domain.Report) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *mockReportRepo) Update(ctx context.Context, r *domain.Report) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	if r, ok := m.reports[id]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

func (m *mockReportRepo) List(ctx context.Context, limit int) ([]domain.Report, error) {
	out := make([]domain.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return out, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps, nil)
	return app
}

func makeDeps(places *mockPlacesAPI, spending *mockSpendingAPI) *handler.Dependencies {
	if places == nil {
		places = &mockPlacesAPI{}
	}
	if spending == nil {
		spending = &mockSpendingAPI{}
	}
	spendingSvc := usecases.NewSpendingService(spending, nil, nil)
	return &handler.Dependencies{
		Nearby:   usecases.NewNearbyService(places, nil, nil, nil),
		Spending: spendingSvc,
		Reports:  usecases.NewReportService(spendingSvc, nil, newMockReportRepo(), nil),
		Places:   places,
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// ---- Tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNearbyPlaces_Success(t *testing.T) {
	places := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			// Sits exactly at the queried region center, so it always
			// survives the radius filter.
			return []domain.Place{
				{Name: "County Courthouse", Location: domain.GeoPoint{Lat: 38.846, Lon: -77.306}, State: "Virginia", ZipCode: "22030"},
			}, nil
		},
	}
	app := setupApp(makeDeps(places, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=38.846&lon=-77.306&radius=100", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Places []domain.Place `json:"places"`
		Total  int            `json:"total"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total == 0 || len(result.Places) == 0 {
		t.Fatalf("expected places, got %+v", result)
	}
	if result.Places[0].Name != "County Courthouse" {
		t.Errorf("unexpected place: %+v", result.Places[0])
	}
}

func TestNearbyPlaces_RequiresCoordinates(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?radius=100", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNearbyPlaces_AcceptsZoom(t *testing.T) {
	var gotRadius float64
	places := &mockPlacesAPI{
		searchNearbyFn: func(ctx context.Context, lat, lon, radius float64, maxResults int) ([]domain.Place, error) {
			gotRadius = radius
			return nil, nil
		},
	}
	app := setupApp(makeDeps(places, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=38.846&lon=-77.306&zoom=16", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	// Zoom 16 maps to roughly 76m, so per-cell fetch radii stay under it.
	if gotRadius <= 0 || gotRadius > 200 {
		t.Errorf("upstream fetch radius = %f, want a small cell radius", gotRadius)
	}
}

func TestSearchPlaces_RequiresQuery(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/search", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearchPlaces_Success(t *testing.T) {
	places := &mockPlacesAPI{
		searchTextFn: func(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error) {
			return []domain.Place{{Name: "George Mason University", State: "Virginia", ZipCode: "22030"}}, nil
		},
	}
	app := setupApp(makeDeps(places, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/search?q=mason", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result []domain.Place
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result) != 1 || result[0].Name != "George Mason University" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSpending_RequiresFilter(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/spending", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSpending_ByStateAndZip(t *testing.T) {
	var gotFilters domain.SpendingFilters
	spending := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			gotFilters = filters
			return &domain.SpendingResult{
				Awards: []domain.Award{{RecipientName: "ACME Corp", AwardAmount: 1_200_000}},
				Page:   page,
				Total:  1,
			}, nil
		},
	}
	app := setupApp(makeDeps(nil, spending))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/spending?state=VA&zip=22030", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if len(gotFilters.PlaceOfPerformanceLocations) != 1 {
		t.Fatalf("filters not forwarded: %+v", gotFilters)
	}
	if loc := gotFilters.PlaceOfPerformanceLocations[0]; loc.State != "VA" || loc.Zip != "22030" || loc.Country != "USA" {
		t.Errorf("unexpected location filter: %+v", loc)
	}

	var result handler.PaginatedResponse
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Pagination.Total != 1 {
		t.Errorf("pagination total = %d, want 1", result.Pagination.Total)
	}
}

func TestSpendingSearch_PostBody(t *testing.T) {
	spending := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			return &domain.SpendingResult{Total: 2}, nil
		},
	}
	app := setupApp(makeDeps(nil, spending))

	body := `{"filters":{"award_type_codes":["A"],"recipient_search_text":["ACME"]},"page":1,"limit":5}`
	req := httptest.NewRequest("POST", "/v1/spending/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
}

func TestCreateAndGetReport(t *testing.T) {
	deps := makeDeps(nil, nil)
	app := setupApp(deps)

	body := `{"recipient":"ACME Corp","state":"VA"}`
	req := httptest.NewRequest("POST", "/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var report domain.Report
	if err := json.Unmarshal(readBody(t, resp.Body), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.ID == "" || report.Status != domain.ReportPending {
		t.Fatalf("unexpected report: %+v", report)
	}

	getResp, err := app.Test(httptest.NewRequest("GET", "/v1/reports/"+report.ID, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}
}

func TestCreateReport_RejectsEmptyScope(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	req := httptest.NewRequest("POST", "/v1/reports", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGraphQL_SearchAwards(t *testing.T) {
	spending := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			return &domain.SpendingResult{
				Awards: []domain.Award{{RecipientName: "ACME Corp", AwardAmount: 5_500_000}},
			}, nil
		},
	}
	app := setupApp(makeDeps(nil, spending))

	query := `{"query":"{ searchAwards(recipient: \"ACME\") { recipient_name award_amount } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			SearchAwards []struct {
				RecipientName string  `json:"recipient_name"`
				AwardAmount   float64 `json:"award_amount"`
			} `json:"searchAwards"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.SearchAwards) != 1 || result.Data.SearchAwards[0].RecipientName != "ACME Corp" {
		t.Fatalf("unexpected data: %+v", result.Data)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-API-Version"); got == "" {
		t.Error("X-API-Version header missing")
	}
}
