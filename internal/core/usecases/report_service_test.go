package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
)

// --- Mock ReportRepository ---

type mockReportRepo struct {
	reports map[string]*domain.Report
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[string]*domain.Report)}
}

func (m *mockReportRepo) Insert(ctx context.Context, report *domain.Report) error {
	cp := *report
	m.reports[report.ID] = &cp
	return nil
}

func (m *mockReportRepo) Update(ctx context.Context, report *domain.Report) error {
	if _, ok := m.reports[report.ID]; !ok {
		return errors.New("report not found")
	}
	cp := *report
	m.reports[report.ID] = &cp
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, errors.New("report not found")
	}
	return r, nil
}

func (m *mockReportRepo) List(ctx context.Context, limit int) ([]domain.Report, error) {
	out := make([]domain.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return out, nil
}

// --- Mock SummaryGenerator ---

type mockSummary struct {
	summarizeFn func(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error)
}

func (m *mockSummary) Summarize(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, report, awards)
	}
	return "", nil
}

// --- Tests ---

func TestChartByAmount(t *testing.T) {
	awards := []domain.Award{
		{AwardAmount: 500_000},
		{AwardAmount: 999_999},
		{AwardAmount: 1_000_000},
		{AwardAmount: 4_999_999},
		{AwardAmount: 12_000_000},
		{AwardAmount: 20_000_000},
		{AwardAmount: 95_000_000},
		{AwardAmount: 0}, // missing amounts are not counted
	}

	chart := usecases.ChartByAmount(awards)

	wantLabels := []string{"Under $1M", "$1M - $5M", "$5M - $20M", "Over $20M"}
	wantCounts := []int{2, 2, 1, 2}
	if len(chart.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v", chart.Labels)
	}
	for i := range wantLabels {
		if chart.Labels[i] != wantLabels[i] {
			t.Errorf("label[%d] = %q, want %q", i, chart.Labels[i], wantLabels[i])
		}
		if chart.Data[i] != wantCounts[i] {
			t.Errorf("count for %q = %d, want %d", wantLabels[i], chart.Data[i], wantCounts[i])
		}
	}
}

func TestChartByAgency(t *testing.T) {
	awards := []domain.Award{
		{AwardingAgency: "Department of Defense"},
		{AwardingAgency: "Department of Defense"},
		{AwardingAgency: "General Services Administration"},
		{AwardingAgency: ""},
	}

	chart := usecases.ChartByAgency(awards)

	if len(chart.Labels) != 3 {
		t.Fatalf("labels = %v, want 3 groups", chart.Labels)
	}
	if chart.Labels[0] != "Department of Defense" || chart.Data[0] != 2 {
		t.Errorf("first group = %s/%d, want Department of Defense/2", chart.Labels[0], chart.Data[0])
	}
	if chart.Labels[2] != "Unknown" || chart.Data[2] != 1 {
		t.Errorf("missing agency should group under Unknown, got %s/%d", chart.Labels[2], chart.Data[2])
	}
}

func buildReportService(api *mockSpendingAPI, summary *mockSummary, repo *mockReportRepo) *usecases.ReportService {
	spending := usecases.NewSpendingService(api, nil, nil)
	return usecases.NewReportService(spending, summary, repo, nil)
}

func TestReportService_CreateAndBuild(t *testing.T) {
	api := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			return &domain.SpendingResult{
				Awards: []domain.Award{
					{RecipientName: "ACME Corp", AwardAmount: 3_000_000},
					{RecipientName: "ACME Corp", AwardAmount: 45_000_000},
				},
			}, nil
		},
	}
	summary := &mockSummary{
		summarizeFn: func(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error) {
			return "Two contract awards totalling $48M.", nil
		},
	}
	repo := newMockReportRepo()
	svc := buildReportService(api, summary, repo)

	report, err := svc.Create(context.Background(), "ACME Corp", "VA", "22030")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.Status != domain.ReportPending {
		t.Fatalf("status after create = %s, want %s", report.Status, domain.ReportPending)
	}

	built, err := svc.Build(context.Background(), report)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.Status != domain.ReportComplete {
		t.Errorf("status after build = %s, want %s", built.Status, domain.ReportComplete)
	}
	if built.Summary == "" {
		t.Error("expected a generated summary")
	}
	if len(built.Chart.Labels) != 4 {
		t.Errorf("chart labels = %v", built.Chart.Labels)
	}

	stored, err := svc.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.ReportComplete {
		t.Errorf("persisted status = %s, want %s", stored.Status, domain.ReportComplete)
	}
}

func TestReportService_CreateRejectsEmptyScope(t *testing.T) {
	svc := buildReportService(&mockSpendingAPI{}, nil, newMockReportRepo())
	if _, err := svc.Create(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error for empty report scope")
	}
}

func TestReportService_BuildMarksFailed(t *testing.T) {
	api := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			return nil, errors.New("upstream down")
		},
	}
	repo := newMockReportRepo()
	svc := buildReportService(api, nil, repo)

	report, err := svc.Create(context.Background(), "ACME Corp", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Build(context.Background(), report); err == nil {
		t.Fatal("expected build error")
	}

	stored, err := svc.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.ReportFailed {
		t.Errorf("persisted status = %s, want %s", stored.Status, domain.ReportFailed)
	}
	if stored.Metadata["error"] == nil {
		t.Error("expected the failure cause in report metadata")
	}
}

func TestReportService_SummaryFailureMarksFailed(t *testing.T) {
	api := &mockSpendingAPI{
		searchAwardsFn: func(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
			return &domain.SpendingResult{Awards: []domain.Award{{AwardAmount: 100}}}, nil
		},
	}
	summary := &mockSummary{
		summarizeFn: func(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	repo := newMockReportRepo()
	svc := buildReportService(api, summary, repo)

	report, err := svc.Create(context.Background(), "ACME Corp", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Build(context.Background(), report); err == nil {
		t.Fatal("expected build error from summary failure")
	}

	stored, _ := svc.Get(context.Background(), report.ID)
	if stored.Status != domain.ReportFailed {
		t.Errorf("persisted status = %s, want %s", stored.Status, domain.ReportFailed)
	}
}
