package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
)

// Award-amount buckets used for the report chart.
var amountBuckets = []struct {
	label string
	min   float64
	max   float64
}{
	{"Under $1M", 0, 1_000_000},
	{"$1M - $5M", 1_000_000, 5_000_000},
	{"$5M - $20M", 5_000_000, 20_000_000},
	{"Over $20M", 20_000_000, 0}, // max 0 means unbounded
}

// ReportService builds spending reports: a chart over the award set plus a
// generated prose summary.
type ReportService struct {
	spending *SpendingService
	summary  ports.SummaryGenerator
	reports  ports.ReportRepository
	logger   *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(spending *SpendingService, summary ports.SummaryGenerator, reports ports.ReportRepository, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{spending: spending, summary: summary, reports: reports, logger: logger}
}

// ChartByAmount buckets awards into amount ranges.
func ChartByAmount(awards []domain.Award) domain.ChartData {
	labels := make([]string, len(amountBuckets))
	counts := make([]int, len(amountBuckets))
	for i, bucket := range amountBuckets {
		labels[i] = bucket.label
		for _, award := range awards {
			if award.AwardAmount <= 0 {
				continue
			}
			if award.AwardAmount >= bucket.min && (bucket.max == 0 || award.AwardAmount < bucket.max) {
				counts[i]++
			}
		}
	}
	return domain.ChartData{Labels: labels, Data: counts}
}

// ChartByAgency groups the awards by awarding agency.
func ChartByAgency(awards []domain.Award) domain.ChartData {
	order := make([]string, 0)
	grouped := make(map[string]int)
	for _, award := range awards {
		key := award.AwardingAgency
		if key == "" {
			key = "Unknown"
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key]++
	}
	counts := make([]int, len(order))
	for i, key := range order {
		counts[i] = grouped[key]
	}
	return domain.ChartData{Labels: order, Data: counts}
}

// Create registers a pending report for the given scope and returns it. The
// heavy lifting happens in Build, typically run by a workflow worker.
func (r *ReportService) Create(ctx context.Context, recipient, state, zip string) (*domain.Report, error) {
	if recipient == "" && state == "" && zip == "" {
		return nil, fmt.Errorf("report scope is empty: recipient, state or zip is required")
	}
	report := &domain.Report{
		ID:        uuid.NewString(),
		Recipient: recipient,
		State:     state,
		Zip:       zip,
		Status:    domain.ReportPending,
		CreatedAt: time.Now().UTC(),
	}
	if r.reports != nil {
		if err := r.reports.Insert(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Build resolves the awards for the report scope, charts them, generates a
// summary and persists the finished report. On failure the report is marked
// failed with the error recorded.
func (r *ReportService) Build(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	filters := domain.SpendingFilters{AwardTypeCodes: domain.DefaultAwardTypeCodes()}
	if report.Recipient != "" {
		filters.RecipientSearchText = []string{report.Recipient}
	}
	if report.State != "" || report.Zip != "" {
		filters.PlaceOfPerformanceLocations = []domain.PlaceOfPerformance{
			{Country: "USA", State: report.State, Zip: report.Zip},
		}
	}

	result, err := r.spending.SearchAwards(ctx, filters, 1, 100)
	if err != nil {
		return r.fail(ctx, report, fmt.Errorf("award search: %w", err))
	}

	report.Chart = ChartByAmount(result.Awards)

	if r.summary != nil {
		text, err := r.summary.Summarize(ctx, report, result.Awards)
		if err != nil {
			return r.fail(ctx, report, fmt.Errorf("summary generation: %w", err))
		}
		report.Summary = text
	}

	report.Status = domain.ReportComplete
	if r.reports != nil {
		if err := r.reports.Update(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Get returns a report by id.
func (r *ReportService) Get(ctx context.Context, id string) (*domain.Report, error) {
	if r.reports == nil {
		return nil, fmt.Errorf("report storage not configured")
	}
	return r.reports.GetByID(ctx, id)
}

// List returns the most recent reports.
func (r *ReportService) List(ctx context.Context, limit int) ([]domain.Report, error) {
	if r.reports == nil {
		return nil, fmt.Errorf("report storage not configured")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return r.reports.List(ctx, limit)
}

func (r *ReportService) fail(ctx context.Context, report *domain.Report, cause error) (*domain.Report, error) {
	report.Status = domain.ReportFailed
	if report.Metadata == nil {
		report.Metadata = map[string]any{}
	}
	report.Metadata["error"] = cause.Error()
	if r.reports != nil {
		if err := r.reports.Update(ctx, report); err != nil {
			r.logger.Warn("failed report could not be persisted", "report_id", report.ID, "error", err)
		}
	}
	return report, cause
}
