package workflows

import (
	"context"
	"fmt"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
)

// ReportActivities holds the activity implementations for the report
// workflow.
type ReportActivities struct {
	Reports    *usecases.ReportService
	Repository ports.ReportRepository
}

// BuildReport resolves a pending report end to end.
func (a *ReportActivities) BuildReport(ctx context.Context, reportID string) error {
	report, err := a.Repository.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	if report.Status == domain.ReportComplete {
		return nil // already built, retried delivery
	}

	if _, err := a.Reports.Build(ctx, report); err != nil {
		return fmt.Errorf("build report %s: %w", reportID, err)
	}
	return nil
}

// MarkReportFailed records the terminal failure of a report build.
func (a *ReportActivities) MarkReportFailed(ctx context.Context, reportID, cause string) error {
	report, err := a.Repository.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	report.Status = domain.ReportFailed
	if report.Metadata == nil {
		report.Metadata = map[string]any{}
	}
	report.Metadata["error"] = cause
	return a.Repository.Update(ctx, report)
}
