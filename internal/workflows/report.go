package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReportTaskQueue is the task queue report workflows run on.
const ReportTaskQueue = "report-queue"

// ReportInput identifies the report to build.
type ReportInput struct {
	ReportID string
}

// ReportWorkflow builds a spending report: fetch the awards, chart them,
// generate the summary and persist the result. Each step retries up to
// three times; a step that still fails marks the report failed rather than
// leaving it pending forever.
func ReportWorkflow(ctx workflow.Context, input ReportInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting report workflow", "reportID", input.ReportID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	err := workflow.ExecuteActivity(ctx, "BuildReport", input.ReportID).Get(ctx, nil)
	if err != nil {
		logger.Warn("report build failed, marking failed", "reportID", input.ReportID, "error", err)
		_ = workflow.ExecuteActivity(ctx, "MarkReportFailed", input.ReportID, err.Error()).Get(ctx, nil)
		return err
	}

	logger.Info("Report built", "reportID", input.ReportID)
	return nil
}
