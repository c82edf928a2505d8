package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/whereitwent/whereitwent/internal/adapters/openai"
	"github.com/whereitwent/whereitwent/internal/adapters/postgres"
	"github.com/whereitwent/whereitwent/internal/adapters/spending"
	"github.com/whereitwent/whereitwent/internal/adapters/valkey"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
	"github.com/whereitwent/whereitwent/internal/pkg/config"
	"github.com/whereitwent/whereitwent/internal/pkg/logging"
	"github.com/whereitwent/whereitwent/internal/workflows"
)

func main() {
	cfg, err := config.Load("whereitwent-reporter")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")
	logger := slog.Default()

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	spendingClient := spending.New(cfg.Spending.BaseURL)
	summaryClient := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	reportRepo := postgres.NewReportRepo(db)
	spendingSvc := usecases.NewSpendingService(spendingClient, cache, logger)
	reportSvc := usecases.NewReportService(spendingSvc, summaryClient, reportRepo, logger)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ReportWorkflow)
	w.RegisterActivity(&workflows.ReportActivities{
		Reports:    reportSvc,
		Repository: reportRepo,
	})

	log.Println("reporter worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
