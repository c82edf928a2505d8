package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/whereitwent/whereitwent/internal/adapters/http"
	natsadapter "github.com/whereitwent/whereitwent/internal/adapters/nats"
	"github.com/whereitwent/whereitwent/internal/adapters/openai"
	"github.com/whereitwent/whereitwent/internal/adapters/places"
	"github.com/whereitwent/whereitwent/internal/adapters/postgres"
	"github.com/whereitwent/whereitwent/internal/adapters/spending"
	"github.com/whereitwent/whereitwent/internal/adapters/valkey"
	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
	"github.com/whereitwent/whereitwent/internal/pkg/config"
	"github.com/whereitwent/whereitwent/internal/pkg/logging"
	"github.com/whereitwent/whereitwent/internal/pkg/telemetry"
	"github.com/whereitwent/whereitwent/internal/workflows"
)

func main() {
	cfg, err := config.Load("whereitwent-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache: the recursive cell search leans on it heavily, so treat it
	// as required rather than degrading to uncached upstream calls.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	// NATS connection shared by the WebSocket gateway and relay
	var events ports.EventPublisher
	var relay ports.EventSubscriber
	natsConn, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, result fan-out disabled", "error", err)
	} else {
		defer natsConn.Close()
		events = natsadapter.NewPublisher(natsConn)
		relay = natsadapter.NewSubscriber(natsConn)
	}

	// Upstream clients
	placesClient := places.New(cfg.Places.BaseURL, cfg.Places.APIKey)
	spendingClient := spending.New(cfg.Spending.BaseURL)
	summaryClient := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// Repos
	placeRepo := postgres.NewPlaceRepo(db)
	reportRepo := postgres.NewReportRepo(db)

	// Use cases
	nearbySvc := usecases.NewNearbyService(placesClient, cache, placeRepo, logger)
	spendingSvc := usecases.NewSpendingService(spendingClient, cache, logger)
	reportSvc := usecases.NewReportService(spendingSvc, summaryClient, reportRepo, logger)

	deps := &http.Dependencies{
		Nearby:   nearbySvc,
		Spending: spendingSvc,
		Reports:  reportSvc,
		Places:   placesClient,
		Archive:  placeRepo,
		Events:   events,
		Relay:    relay,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Temporal drives report builds when reachable; otherwise reports are
	// built inline so the endpoint still works in a minimal deployment.
	var temporalClient client.Client
	if tc, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort}); err != nil {
		slog.Warn("temporal unavailable, building reports inline", "error", err)
	} else {
		temporalClient = tc
		defer tc.Close()
	}

	startReport := func(c *fiber.Ctx, report *domain.Report) error {
		if temporalClient == nil {
			go func() {
				buildCtx, done := context.WithTimeout(context.Background(), 5*time.Minute)
				defer done()
				if _, err := reportSvc.Build(buildCtx, report); err != nil {
					slog.Error("inline report build failed", "report_id", report.ID, "error", err)
				}
			}()
			return nil
		}
		_, err := temporalClient.ExecuteWorkflow(c.UserContext(), client.StartWorkflowOptions{
			ID:        "report-" + report.ID,
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.ReportWorkflow, workflows.ReportInput{ReportID: report.ID})
		return err
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "WhereItWent API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.whereitwent.us",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps, startReport)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
