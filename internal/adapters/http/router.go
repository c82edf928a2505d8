package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, startReport func(c *fiber.Ctx, report *domain.Report) error) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1. Nearby resolution may fan out to many upstream calls,
	// so it gets a longer budget than the rest.
	v1 := app.Group("/v1")
	v1.Get("/places/nearby", timeout.NewWithContext(NearbyPlacesHandler(deps), 60*time.Second))
	v1.Get("/places/search", timeout.NewWithContext(SearchPlacesHandler(deps), 15*time.Second))
	v1.Get("/places/autocomplete", timeout.NewWithContext(AutocompletePlacesHandler(deps), 15*time.Second))
	v1.Get("/places/archived", timeout.NewWithContext(ArchivedPlacesHandler(deps), 15*time.Second))
	v1.Get("/spending", timeout.NewWithContext(SpendingHandler(deps), 30*time.Second))
	v1.Post("/spending/search", timeout.NewWithContext(SpendingSearchHandler(deps), 30*time.Second))
	v1.Post("/reports", CreateReportHandler(deps, startReport))
	v1.Get("/reports", timeout.NewWithContext(ListReportsHandler(deps), 15*time.Second))
	v1.Get("/reports/:id", timeout.NewWithContext(GetReportHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// WebSocket place stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/places", websocket.New(WebSocketHandler(deps)))
	app.Get("/ws/relay/:id", websocket.New(RelayHandler(deps.Relay)))
}
