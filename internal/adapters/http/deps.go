package http

import (
	"github.com/nats-io/nats.go"

	"github.com/whereitwent/whereitwent/internal/adapters/postgres"
	"github.com/whereitwent/whereitwent/internal/adapters/valkey"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Nearby   *usecases.NearbyService
	Spending *usecases.SpendingService
	Reports  *usecases.ReportService
	Places   ports.PlacesAPI
	Archive  ports.PlaceRepository
	Events   ports.EventPublisher
	Relay    ports.EventSubscriber
	// NATS is the shared broker connection behind Events and Relay,
	// kept for readiness checks.
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
