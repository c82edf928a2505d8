package geosync

import (
	"context"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// EventHandlers is the full set of transport callbacks for one request
// generation. The controller swaps the whole set atomically before each
// submit, so a handler closure never answers to a prior generation.
type EventHandlers struct {
	OnPlaces   func(requestID uint64, places []domain.Place)
	OnComplete func(requestID uint64, total int)
	OnError    func(requestID uint64, message string)
}

// Transport is the channel over which location queries are sent and place
// events received. Implementations maintain at most one logical connection.
type Transport interface {
	// Connect is idempotent: calling it while already connected or
	// connecting reuses the existing connection.
	Connect(ctx context.Context) error
	Disconnect() error
	// Submit is safe to call immediately after Connect; submissions made
	// before the channel opens are queued and flushed exactly once.
	Submit(req domain.SearchRequest) error
	SetHandlers(h EventHandlers)
}

// Fix is one position reading from a continuous source.
type Fix struct {
	Location domain.GeoPoint
	Time     time.Time
}

// PositionSource delivers position fixes at its own cadence. Subscribe
// returns a stop function that cancels delivery. Callbacks must not be
// invoked synchronously from inside Subscribe itself.
type PositionSource interface {
	Subscribe(onFix func(Fix), onErr func(error)) (stop func(), err error)
}

// Viewport receives visual-only side effects: in live tracking the view
// pans to follow the user on every fix, regardless of whether a new query
// is issued.
type Viewport interface {
	PanTo(p domain.GeoPoint)
}
