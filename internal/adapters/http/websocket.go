package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/core/ports"
	"github.com/whereitwent/whereitwent/internal/pkg/metrics"
)

// wsFrame is the envelope for every socket message, both directions.
// Inbound frames are location updates; outbound frames stream the places
// resolved for that request id.
type wsFrame struct {
	Type      string         `json:"type"`
	RequestID uint64         `json:"request_id"`
	Latitude  float64        `json:"latitude,omitempty"`
	Longitude float64        `json:"longitude,omitempty"`
	Radius    float64        `json:"radius,omitempty"`
	Places    []domain.Place `json:"places,omitempty"`
	Total     int            `json:"total,omitempty"`
	Message   string         `json:"message,omitempty"`
}

const (
	frameLocationUpdate = "location_update"
	framePlacesUpdate   = "places_update"
	framePlacesComplete = "places_complete"
	frameError          = "error"
)

// WebSocketHandler streams nearby-place results. Each location_update starts
// a search for its request id; a newer update cancels the search in flight,
// so at most one search runs per connection. Every outbound frame carries
// the request id it answers; clients drop frames for superseded ids.
//
// When an event publisher is present the search results also fan out on
// the broker, so other gateway instances can relay them.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var writeMu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					writeMu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					writeMu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		var cancelSearch context.CancelFunc
		var searchWG sync.WaitGroup

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var f wsFrame
			if err := json.Unmarshal(msg, &f); err != nil {
				_ = writeJSON(wsFrame{Type: frameError, Message: "invalid JSON"})
				continue
			}
			if f.Type != frameLocationUpdate {
				_ = writeJSON(wsFrame{Type: frameError, RequestID: f.RequestID, Message: "unknown frame type: " + f.Type})
				continue
			}

			// A newer request makes the running search stale.
			if cancelSearch != nil {
				cancelSearch()
				searchWG.Wait()
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancelSearch = cancel

			region := domain.NewSearchRegion(f.Latitude, f.Longitude, f.Radius)
			requestID := f.RequestID

			searchWG.Add(1)
			go func() {
				defer searchWG.Done()
				runSearch(ctx, deps, region, requestID, writeJSON)
			}()
		}

		if cancelSearch != nil {
			cancelSearch()
		}
		searchWG.Wait()
		close(done)
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

func runSearch(ctx context.Context, deps *Dependencies, region domain.SearchRegion, requestID uint64, writeJSON func(any) error) {
	total, err := deps.Nearby.Search(ctx, region, func(batch []domain.Place) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = writeJSON(wsFrame{Type: framePlacesUpdate, RequestID: requestID, Places: batch})
		if deps.Events != nil {
			_ = deps.Events.PublishPlacesBatch(ctx, requestID, batch)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return // superseded, stay silent
		}
		_ = writeJSON(wsFrame{Type: frameError, RequestID: requestID, Message: err.Error()})
		if deps.Events != nil {
			_ = deps.Events.PublishSearchError(ctx, requestID, err.Error())
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	_ = writeJSON(wsFrame{Type: framePlacesComplete, RequestID: requestID, Total: total})
	if deps.Events != nil {
		_ = deps.Events.PublishSearchComplete(ctx, requestID, total)
	}
}

// wsRelay re-frames broker events for one request id onto a websocket.
type wsRelay struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	requestID uint64
}

func (r *wsRelay) write(f wsFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *wsRelay) HandlePlaces(ctx context.Context, places []domain.Place) error {
	return r.write(wsFrame{Type: framePlacesUpdate, RequestID: r.requestID, Places: places})
}

func (r *wsRelay) HandleComplete(ctx context.Context, total int) error {
	return r.write(wsFrame{Type: framePlacesComplete, RequestID: r.requestID, Total: total})
}

func (r *wsRelay) HandleError(ctx context.Context, message string) error {
	return r.write(wsFrame{Type: frameError, RequestID: r.requestID, Message: message})
}

// RelayHandler streams events published by other gateway instances for a
// given request id. Used by operators to tap a live search.
func RelayHandler(sub ports.EventSubscriber) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		if sub == nil {
			return
		}

		requestID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			data, _ := json.Marshal(wsFrame{Type: frameError, Message: "invalid request id"})
			_ = c.WriteMessage(websocket.TextMessage, data)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stop, err := sub.SubscribeSearch(ctx, requestID, &wsRelay{conn: c, requestID: requestID})
		if err != nil {
			return
		}
		defer stop()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}
