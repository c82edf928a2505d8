package natsadapter

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/whereitwent/whereitwent/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber over NATS.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber wraps an established connection. The caller owns the
// connection's lifecycle.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeSearch receives every event of one search. The returned stop
// function unsubscribes; it is safe to call more than once.
func (s *Subscriber) SubscribeSearch(ctx context.Context, requestID uint64, handler ports.SearchEventHandler) (func(), error) {
	subject := batchSubject(requestID)

	batches, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		_ = handler.HandlePlaces(ctx, ev.Places)
	})
	if err != nil {
		return nil, err
	}

	completes, err := s.conn.Subscribe(subject+completeSuffix, func(msg *nats.Msg) {
		var ev event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		_ = handler.HandleComplete(ctx, ev.Total)
	})
	if err != nil {
		_ = batches.Unsubscribe()
		return nil, err
	}

	errorsSub, err := s.conn.Subscribe(subject+errorSuffix, func(msg *nats.Msg) {
		var ev event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		_ = handler.HandleError(ctx, ev.Message)
	})
	if err != nil {
		_ = batches.Unsubscribe()
		_ = completes.Unsubscribe()
		return nil, err
	}

	return func() {
		_ = batches.Unsubscribe()
		_ = completes.Unsubscribe()
		_ = errorsSub.Unsubscribe()
	}, nil
}
