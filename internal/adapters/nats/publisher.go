package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// Subjects fan search events out per request id. Results are ephemeral;
// a gateway that missed a batch has already moved on to a newer request,
// so plain core NATS is used rather than JetStream.
const (
	subjectPrefix  = "places.results."
	completeSuffix = ".complete"
	errorSuffix    = ".error"
)

// event is the wire envelope shared by publisher and subscriber.
type event struct {
	RequestID uint64         `json:"request_id"`
	Places    []domain.Place `json:"places,omitempty"`
	Total     int            `json:"total,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Publisher implements ports.EventPublisher over NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher wraps an established connection. The caller owns the
// connection's lifecycle.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Connect creates a NATS connection with the retry policy shared by all
// components.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

func (p *Publisher) PublishPlacesBatch(ctx context.Context, requestID uint64, places []domain.Place) error {
	data, err := json.Marshal(event{RequestID: requestID, Places: places})
	if err != nil {
		return err
	}
	return p.conn.Publish(batchSubject(requestID), data)
}

func (p *Publisher) PublishSearchComplete(ctx context.Context, requestID uint64, total int) error {
	data, err := json.Marshal(event{RequestID: requestID, Total: total})
	if err != nil {
		return err
	}
	return p.conn.Publish(batchSubject(requestID)+completeSuffix, data)
}

func (p *Publisher) PublishSearchError(ctx context.Context, requestID uint64, message string) error {
	data, err := json.Marshal(event{RequestID: requestID, Message: message})
	if err != nil {
		return err
	}
	return p.conn.Publish(batchSubject(requestID)+errorSuffix, data)
}

func batchSubject(requestID uint64) string {
	return subjectPrefix + strconv.FormatUint(requestID, 10)
}
