package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/geosync"
)

// ErrReconnectExhausted is surfaced once the reconnect budget runs out.
var ErrReconnectExhausted = errors.New("socket: reconnect attempts exhausted")

// Conn is the slice of *websocket.Conn the client needs; tests substitute
// an in-memory implementation.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Dialer opens one websocket connection to the place-stream endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

// DefaultDialer dials with the fasthttp websocket client.
func DefaultDialer(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options configures the socket client.
type Options struct {
	URL string
	// MaxReconnects bounds automatic reconnection after a transport-level
	// disconnect. Once exceeded, a fatal transport error is surfaced
	// through the registered error handler instead of retrying forever.
	MaxReconnects int
	ReconnectWait time.Duration
	Dialer        Dialer
	Logger        *slog.Logger
}

// Client implements geosync.Transport over one persistent websocket.
// At most one logical connection exists; Connect is idempotent, and
// submissions made before the channel opens are queued and flushed exactly
// once when it does.
type Client struct {
	mu       sync.Mutex
	opts     Options
	state    connState
	conn     Conn
	queue    []domain.SearchRequest
	handlers geosync.EventHandlers
	lastID   uint64
	fatalErr error
	closed   bool
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// NewClient builds a client for the given endpoint.
func NewClient(opts Options) *Client {
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{opts: opts}
}

// Connect opens the connection in the background. Calling it while already
// connected or connecting is a no-op returning the existing connection's
// state.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("socket: client closed")
	}
	if c.state != stateDisconnected {
		return nil
	}
	// A fresh Connect after a terminal failure restarts the dial loop
	// with a new reconnect budget.
	c.fatalErr = nil
	c.state = stateConnecting
	go c.run(ctx)
	return nil
}

// run owns the dial/read/reconnect loop.
func (c *Client) run(ctx context.Context) {
	attempts := 0
	for {
		wsc, err := c.opts.Dialer(ctx, c.opts.URL)
		if err != nil {
			attempts++
			if attempts > c.opts.MaxReconnects {
				c.fatal(fmt.Errorf("%w: %v", ErrReconnectExhausted, err))
				return
			}
			c.opts.Logger.Warn("socket dial failed, retrying",
				"attempt", attempts, "max", c.opts.MaxReconnects, "error", err)
			select {
			case <-ctx.Done():
				c.fatal(ctx.Err())
				return
			case <-time.After(c.opts.ReconnectWait):
			}
			continue
		}
		attempts = 0

		if !c.opened(wsc) {
			_ = wsc.Close()
			return
		}

		err = c.readLoop(wsc)
		c.mu.Lock()
		closed := c.closed
		c.conn = nil
		if !closed {
			c.state = stateConnecting
		}
		c.mu.Unlock()
		if closed {
			return
		}
		c.opts.Logger.Warn("socket connection lost, reconnecting", "error", err)
	}
}

// opened transitions to connected and flushes the pending queue exactly
// once. Returns false if the client was closed meanwhile.
func (c *Client) opened(wsc Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = wsc
	c.state = stateConnected
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, req := range pending {
		if err := wsc.WriteJSON(LocationUpdateFrame(req)); err != nil {
			c.opts.Logger.Warn("flush of queued request failed", "request_id", req.RequestID, "error", err)
			return true // the read loop will notice the broken conn
		}
	}
	return true
}

func (c *Client) readLoop(wsc Conn) error {
	for {
		_, data, err := wsc.ReadMessage()
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.opts.Logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f Frame) {
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()

	switch f.Type {
	case TypePlacesUpdate:
		if h.OnPlaces != nil {
			h.OnPlaces(f.RequestID, f.Places)
		}
	case TypePlacesComplete:
		if h.OnComplete != nil {
			h.OnComplete(f.RequestID, f.Total)
		}
	case TypeError:
		if h.OnError != nil {
			h.OnError(f.RequestID, f.Message)
		}
	default:
		c.opts.Logger.Debug("ignoring unknown frame type", "type", f.Type)
	}
}

// fatal routes a terminal transport failure into the current generation's
// error handler so the active session is marked failed.
func (c *Client) fatal(err error) {
	c.mu.Lock()
	c.state = stateDisconnected
	c.fatalErr = err
	c.queue = nil
	h := c.handlers
	id := c.lastID
	c.mu.Unlock()

	c.opts.Logger.Error("socket transport failed", "error", err)
	if h.OnError != nil {
		h.OnError(id, err.Error())
	}
}

// Submit sends a location update, queueing it if the channel is not open
// yet. Queued requests are never silently dropped and never double-sent.
// After the reconnect budget runs out, Submit fails immediately until a
// fresh Connect restarts the dial loop.
func (c *Client) Submit(req domain.SearchRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("socket: client closed")
	}
	if c.fatalErr != nil {
		return c.fatalErr
	}
	c.lastID = req.RequestID

	if c.state != stateConnected || c.conn == nil {
		c.queue = append(c.queue, req)
		return nil
	}
	return c.conn.WriteJSON(LocationUpdateFrame(req))
}

// SetHandlers swaps the full handler set atomically.
func (c *Client) SetHandlers(h geosync.EventHandlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	c.state = stateDisconnected
	wsc := c.conn
	c.conn = nil
	c.mu.Unlock()

	if wsc != nil {
		return wsc.Close()
	}
	return nil
}
