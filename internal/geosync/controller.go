package geosync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/pkg/geospatial"
)

// Mode is the controller's operating mode. Exactly one is active at a time.
type Mode int

const (
	// ModeExplore: the view is user-driven and queries follow view motion.
	ModeExplore Mode = iota
	// ModeLiveTracking: the view follows a continuous position source.
	ModeLiveTracking
)

func (m Mode) String() string {
	if m == ModeLiveTracking {
		return "live_tracking"
	}
	return "explore"
}

// View is the map view state as reported by the presentation layer. The
// controller only ever reads it from the events that carry it.
type View struct {
	Center domain.GeoPoint
	Zoom   float64
}

// Options tunes the controller's debounce cadences and movement gate.
type Options struct {
	// MoveSettle is the explore-mode view-settle debounce delay.
	MoveSettle time.Duration
	// ZoomSettle is the live-tracking zoom-settle debounce delay.
	ZoomSettle time.Duration
	// MoveThreshold is the minimum movement in meters between the last
	// fetch position and a fix before a new query is issued.
	MoveThreshold float64
	Logger        *slog.Logger
}

func (o *Options) fill() {
	if o.MoveSettle <= 0 {
		o.MoveSettle = 1000 * time.Millisecond
	}
	if o.ZoomSettle <= 0 {
		o.ZoomSettle = 500 * time.Millisecond
	}
	if o.MoveThreshold <= 0 {
		o.MoveThreshold = 20
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Controller decides when to issue nearby-place queries and reconciles the
// streamed results against possibly-superseded requests. All callbacks
// (view events, position fixes, timer fires, transport events) serialize on
// one mutex; generation ids provide the staleness discipline.
type Controller struct {
	mu sync.Mutex

	opts      Options
	transport Transport
	positions PositionSource
	viewport  Viewport
	store     *Store

	mode       Mode
	requestSeq uint64
	active     *Session
	view       View
	lastFetch  *domain.GeoPoint

	moveTimer    *time.Timer
	zoomTimer    *time.Timer
	stopTracking func()
	closed       bool

	now func() time.Time
}

// NewController wires a controller to its collaborators. Call Start to
// begin operating in Explore mode.
func NewController(t Transport, ps PositionSource, vp Viewport, store *Store, opts Options) *Controller {
	opts.fill()
	return &Controller{
		opts:      opts,
		transport: t,
		positions: ps,
		viewport:  vp,
		store:     store,
		mode:      ModeExplore,
		now:       time.Now,
	}
}

// Start records the initial view and issues the first query immediately.
func (c *Controller) Start(initial View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = initial
	c.issueLocked(c.view.Center, RadiusForZoom(c.view.Zoom))
}

// Mode returns the active operating mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// LastFetchPosition returns the position of the most recent issued fetch in
// live tracking, if any.
func (c *Controller) LastFetchPosition() (domain.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFetch == nil {
		return domain.GeoPoint{}, false
	}
	return *c.lastFetch, true
}

// ActiveRequestID returns the id of the newest issued request.
func (c *Controller) ActiveRequestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestSeq
}

// SetMode switches the operating mode in response to explicit user action.
// Switching to the already-active mode is a no-op.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setModeLocked(m)
}

// OnViewMoveEnd handles the end of a pan/zoom gesture. In Explore mode it
// restarts the settle timer; only the final position after motion stops is
// queried. No distance threshold applies: panning is explicit user intent.
func (c *Controller) OnViewMoveEnd(view View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.view = view
	if c.mode != ModeExplore || c.closed {
		return
	}

	if c.moveTimer != nil {
		c.moveTimer.Stop()
	}
	c.moveTimer = time.AfterFunc(c.opts.MoveSettle, c.moveSettled)
}

func (c *Controller) moveSettled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeExplore || c.closed {
		return
	}
	// Then-current view state, not the state when the timer was armed.
	c.issueLocked(c.view.Center, RadiusForZoom(c.view.Zoom))
}

// OnZoomEnd handles the end of a zoom gesture while live tracking: zooming
// does not move the user but changes the desired radius, so it gets its own
// settle timer, independent of the movement gate.
func (c *Controller) OnZoomEnd(zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.view.Zoom = zoom
	if c.mode != ModeLiveTracking || c.closed {
		return
	}

	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	c.zoomTimer = time.AfterFunc(c.opts.ZoomSettle, c.zoomSettled)
}

func (c *Controller) zoomSettled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeLiveTracking || c.closed {
		return
	}

	origin := c.view.Center
	if c.lastFetch != nil {
		origin = *c.lastFetch
	}
	c.issueLocked(origin, RadiusForZoom(c.view.Zoom))
}

// Close cancels pending timers and stops position tracking. The transport
// is left to its owner.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelTimersLocked()
	if c.stopTracking != nil {
		c.stopTracking()
		c.stopTracking = nil
	}
	c.active = nil
}

// setModeLocked is the single transition point between modes. It owns the
// clearing of mode-local memory: pending debounce timers of the exited mode
// and the last-fetch position never leak across a transition.
func (c *Controller) setModeLocked(m Mode) {
	if m == c.mode || c.closed {
		return
	}

	c.cancelTimersLocked()
	c.lastFetch = nil

	if c.mode == ModeLiveTracking && c.stopTracking != nil {
		c.stopTracking()
		c.stopTracking = nil
	}

	c.mode = m
	c.opts.Logger.Info("mode switched", "mode", m.String())

	switch m {
	case ModeExplore:
		c.issueLocked(c.view.Center, RadiusForZoom(c.view.Zoom))
	case ModeLiveTracking:
		stop, err := c.positions.Subscribe(c.onFix, c.onTrackingError)
		if err != nil {
			c.trackingFailedLocked(err.Error())
			return
		}
		c.stopTracking = stop
	}
}

// onFix processes one position fix while live tracking. The visual pan is
// unconditional; the query is gated by movement significance.
func (c *Controller) onFix(fix Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeLiveTracking || c.closed {
		return
	}

	if c.viewport != nil {
		c.viewport.PanTo(fix.Location)
	}
	c.view.Center = fix.Location

	if c.lastFetch != nil {
		moved := geospatial.Haversine(
			c.lastFetch.Lat, c.lastFetch.Lon,
			fix.Location.Lat, fix.Location.Lon,
		)
		if moved < c.opts.MoveThreshold {
			return
		}
	}

	loc := fix.Location
	c.lastFetch = &loc
	c.issueLocked(loc, RadiusForZoom(c.view.Zoom))
}

func (c *Controller) onTrackingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeLiveTracking || c.closed {
		return
	}
	c.trackingFailedLocked(err.Error())
}

// trackingFailedLocked surfaces a position-source failure and forces the
// fallback to Explore: tracking cannot silently hang.
func (c *Controller) trackingFailedLocked(msg string) {
	c.opts.Logger.Warn("position source failed, falling back to explore", "error", msg)
	if c.stopTracking != nil {
		c.stopTracking()
		c.stopTracking = nil
	}
	c.mode = ModeExplore
	c.cancelTimersLocked()
	c.lastFetch = nil
	c.issueLocked(c.view.Center, RadiusForZoom(c.view.Zoom))
	c.store.SetError(msg)
}

func (c *Controller) cancelTimersLocked() {
	if c.moveTimer != nil {
		c.moveTimer.Stop()
		c.moveTimer = nil
	}
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
		c.zoomTimer = nil
	}
}

// issueLocked is the shared request-issuance path: bump the generation
// counter, supersede the active session, reset the store, re-arm transport
// handlers scoped to the new id, and submit.
func (c *Controller) issueLocked(origin domain.GeoPoint, radius float64) {
	c.requestSeq++
	id := c.requestSeq

	c.active = NewSession(id)
	c.store.Reset()
	c.store.MarkLoading(true)

	c.transport.SetHandlers(EventHandlers{
		OnPlaces: func(requestID uint64, places []domain.Place) {
			if requestID != id {
				return
			}
			c.acceptEvent(Event{Kind: EventPlaces, RequestID: requestID, Places: places})
		},
		OnComplete: func(requestID uint64, total int) {
			if requestID != id {
				return
			}
			c.acceptEvent(Event{Kind: EventComplete, RequestID: requestID, Total: total})
		},
		OnError: func(requestID uint64, message string) {
			if requestID != id {
				return
			}
			c.acceptEvent(Event{Kind: EventError, RequestID: requestID, Message: message})
		},
	})

	req := domain.SearchRequest{
		RequestID:    id,
		Origin:       origin.Clamp(),
		RadiusMeters: radius,
		IssuedAt:     c.now(),
	}

	c.opts.Logger.Debug("issuing search request",
		"request_id", id, "lat", req.Origin.Lat, "lon", req.Origin.Lon, "radius_m", radius)

	if err := c.transport.Submit(req); err != nil {
		c.store.SetError(err.Error())
		c.store.MarkLoading(false)
	}
}

// acceptEvent routes a transport event through the active session. Stale or
// superseded events produce zero mutation.
func (c *Controller) acceptEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}

	delta, ok := c.active.Accept(ev)
	if !ok {
		return
	}

	switch ev.Kind {
	case EventPlaces:
		c.store.AppendPlaces(delta)
	case EventComplete:
		c.store.MarkLoading(false)
	case EventError:
		c.store.SetError(ev.Message)
		c.store.MarkLoading(false)
	}
}
