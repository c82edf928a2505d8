package geosync

import (
	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// EventKind discriminates streamed protocol events.
type EventKind int

const (
	EventPlaces EventKind = iota
	EventComplete
	EventError
)

// Event is one inbound protocol message, tagged with the request that
// produced it.
type Event struct {
	Kind      EventKind
	RequestID uint64
	Places    []domain.Place
	Total     int
	Message   string
}

// SessionStatus is the lifecycle state of a stream session.
type SessionStatus int

const (
	SessionPending SessionStatus = iota
	SessionStreaming
	SessionComplete
	SessionFailed
)

// Session tracks one outstanding nearby-places query and its partial
// results. Events tagged with any other request id are ignored; once the
// session reaches a terminal status it ignores everything, which also
// protects against duplicate completion signals.
//
// Places accumulate in arrival order. Duplicate suppression across batches
// is deliberately not performed here; the upstream service owns that.
type Session struct {
	id            uint64
	status        SessionStatus
	places        []domain.Place
	totalReported int
	hasTotal      bool
	errMsg        string
}

// NewSession opens a session for the given request id.
func NewSession(requestID uint64) *Session {
	return &Session{id: requestID}
}

// ID returns the session's request id.
func (s *Session) ID() uint64 { return s.id }

// Status returns the current lifecycle status.
func (s *Session) Status() SessionStatus { return s.status }

// Places returns the accumulated places in arrival order.
func (s *Session) Places() []domain.Place { return s.places }

// TotalReported returns the server-reported total and whether one arrived.
func (s *Session) TotalReported() (int, bool) { return s.totalReported, s.hasTotal }

// Err returns the failure message for a failed session.
func (s *Session) Err() string { return s.errMsg }

// terminal reports whether the session stopped accepting events.
func (s *Session) terminal() bool {
	return s.status == SessionComplete || s.status == SessionFailed
}

// Accept applies an event to the session. The returned slice is the newly
// accepted place delta (only for place batches); the bool reports whether
// the event was accepted at all. A mismatched request id or a terminal
// session yields (nil, false) — stale events are dropped, not errors.
func (s *Session) Accept(ev Event) ([]domain.Place, bool) {
	if ev.RequestID != s.id || s.terminal() {
		return nil, false
	}

	switch ev.Kind {
	case EventPlaces:
		s.status = SessionStreaming
		s.places = append(s.places, ev.Places...)
		return ev.Places, true
	case EventComplete:
		s.status = SessionComplete
		s.totalReported = ev.Total
		s.hasTotal = true
		return nil, true
	case EventError:
		s.status = SessionFailed
		s.errMsg = ev.Message
		return nil, true
	}
	return nil, false
}
