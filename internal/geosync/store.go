package geosync

import (
	"sync"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// Store accumulates accepted place results and exposes the current visible
// set plus loading/error status to presentation. The controller is the only
// writer; presentation only reads.
//
// Growth is append-only within a session. Places are not deduplicated here:
// the session layer does not guarantee duplicate suppression either, so the
// store mirrors exactly what was accepted.
type Store struct {
	mu      sync.RWMutex
	places  []domain.Place
	loading bool
	errMsg  string
}

// NewStore returns an empty result store.
func NewStore() *Store {
	return &Store{}
}

// Reset clears the visible result set. Called exactly once per newly issued
// request, before the corresponding session exists.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places = nil
	s.errMsg = ""
}

// AppendPlaces appends an accepted batch in arrival order.
func (s *Store) AppendPlaces(batch []domain.Place) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places = append(s.places, batch...)
}

// MarkLoading flags whether a query is in flight.
func (s *Store) MarkLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetError records a user-visible failure message. An empty string clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// Places returns a copy of the currently visible result set.
func (s *Store) Places() []domain.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Place, len(s.places))
	copy(out, s.places)
	return out
}

// Loading reports whether a query is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the current user-visible error message, if any.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}
