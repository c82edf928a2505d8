package geosync_test

import (
	"testing"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/geosync"
)

func place(name string) domain.Place {
	return domain.Place{Name: name, Location: domain.GeoPoint{Lat: 38.83, Lon: -77.31}}
}

func TestSession_AccumulatesInArrivalOrder(t *testing.T) {
	s := geosync.NewSession(7)

	if s.Status() != geosync.SessionPending {
		t.Fatalf("new session should be pending, got %v", s.Status())
	}

	delta, ok := s.Accept(geosync.Event{
		Kind: geosync.EventPlaces, RequestID: 7,
		Places: []domain.Place{place("a"), place("b")},
	})
	if !ok || len(delta) != 2 {
		t.Fatalf("expected accepted batch of 2, got ok=%v len=%d", ok, len(delta))
	}
	if s.Status() != geosync.SessionStreaming {
		t.Errorf("expected streaming status, got %v", s.Status())
	}

	_, _ = s.Accept(geosync.Event{
		Kind: geosync.EventPlaces, RequestID: 7,
		Places: []domain.Place{place("c")},
	})

	got := s.Places()
	if len(got) != 3 || got[0].Name != "a" || got[2].Name != "c" {
		t.Fatalf("unexpected accumulation: %+v", got)
	}
}

func TestSession_IgnoresMismatchedRequestID(t *testing.T) {
	s := geosync.NewSession(2)

	_, ok := s.Accept(geosync.Event{
		Kind: geosync.EventPlaces, RequestID: 1,
		Places: []domain.Place{place("stale")},
	})
	if ok {
		t.Fatal("event from another request id must be ignored")
	}
	if len(s.Places()) != 0 {
		t.Fatalf("stale event mutated the session: %+v", s.Places())
	}

	// Terminal events with the wrong id are ignored too.
	if _, ok := s.Accept(geosync.Event{Kind: geosync.EventComplete, RequestID: 1, Total: 5}); ok {
		t.Fatal("stale completion must be ignored")
	}
	if s.Status() != geosync.SessionPending {
		t.Errorf("status changed by stale event: %v", s.Status())
	}
}

func TestSession_CompleteIsTerminal(t *testing.T) {
	s := geosync.NewSession(3)

	if _, ok := s.Accept(geosync.Event{Kind: geosync.EventComplete, RequestID: 3, Total: 4}); !ok {
		t.Fatal("completion for own id must be accepted")
	}
	total, has := s.TotalReported()
	if !has || total != 4 {
		t.Fatalf("expected reported total 4, got %d (has=%v)", total, has)
	}

	// Duplicate completion and late batches are dropped.
	if _, ok := s.Accept(geosync.Event{Kind: geosync.EventComplete, RequestID: 3, Total: 9}); ok {
		t.Fatal("duplicate completion must be ignored")
	}
	if _, ok := s.Accept(geosync.Event{
		Kind: geosync.EventPlaces, RequestID: 3, Places: []domain.Place{place("late")},
	}); ok {
		t.Fatal("batch after completion must be ignored")
	}
	if total, _ := s.TotalReported(); total != 4 {
		t.Errorf("total overwritten by duplicate completion: %d", total)
	}
}

func TestSession_ErrorIsTerminal(t *testing.T) {
	s := geosync.NewSession(9)

	if _, ok := s.Accept(geosync.Event{Kind: geosync.EventError, RequestID: 9, Message: "boom"}); !ok {
		t.Fatal("error for own id must be accepted")
	}
	if s.Status() != geosync.SessionFailed {
		t.Fatalf("expected failed status, got %v", s.Status())
	}
	if s.Err() != "boom" {
		t.Errorf("expected error message 'boom', got %q", s.Err())
	}
	if _, ok := s.Accept(geosync.Event{
		Kind: geosync.EventPlaces, RequestID: 9, Places: []domain.Place{place("late")},
	}); ok {
		t.Fatal("batch after failure must be ignored")
	}
}
