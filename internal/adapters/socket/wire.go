package socket

import "github.com/whereitwent/whereitwent/internal/core/domain"

// Frame types exchanged over the place-stream socket.
const (
	TypeLocationUpdate = "location_update"
	TypePlacesUpdate   = "places_update"
	TypePlacesComplete = "places_complete"
	TypeError          = "error"
)

// Frame is the JSON envelope for every socket message, outbound and
// inbound. Every frame carries the request id that produced it; the client
// filters on it regardless of server behavior.
type Frame struct {
	Type      string         `json:"type"`
	RequestID uint64         `json:"request_id"`
	Latitude  float64        `json:"latitude,omitempty"`
	Longitude float64        `json:"longitude,omitempty"`
	Radius    float64        `json:"radius,omitempty"`
	Places    []domain.Place `json:"places,omitempty"`
	Total     int            `json:"total,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// LocationUpdateFrame builds the outbound frame for a search request.
func LocationUpdateFrame(req domain.SearchRequest) Frame {
	return Frame{
		Type:      TypeLocationUpdate,
		RequestID: req.RequestID,
		Latitude:  req.Origin.Lat,
		Longitude: req.Origin.Lon,
		Radius:    req.RadiusMeters,
	}
}
