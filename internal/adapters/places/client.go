package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/pkg/metrics"
)

const (
	searchNearbyEndpoint = "/places:searchNearby"
	searchTextEndpoint   = "/places:searchText"
	autocompleteEndpoint = "/places:autocomplete"

	fieldMask = "places.displayName,places.location,places.types,places.formattedAddress,places.addressComponents"
)

// excludedPlaceTypes filters out categories with no federal spending
// relevance (retail, food, lodging, personal services).
var excludedPlaceTypes = []string{
	"car_dealer", "car_rental", "car_repair", "car_wash",
	"electric_vehicle_charging_station", "gas_station", "parking", "rest_stop",
	"restaurant", "bar", "cafe", "bakery", "fast_food_restaurant", "coffee_shop",
	"hotel", "motel", "lodging",
	"clothing_store", "shoe_store", "store", "supermarket", "grocery_store", "shopping_mall",
	"gym", "fitness_center", "sports_club",
	"barber_shop", "beauty_salon", "hair_salon", "nail_salon", "spa", "laundry",
	"church", "mosque", "synagogue", "hindu_temple",
}

// Client implements ports.PlacesAPI against the Places API (New).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a places client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type nearbyRequest struct {
	LocationRestriction struct {
		Circle circle `json:"circle"`
	} `json:"locationRestriction"`
	MaxResultCount int      `json:"maxResultCount"`
	ExcludedTypes  []string `json:"excludedTypes,omitempty"`
}

type textRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
	LocationBias   *struct {
		Circle circle `json:"circle"`
	} `json:"locationBias,omitempty"`
}

type addressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

type apiPlace struct {
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Location          latLng             `json:"location"`
	Types             []string           `json:"types"`
	FormattedAddress  string             `json:"formattedAddress"`
	AddressComponents []addressComponent `json:"addressComponents"`
}

// placesResponse defaults to an empty list: with no nearby places the
// endpoint returns {} rather than {"places": []}.
type placesResponse struct {
	Places []apiPlace `json:"places"`
}

// SearchNearby returns places within radiusMeters of the point. Places
// missing a state or zip component are skipped; the spending surface
// cannot use them.
func (c *Client) SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, maxResults int) ([]domain.Place, error) {
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 20
	}
	var req nearbyRequest
	req.LocationRestriction.Circle = circle{Center: latLng{Latitude: lat, Longitude: lon}, Radius: radiusMeters}
	req.MaxResultCount = maxResults
	req.ExcludedTypes = excludedPlaceTypes

	var resp placesResponse
	if err := c.post(ctx, searchNearbyEndpoint, req, &resp); err != nil {
		return nil, err
	}
	return decodePlaces(resp.Places), nil
}

// SearchText resolves a free-text query, optionally biased to a point.
func (c *Client) SearchText(ctx context.Context, query string, near *domain.GeoPoint, maxResults int) ([]domain.Place, error) {
	if query == "" {
		return nil, fmt.Errorf("places: empty text query")
	}
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 20
	}
	req := textRequest{TextQuery: query, MaxResultCount: maxResults}
	if near != nil {
		req.LocationBias = &struct {
			Circle circle `json:"circle"`
		}{Circle: circle{Center: latLng{Latitude: near.Lat, Longitude: near.Lon}, Radius: 50000}}
	}

	var resp placesResponse
	if err := c.post(ctx, searchTextEndpoint, req, &resp); err != nil {
		return nil, err
	}
	return decodePlaces(resp.Places), nil
}

type autocompleteRequest struct {
	Input        string `json:"input"`
	LocationBias *struct {
		Circle circle `json:"circle"`
	} `json:"locationBias,omitempty"`
}

type autocompleteResponse struct {
	Suggestions []struct {
		PlacePrediction struct {
			Text struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"placePrediction"`
	} `json:"suggestions"`
}

// Autocomplete returns prediction texts for a partial query.
func (c *Client) Autocomplete(ctx context.Context, input string, near *domain.GeoPoint) ([]string, error) {
	if input == "" {
		return nil, nil
	}
	req := autocompleteRequest{Input: input}
	if near != nil {
		req.LocationBias = &struct {
			Circle circle `json:"circle"`
		}{Circle: circle{Center: latLng{Latitude: near.Lat, Longitude: near.Lon}, Radius: 50000}}
	}

	var resp autocompleteResponse
	if err := c.post(ctx, autocompleteEndpoint, req, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if text := s.PlacePrediction.Text.Text; text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("places: API key is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamFetches.WithLabelValues(fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return fmt.Errorf("places API returned HTTP %d: %s", resp.StatusCode, truncate(data, 200))
	}
	metrics.UpstreamFetches.WithLabelValues("ok").Inc()

	return json.Unmarshal(data, out)
}

// decodePlaces converts API places to domain places, extracting the state
// and zip from the address components. Places missing either are dropped.
func decodePlaces(in []apiPlace) []domain.Place {
	out := make([]domain.Place, 0, len(in))
	for _, ap := range in {
		state := componentText(ap.AddressComponents, "administrative_area_level_1")
		zip := componentText(ap.AddressComponents, "postal_code")
		if state == "" || zip == "" {
			continue
		}
		out = append(out, domain.Place{
			Name:     ap.DisplayName.Text,
			Location: domain.GeoPoint{Lat: ap.Location.Latitude, Lon: ap.Location.Longitude},
			State:    state,
			ZipCode:  zip,
			Types:    ap.Types,
		})
	}
	return out
}

func componentText(components []addressComponent, kind string) string {
	for _, component := range components {
		for _, t := range component.Types {
			if t == kind {
				return component.LongText
			}
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
