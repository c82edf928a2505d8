package spending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

const searchEndpoint = "/search/spending_by_award/"

// awardFields are the columns requested from the award search, in the
// API's display-name form.
var awardFields = []string{
	"Award ID",
	"Recipient Name",
	"Award Amount",
	"Awarding Agency",
	"Start Date",
	"End Date",
	"Place of Performance Zip5",
	"Description",
}

// Client implements ports.SpendingAPI against the USAspending API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a spending client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type searchFilters struct {
	AwardTypeCodes              []string                    `json:"award_type_codes"`
	RecipientSearchText         []string                    `json:"recipient_search_text,omitempty"`
	PlaceOfPerformanceLocations []domain.PlaceOfPerformance `json:"place_of_performance_locations,omitempty"`
}

type searchRequest struct {
	Filters   searchFilters `json:"filters"`
	Fields    []string      `json:"fields"`
	Limit     int           `json:"limit"`
	Page      int           `json:"page"`
	Subawards bool          `json:"subawards"`
	Sort      string        `json:"sort"`
	Order     string        `json:"order"`
}

// apiAward mirrors the display-name keyed rows the API returns.
type apiAward struct {
	AwardID        *string  `json:"Award ID"`
	RecipientName  *string  `json:"Recipient Name"`
	AwardAmount    *float64 `json:"Award Amount"`
	AwardingAgency *string  `json:"Awarding Agency"`
	StartDate      *string  `json:"Start Date"`
	EndDate        *string  `json:"End Date"`
	PlaceZip5      *string  `json:"Place of Performance Zip5"`
	Description    *string  `json:"Description"`
}

type searchResponse struct {
	Results      []apiAward     `json:"results"`
	PageMetadata map[string]any `json:"page_metadata"`
	Messages     []string       `json:"messages"`
}

// SearchAwards queries awards matching the filters, largest amounts first.
func (c *Client) SearchAwards(ctx context.Context, filters domain.SpendingFilters, page, limit int) (*domain.SpendingResult, error) {
	codes := filters.AwardTypeCodes
	if len(codes) == 0 {
		codes = domain.DefaultAwardTypeCodes()
	}
	req := searchRequest{
		Filters: searchFilters{
			AwardTypeCodes:              codes,
			RecipientSearchText:         filters.RecipientSearchText,
			PlaceOfPerformanceLocations: filters.PlaceOfPerformanceLocations,
		},
		Fields:    awardFields,
		Limit:     limit,
		Page:      page,
		Subawards: false,
		Sort:      "Award Amount",
		Order:     "desc",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", searchEndpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spending API returned HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	awards := make([]domain.Award, 0, len(parsed.Results))
	for _, a := range parsed.Results {
		awards = append(awards, domain.Award{
			AwardID:        deref(a.AwardID),
			RecipientName:  deref(a.RecipientName),
			AwardAmount:    derefFloat(a.AwardAmount),
			AwardingAgency: deref(a.AwardingAgency),
			StartDate:      deref(a.StartDate),
			EndDate:        deref(a.EndDate),
			PlaceZip5:      deref(a.PlaceZip5),
			Description:    deref(a.Description),
		})
	}

	result := &domain.SpendingResult{
		Awards:   awards,
		Page:     page,
		Total:    len(awards),
		Messages: parsed.Messages,
		Metadata: parsed.PageMetadata,
	}
	if meta, ok := parsed.PageMetadata["total"].(float64); ok {
		result.Total = int(meta)
	}
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
