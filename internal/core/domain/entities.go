package domain

import (
	"time"
)

// Place is a point of interest returned by the upstream places service.
// The engine never derives or edits these fields, only aggregates them.
type Place struct {
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
	State    string   `json:"state"`
	ZipCode  string   `json:"zip_code"`
	Types    []string `json:"types"`
}

// SearchRequest is one outstanding nearby-places query. The RequestID is
// strictly increasing per controller instance and is the sole staleness
// criterion for streamed results.
type SearchRequest struct {
	RequestID    uint64    `json:"request_id"`
	Origin       GeoPoint  `json:"origin"`
	RadiusMeters float64   `json:"radius_meters"`
	IssuedAt     time.Time `json:"issued_at"`
}

// PlaceOfPerformance narrows a spending search to a location.
type PlaceOfPerformance struct {
	Country string `json:"country"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// SpendingFilters are the filters accepted by the award search.
type SpendingFilters struct {
	AwardTypeCodes              []string             `json:"award_type_codes"`
	RecipientSearchText         []string             `json:"recipient_search_text,omitempty"`
	PlaceOfPerformanceLocations []PlaceOfPerformance `json:"place_of_performance_locations,omitempty"`
}

// HasAny reports whether at least one filter is populated.
func (f SpendingFilters) HasAny() bool {
	return len(f.RecipientSearchText) > 0 || len(f.PlaceOfPerformanceLocations) > 0
}

// DefaultAwardTypeCodes covers contract award types A through D.
func DefaultAwardTypeCodes() []string {
	return []string{"A", "B", "C", "D"}
}

// Award is a single federal award row.
type Award struct {
	AwardID        string  `json:"award_id,omitempty"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	AwardAmount    float64 `json:"award_amount"`
	AwardingAgency string  `json:"awarding_agency,omitempty"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	PlaceZip5      string  `json:"place_of_performance_zip5,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// SpendingResult is a page of awards plus paging metadata.
type SpendingResult struct {
	Awards   []Award        `json:"awards"`
	Page     int            `json:"page"`
	Total    int            `json:"total"`
	Messages []string       `json:"messages,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChartData is a label/value series for presentation.
type ChartData struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Report is a generated spending report for a result set.
type Report struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient,omitempty"`
	State     string         `json:"state,omitempty"`
	Zip       string         `json:"zip,omitempty"`
	Chart     ChartData      `json:"chart"`
	Summary   string         `json:"summary,omitempty"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Report statuses.
const (
	ReportPending  = "pending"
	ReportComplete = "complete"
	ReportFailed   = "failed"
)
