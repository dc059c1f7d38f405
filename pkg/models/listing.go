package models

import "time"

// SearchParameters describes one car search. Values are passed by copy and never mutated.
type SearchParameters struct {
	Make            string `json:"make" validate:"required,max=64"`
	Model           string `json:"model" validate:"required,max=64"`
	YearMin         int    `json:"year_min" validate:"gt=0"`
	YearMax         int    `json:"year_max" validate:"gt=0,gtefield=YearMin"`
	LocationCode    string `json:"zip" validate:"required,zip5"`
	RadiusMiles     int    `json:"radius" validate:"gt=0"`
	NoAccidentsOnly bool   `json:"no_accidents"`
}

// DefaultRadiusMiles is used when a caller does not supply a radius
const DefaultRadiusMiles = 50

// NewSearchParameters builds parameters, applying the default radius when radius is zero
func NewSearchParameters(carMake, model string, yearMin, yearMax int, zip string, radius int, noAccidents bool) SearchParameters {
	if radius == 0 {
		radius = DefaultRadiusMiles
	}
	return SearchParameters{
		Make:            carMake,
		Model:           model,
		YearMin:         yearMin,
		YearMax:         yearMax,
		LocationCode:    zip,
		RadiusMiles:     radius,
		NoAccidentsOnly: noAccidents,
	}
}

// AccidentHistory is what a listing reports about prior accidents
type AccidentHistory string

const (
	AccidentUnknown  AccidentHistory = "unknown"
	AccidentNone     AccidentHistory = "none"
	AccidentReported AccidentHistory = "reported"
)

// ListingRecord is one extracted car listing
type ListingRecord struct {
	ID        string          `json:"id"`
	Make      string          `json:"make"`
	Model     string          `json:"model"`
	Year      int             `json:"year"`
	Price     int             `json:"price"`
	Mileage   *int            `json:"mileage,omitempty"`
	Location  string          `json:"location,omitempty"`
	Accidents AccidentHistory `json:"accident_history"`
	SourceURL string          `json:"source_url"`
}

// TruncationReason explains why a result is incomplete. The empty value means complete.
type TruncationReason string

const (
	TruncationNone             TruncationReason = ""
	TruncationFailureThreshold TruncationReason = "failure_threshold"
	TruncationTimeout          TruncationReason = "timeout"
	TruncationResultCap        TruncationReason = "result_cap"
	TruncationPageCap          TruncationReason = "page_cap"
	TruncationCancelled        TruncationReason = "cancelled"
)

// PageFailure records one failed page load or extraction
type PageFailure struct {
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SearchResult is the aggregated output of a search
type SearchResult struct {
	SearchID           string           `json:"search_id"`
	Parameters         SearchParameters `json:"parameters"`
	Records            []ListingRecord  `json:"records"`
	PagesVisited       int              `json:"pages_visited"`
	ExtractionFailures int              `json:"extraction_failures"`
	PageFailures       []PageFailure    `json:"page_failures,omitempty"`
	Filtered           int              `json:"filtered"`
	TruncationReason   TruncationReason `json:"truncation_reason,omitempty"`
	CacheHit           bool             `json:"cache_hit"`
	StartedAt          time.Time        `json:"started_at"`
	Duration           time.Duration    `json:"duration"`
}

// Truncated reports whether the search stopped before the listings were exhausted
func (r *SearchResult) Truncated() bool {
	return r.TruncationReason != TruncationNone
}
