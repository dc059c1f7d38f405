package models

// SearchRequest represents the request payload for POST /api/v1/search
type SearchRequest struct {
	SearchParameters
	Options *SearchOptions `json:"options,omitempty"`
}

// SearchOptions narrows the configured limits for a single request
type SearchOptions struct {
	MaxPages       int  `json:"max_pages,omitempty" validate:"omitempty,gt=0"`
	MaxResults     int  `json:"max_results,omitempty" validate:"omitempty,gt=0"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty" validate:"omitempty,gt=0"`
	SkipCache      bool `json:"skip_cache,omitempty"`
}
