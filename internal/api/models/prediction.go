package models

import (
	"github.com/terracast/terracast/internal/weather"
)

// FeaturesResponse is the derived feature vector for a location.
type FeaturesResponse struct {
	Lat        float64              `json:"lat"`
	Lon        float64              `json:"lon"`
	ObservedAt Timestamp            `json:"observed_at"`
	Features   []weather.NamedValue `json:"features"`
}

// HistoryResponse lists stored predictions of one kind, newest first.
type HistoryResponse struct {
	Kind string            `json:"kind"`
	Data any               `json:"data"`
	Meta PagedResponseMeta `json:"meta"`
}

// PagedResponseMeta contains pagination metadata.
type PagedResponseMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// PredictionRequest is the body of every prediction endpoint.
type PredictionRequest struct {
	Location

	// SkipEnrichment omits pest and disease notes from crop recommendations.
	SkipEnrichment bool `json:"skip_enrichment,omitempty"`

	// DryRun neither stores nor publishes the prediction.
	DryRun bool `json:"dry_run,omitempty"`
}
