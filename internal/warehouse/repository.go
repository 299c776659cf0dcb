package warehouse

import "context"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListOptions contains options for listing records.
type ListOptions struct {
	Limit int
}

// EffectiveLimit returns the limit after defaults and the upper bound apply.
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return defaultListLimit
	case o.Limit > maxListLimit:
		return maxListLimit
	default:
		return o.Limit
	}
}

// Repository defines the interface for prediction persistence.
// List methods return the newest records first.
type Repository interface {
	InsertCrops(ctx context.Context, records []CropRecord) error
	InsertSolar(ctx context.Context, record *SolarRecord) error
	InsertWind(ctx context.Context, record *WindRecord) error
	// InsertPower stores both halves of a power prediction, or neither.
	InsertPower(ctx context.Context, solar *SolarRecord, wind *WindRecord) error
	InsertAirQuality(ctx context.Context, record *AirQualityRecord) error

	ListCrops(ctx context.Context, opts ListOptions) ([]CropRecord, error)
	ListSolar(ctx context.Context, opts ListOptions) ([]SolarRecord, error)
	ListWind(ctx context.Context, opts ListOptions) ([]WindRecord, error)
	ListAirQuality(ctx context.Context, opts ListOptions) ([]AirQualityRecord, error)
}
