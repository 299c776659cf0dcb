package warehouse

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs without a database.
type InMemoryRepository struct {
	mu         sync.RWMutex
	crops      []CropRecord
	solar      []SolarRecord
	wind       []WindRecord
	airQuality []AirQualityRecord
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// InsertCrops stores crop records.
func (r *InMemoryRepository) InsertCrops(_ context.Context, records []CropRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crops = append(r.crops, records...)
	return nil
}

// InsertSolar stores a solar record.
func (r *InMemoryRepository) InsertSolar(_ context.Context, record *SolarRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solar = append(r.solar, *record)
	return nil
}

// InsertWind stores a wind record.
func (r *InMemoryRepository) InsertWind(_ context.Context, record *WindRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wind = append(r.wind, *record)
	return nil
}

// InsertPower stores a solar and a wind record together.
func (r *InMemoryRepository) InsertPower(_ context.Context, solar *SolarRecord, wind *WindRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solar = append(r.solar, *solar)
	r.wind = append(r.wind, *wind)
	return nil
}

// InsertAirQuality stores an air quality record.
func (r *InMemoryRepository) InsertAirQuality(_ context.Context, record *AirQualityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.airQuality = append(r.airQuality, *record)
	return nil
}

// ListCrops returns the newest crop records first.
func (r *InMemoryRepository) ListCrops(_ context.Context, opts ListOptions) ([]CropRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.crops, opts.EffectiveLimit()), nil
}

// ListSolar returns the newest solar records first.
func (r *InMemoryRepository) ListSolar(_ context.Context, opts ListOptions) ([]SolarRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.solar, opts.EffectiveLimit()), nil
}

// ListWind returns the newest wind records first.
func (r *InMemoryRepository) ListWind(_ context.Context, opts ListOptions) ([]WindRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.wind, opts.EffectiveLimit()), nil
}

// ListAirQuality returns the newest air quality records first.
func (r *InMemoryRepository) ListAirQuality(_ context.Context, opts ListOptions) ([]AirQualityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.airQuality, opts.EffectiveLimit()), nil
}

// newestFirst copies up to limit items from the end of an insertion-ordered slice.
func newestFirst[T any](items []T, limit int) []T {
	n := min(limit, len(items))
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}
