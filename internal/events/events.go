// Package events publishes completed predictions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event types.
const (
	TypeCropPrediction       = "prediction.crops"
	TypePowerPrediction      = "prediction.power"
	TypeAirQualityPrediction = "prediction.aqi"
)

// PredictionEvent announces a stored prediction.
type PredictionEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher delivers prediction events.
type Publisher interface {
	Publish(ctx context.Context, events ...PredictionEvent) error
	Close() error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

// Publish discards events.
func (NoopPublisher) Publish(context.Context, ...PredictionEvent) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []PredictionEvent
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Publish calls return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Publish records events.
func (r *Recorder) Publish(_ context.Context, events ...PredictionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []PredictionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PredictionEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Close does nothing.
func (r *Recorder) Close() error { return nil }
