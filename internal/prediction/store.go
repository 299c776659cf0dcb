package prediction

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/crop"
	"github.com/terracast/terracast/internal/events"
	"github.com/terracast/terracast/internal/warehouse"
	"github.com/terracast/terracast/internal/weather"
)

const opStore = "warehouse.insert"

func (s *Service) storeCrops(ctx context.Context, f *weather.Features, recs []crop.EnrichedRecommendation) error {
	if len(recs) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	records := make([]warehouse.CropRecord, len(recs))
	for i := range recs {
		rec := &recs[i]
		records[i] = warehouse.CropRecord{
			ID:          uuid.NewString(),
			Lat:         f.Lat,
			Lon:         f.Lon,
			Crop:        rec.Crop,
			Confidence:  rec.Confidence,
			N:           rec.SoilRequirements.N,
			P:           rec.SoilRequirements.P,
			K:           rec.SoilRequirements.K,
			PH:          rec.SoilRequirements.PH,
			Rainfall:    f.Rain1h,
			Temperature: f.TemperatureCelsius(),
			Humidity:    f.RelativeHumidity,
			Price:       rec.EstimatedPrice,
			Pests:       rec.Pests,
			Diseases:    rec.Diseases,
			CreatedAt:   now,
		}
	}

	if s.repo != nil {
		if err := s.repo.InsertCrops(ctx, records); err != nil {
			return apperr.External(opStore, err)
		}
	}

	s.publish(ctx, events.PredictionEvent{
		ID:        records[0].ID,
		Type:      events.TypeCropPrediction,
		Lat:       f.Lat,
		Lon:       f.Lon,
		Payload:   payload(records),
		CreatedAt: now,
	})
	return nil
}

func (s *Service) storePower(ctx context.Context, f *weather.Features, res *PowerResult) error {
	now := s.clock.Now().UTC()

	solarRec := &warehouse.SolarRecord{
		ID:               uuid.NewString(),
		Lat:              f.Lat,
		Lon:              f.Lon,
		ObservedAt:       f.ObservedAt(),
		Features:         featureMap(weather.SolarFeatureNames, f.SolarInput()),
		PredictedPowerKW: res.Solar.PredictedPowerKW,
		CreatedAt:        now,
	}
	windRec := &warehouse.WindRecord{
		ID:             uuid.NewString(),
		Lat:            f.Lat,
		Lon:            f.Lon,
		ObservedAt:     f.ObservedAt(),
		Features:       featureMap(weather.WindPowerFeatureNames, f.WindPowerInput()),
		PredictedPower: res.Wind.PredictedPower,
		CreatedAt:      now,
	}

	if s.repo != nil {
		if err := s.repo.InsertPower(ctx, solarRec, windRec); err != nil {
			return apperr.External(opStore, err)
		}
	}

	s.publish(ctx, events.PredictionEvent{
		ID:        solarRec.ID,
		Type:      events.TypePowerPrediction,
		Lat:       f.Lat,
		Lon:       f.Lon,
		Payload:   payload(res),
		CreatedAt: now,
	})
	return nil
}

func (s *Service) storeAirQuality(ctx context.Context, f *weather.Features, input []float64, res *AirQualityResult) error {
	now := s.clock.Now().UTC()

	rec := &warehouse.AirQualityRecord{
		ID:                uuid.NewString(),
		Lat:               f.Lat,
		Lon:               f.Lon,
		Humidity:          input[0],
		WindSpeed:         input[1],
		WindDirection:     input[2],
		VisibilityInMiles: input[3],
		DewPoint:          input[4],
		Temperature:       input[5],
		RainPerHour:       input[6],
		SnowPerHour:       input[7],
		CloudsAll:         input[8],
		TrafficVolume:     input[9],
		AQI:               res.AQI,
		CreatedAt:         now,
	}

	if s.repo != nil {
		if err := s.repo.InsertAirQuality(ctx, rec); err != nil {
			return apperr.External(opStore, err)
		}
	}

	s.publish(ctx, events.PredictionEvent{
		ID:        rec.ID,
		Type:      events.TypeAirQualityPrediction,
		Lat:       f.Lat,
		Lon:       f.Lon,
		Payload:   payload(res),
		CreatedAt: now,
	})
	return nil
}

// publish is best-effort: a broker outage is logged, never returned.
func (s *Service) publish(ctx context.Context, event events.PredictionEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to publish prediction event")
	}
}

func featureMap(names []string, values []float64) map[string]float64 {
	m := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(names) {
			m[names[i]] = v
		}
	}
	return m
}

func payload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
