package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/api/response"
	"github.com/terracast/terracast/internal/prediction"
	"github.com/terracast/terracast/internal/weather"
)

// maxRequestBody bounds prediction request bodies.
const maxRequestBody = 1 << 16

// Predictor runs predictions for a location.
type Predictor interface {
	Features(ctx context.Context, lat, lon float64) (*weather.Features, error)
	PredictCrops(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.CropResult, error)
	PredictPower(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.PowerResult, error)
	PredictAirQuality(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.AirQualityResult, error)
}

// PredictionHandler handles the prediction and feature endpoints.
type PredictionHandler struct {
	predictor Predictor
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(predictor Predictor, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		validate:  newValidator(),
		logger:    logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PredictCrops handles POST /v1/predictions/crops and POST /crops_info.
func (h *PredictionHandler) PredictCrops(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.predictor.PredictCrops(r.Context(), *req.Lat, *req.Lon, options(req))
	h.respond(w, r, result, err)
}

// PredictPower handles POST /v1/predictions/power and POST /power.
func (h *PredictionHandler) PredictPower(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.predictor.PredictPower(r.Context(), *req.Lat, *req.Lon, options(req))
	h.respond(w, r, result, err)
}

// PredictAirQuality handles POST /v1/predictions/air-quality and POST /air_quality.
func (h *PredictionHandler) PredictAirQuality(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.predictor.PredictAirQuality(r.Context(), *req.Lat, *req.Lon, options(req))
	h.respond(w, r, result, err)
}

// GetFeatures handles GET /v1/features?lat=&lon=.
func (h *PredictionHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	loc, fields := parseLocationQuery(r)
	if len(fields) > 0 {
		response.BadRequest(w, r, fields[0].Field+" "+fields[0].Message, fields)
		return
	}
	if err := h.validate.Struct(loc); err != nil {
		response.ValidationFailed(w, r, err)
		return
	}

	f, err := h.predictor.Features(r.Context(), *loc.Lat, *loc.Lon)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.FeaturesResponse{
		Lat:        *loc.Lat,
		Lon:        *loc.Lon,
		ObservedAt: models.Timestamp(f.ObservedAt()),
		Features:   f.Named(),
	})
}

func (h *PredictionHandler) decode(w http.ResponseWriter, r *http.Request) (*models.PredictionRequest, bool) {
	var req models.PredictionRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		detail := "request body must be a JSON object with lat and lon"
		if errors.Is(err, io.EOF) {
			detail = "request body is empty"
		}
		response.BadRequest(w, r, detail, nil)
		return nil, false
	}

	if err := h.validate.Struct(&req); err != nil {
		response.ValidationFailed(w, r, err)
		return nil, false
	}
	return &req, true
}

func (h *PredictionHandler) respond(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func options(req *models.PredictionRequest) prediction.Options {
	return prediction.Options{
		SkipEnrichment:  req.SkipEnrichment,
		SkipPersistence: req.DryRun,
	}
}

// parseLocationQuery reads lat and lon query parameters. Missing values are
// left nil for the validator; malformed ones are reported directly.
func parseLocationQuery(r *http.Request) (models.Location, []models.FieldError) {
	var (
		loc    models.Location
		fields []models.FieldError
	)
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **float64
	}{{"lat", &loc.Lat}, {"lon", &loc.Lon}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fields = append(fields, models.FieldError{Field: p.name, Message: "must be a number", Code: "number"})
			continue
		}
		*p.dst = &v
	}
	return loc, fields
}
