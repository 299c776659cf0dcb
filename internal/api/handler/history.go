package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/api/response"
	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/warehouse"
)

// HistoryHandler serves stored predictions.
type HistoryHandler struct {
	repo   warehouse.Repository
	logger zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(repo warehouse.Repository, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, logger: logger}
}

// ListHistory handles GET /v1/history/{kind}?limit=.
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	kind, err := warehouse.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.NotFound(w, r, fmt.Sprintf("unknown record kind %q", chi.URLParam(r, "kind")))
		return
	}

	opts := warehouse.ListOptions{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "gte"},
			})
			return
		}
		opts.Limit = limit
	}

	data, count, err := h.list(r, kind, opts)
	if err != nil {
		response.FromError(w, r, h.logger, apperr.External("warehouse.list", err))
		return
	}

	response.JSON(w, r, http.StatusOK, models.HistoryResponse{
		Kind: string(kind),
		Data: data,
		Meta: models.PagedResponseMeta{Limit: opts.EffectiveLimit(), Count: count},
	})
}

func (h *HistoryHandler) list(r *http.Request, kind warehouse.Kind, opts warehouse.ListOptions) (any, int, error) {
	ctx := r.Context()
	switch kind {
	case warehouse.KindCrops:
		recs, err := h.repo.ListCrops(ctx, opts)
		return recs, len(recs), err
	case warehouse.KindSolar:
		recs, err := h.repo.ListSolar(ctx, opts)
		return recs, len(recs), err
	case warehouse.KindWind:
		recs, err := h.repo.ListWind(ctx, opts)
		return recs, len(recs), err
	default:
		recs, err := h.repo.ListAirQuality(ctx, opts)
		return recs, len(recs), err
	}
}
