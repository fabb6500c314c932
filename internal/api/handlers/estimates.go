// Package handlers contains the HTTP handlers of the HarvestWatch API.
//
// Handlers depend on small locally defined service interfaces so tests can
// inject fakes; the concrete services are wired in cmd/api.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"harvestwatch/internal/core"
	"harvestwatch/internal/types"
)

// EstimateServiceInterface is the contract the estimate handler needs.
// *estimates.Service satisfies it.
type EstimateServiceInterface interface {
	Estimate(ctx context.Context, req types.EstimateRequest) (*types.EstimateRecord, error)
	Get(ctx context.Context, id string) (*types.EstimateRecord, error)
	History(ctx context.Context, fieldID string, limit int) ([]types.EstimateRecord, error)
}

// EstimateHandler serves estimate creation and history.
type EstimateHandler struct {
	service   EstimateServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewEstimateHandler creates an EstimateHandler.
func NewEstimateHandler(svc EstimateServiceInterface, val *core.Validator, logger *slog.Logger) *EstimateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EstimateHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the estimate endpoints on the /v1 router.
func (h *EstimateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/estimates", h.HandleCreate)
	r.Get("/estimates/{estimateID}", h.HandleGet)
	r.Get("/fields/{fieldID}/estimates", h.HandleHistory)
}

// HandleCreate handles POST /v1/estimates.
//  1. Decode the body strictly (unknown fields rejected).
//  2. Validate tags; collect non-blocking warnings.
//  3. Run the service and return the stored record.
func (h *EstimateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.EstimateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rec, err := h.service.Estimate(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: rec}
	if warnings := req.ValidationWarnings(); len(warnings) > 0 {
		resp.Meta = &core.ResponseMeta{Warnings: warnings}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleGet handles GET /v1/estimates/{estimateID}.
func (h *EstimateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "estimateID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// HandleHistory handles GET /v1/fields/{fieldID}/estimates?limit=N.
func (h *EstimateHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "fieldID")
	if err := h.validator.ValidateFieldID(fieldID); err != nil {
		core.Error(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLimit,
				"limit must be an integer", nil, map[string]any{"limit": raw}))
			return
		}
		limit = n
	}

	records, err := h.service.History(r.Context(), fieldID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	count := len(records)
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: records,
		Meta: &core.ResponseMeta{Count: &count, Limit: limit},
	})
}
