package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"harvestwatch/internal/core"
	"harvestwatch/internal/eos"
	"harvestwatch/internal/types"
)

// LabelHandler exposes the localized presentation tables so clients do not
// hard-code them.
type LabelHandler struct{}

// NewLabelHandler creates a LabelHandler.
func NewLabelHandler() *LabelHandler { return &LabelHandler{} }

// RegisterRoutes mounts the label endpoints on the /v1 router.
func (h *LabelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/labels", h.HandleList)
	r.Get("/labels/confidence", h.HandleConfidence)
}

type confidenceBand struct {
	Label    string `json:"label"`
	MinScore int    `json:"min_score"`
}

type labelsResponse struct {
	Methods    map[types.Method]string            `json:"methods"`
	Stages     map[types.PhenologicalStage]string `json:"stages"`
	Confidence []confidenceBand                   `json:"confidence"`
}

type confidenceLabelResponse struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// HandleList handles GET /v1/labels.
func (h *LabelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resp := labelsResponse{
		Methods: make(map[types.Method]string, len(types.AllMethods)),
		Stages:  make(map[types.PhenologicalStage]string, len(types.AllStages)),
		Confidence: []confidenceBand{
			{Label: eos.ConfidenceLabel(eos.HighConfidenceScore), MinScore: eos.HighConfidenceScore},
			{Label: eos.ConfidenceLabel(eos.MediumConfidenceScore), MinScore: eos.MediumConfidenceScore},
			{Label: eos.ConfidenceLabel(0), MinScore: 0},
		},
	}
	for _, m := range types.AllMethods {
		resp.Methods[m] = eos.MethodLabel(m)
	}
	for _, s := range types.AllStages {
		resp.Stages[s] = eos.PhenologicalStageLabel(s)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleConfidence handles GET /v1/labels/confidence?score=N.
func (h *LabelHandler) HandleConfidence(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("score")
	if raw == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"score query parameter is required", nil))
		return
	}
	score, err := strconv.Atoi(raw)
	if err != nil || score < 0 || score > 100 {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationOutOfRange,
			"score must be an integer between 0 and 100", nil, map[string]any{"score": raw}))
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: confidenceLabelResponse{Score: score, Label: eos.ConfidenceLabel(score)},
	})
}
