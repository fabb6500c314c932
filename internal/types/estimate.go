package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FusionMetrics describes the interpolation quality behind the NDVI
// projection. It can raise confidence but never moves the date.
type FusionMetrics struct {
	GapsFilled        int     `json:"gaps_filled" validate:"min=0"`
	MaxGapDays        int     `json:"max_gap_days" validate:"min=0"`
	RadarContribution float64 `json:"radar_contribution" validate:"fraction"`
	ContinuityScore   float64 `json:"continuity_score" validate:"fraction"`
	IsBeta            bool    `json:"is_beta"`
}

// EstimateRequest carries the already-computed NDVI and GDD summaries for one
// field. Missing projections are expected and are not errors.
type EstimateRequest struct {
	FieldID string `json:"field_id,omitempty" validate:"omitempty,field_id"`

	// NDVI projection and live readings.
	EOSNDVI         *Date   `json:"eos_ndvi,omitempty"`
	NDVIConfidence  int     `json:"ndvi_confidence" validate:"percent"`
	CurrentNDVI     float64 `json:"current_ndvi" validate:"fraction"`
	PeakNDVI        float64 `json:"peak_ndvi" validate:"fraction"`
	NDVIDeclineRate float64 `json:"ndvi_decline_rate"` // % per sampling period, positive = senescing

	// Thermal projection. GDDRequired == 0 means no projection.
	EOSGDD         *Date         `json:"eos_gdd,omitempty"`
	GDDConfidence  GDDConfidence `json:"gdd_confidence,omitempty" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
	GDDAccumulated float64       `json:"gdd_accumulated" validate:"min=0"`
	GDDRequired    float64       `json:"gdd_required" validate:"min=0"`

	// Water balance context.
	WaterStressLevel WaterStressLevel `json:"water_stress_level,omitempty" validate:"omitempty,oneof=NONE LOW MEDIUM HIGH CRITICAL"`
	StressDays       *int             `json:"stress_days,omitempty" validate:"omitempty,min=0"`
	YieldImpact      *float64         `json:"yield_impact,omitempty"`

	FusionMetrics *FusionMetrics `json:"fusion_metrics,omitempty"`

	PlantingDate *Date  `json:"planting_date,omitempty"`
	CropType     string `json:"crop_type,omitempty" validate:"omitempty,max=40"`
}

// ValidationWarnings flags input that is accepted but probably not what the
// caller meant.
func (r EstimateRequest) ValidationWarnings() []string {
	var warnings []string
	if r.EOSNDVI != nil && r.NDVIConfidence == 0 {
		warnings = append(warnings, "eos_ndvi is set but ndvi_confidence is 0")
	}
	if r.EOSGDD != nil && r.GDDRequired == 0 {
		warnings = append(warnings, "eos_gdd is ignored because gdd_required is 0")
	}
	if r.PeakNDVI > 0 && r.CurrentNDVI > r.PeakNDVI {
		warnings = append(warnings, "current_ndvi is above peak_ndvi")
	}
	return warnings
}

// ProjectionSnapshot is the as-used view of one upstream projection.
type ProjectionSnapshot struct {
	Date       *Date            `json:"date"`
	Confidence int              `json:"confidence"`
	Status     ProjectionStatus `json:"status"`
}

// Projections groups the projection snapshots and the water-stress shift.
type Projections struct {
	NDVI            ProjectionSnapshot `json:"ndvi"`
	GDD             ProjectionSnapshot `json:"gdd"`
	WaterAdjustment int                `json:"water_adjustment"`
}

// EstimateResult is the engine verdict. EOS is always set.
type EstimateResult struct {
	EOS               Date              `json:"eos"`
	Method            Method            `json:"method"`
	Confidence        int               `json:"confidence"`
	PhenologicalStage PhenologicalStage `json:"phenological_stage"`
	Passed            bool              `json:"passed"`
	Projections       Projections       `json:"projections"`

	Explanation string   `json:"explanation"`
	Factors     []string `json:"factors"`
	Warnings    []string `json:"warnings"`

	// Diagnostics derived from the same call.
	EvaluatedOn     Date       `json:"evaluated_on"`
	SanityRule      SanityRule `json:"sanity_rule"`
	ConvergenceDays *int       `json:"convergence_days,omitempty"`
	GDDProgress     *float64   `json:"gdd_progress,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (r EstimateResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB storage.
func (r *EstimateResult) Scan(value any) error {
	return scanJSONB(r, value)
}

// Value implements driver.Valuer for JSONB storage.
func (r EstimateRequest) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB storage.
func (r *EstimateRequest) Scan(value any) error {
	return scanJSONB(r, value)
}

// EstimateRecord is one persisted estimate.
type EstimateRecord struct {
	ID        string          `json:"id"`
	FieldID   string          `json:"field_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Request   EstimateRequest `json:"request"`
	Result    EstimateResult  `json:"result"`
}

// EstimateEvent is the message handed to downstream report consumers.
type EstimateEvent struct {
	EventID           string            `json:"event_id"`
	Type              EventType         `json:"type"`
	EstimateID        string            `json:"estimate_id"`
	FieldID           string            `json:"field_id,omitempty"`
	EOS               Date              `json:"eos"`
	Method            Method            `json:"method"`
	Confidence        int               `json:"confidence"`
	PhenologicalStage PhenologicalStage `json:"phenological_stage"`
	Passed            bool              `json:"passed"`
	OccurredAt        time.Time         `json:"occurred_at"`
}

// scanJSONB scans a JSONB column value into dest. It handles nil, []byte
// and string representations from different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}
