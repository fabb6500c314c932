package eos

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"harvestwatch/internal/types"
)

// ErrInvalidInput is wrapped by every request the normalizer rejects.
var ErrInvalidInput = errors.New("eos: invalid input")

const (
	minYear = 1900
	maxYear = 2200
)

// normalized is the validated request plus the availability flags every later
// stage reads. It is never mutated after normalize returns.
type normalized struct {
	req  types.EstimateRequest
	crop string

	hasNDVI      bool // eosNdvi present
	hasGDD       bool // eosGdd present and gddRequired > 0
	gddDiscarded bool // eosGdd present but gddRequired == 0
	hasReading   bool // at least one live NDVI reading was supplied

	progress      float64 // gddAccumulated / gddRequired
	progressKnown bool
	gddScore      int
}

func invalid(field, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidInput,
		fmt.Sprintf("%s: %s", field, msg),
		ErrInvalidInput,
		map[string]any{"field": field},
	)
}

// normalize validates the request and fills defaults.
func normalize(req types.EstimateRequest, th Thresholds) (normalized, error) {
	if req.NDVIConfidence < 0 || req.NDVIConfidence > 100 {
		return normalized{}, invalid("ndvi_confidence", "must lie in [0,100], got %d", req.NDVIConfidence)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"current_ndvi", req.CurrentNDVI},
		{"peak_ndvi", req.PeakNDVI},
	} {
		if err := checkFraction(f.name, f.v); err != nil {
			return normalized{}, err
		}
	}
	if !isFinite(req.NDVIDeclineRate) {
		return normalized{}, invalid("ndvi_decline_rate", "must be finite")
	}
	if !isFinite(req.GDDAccumulated) || req.GDDAccumulated < 0 {
		return normalized{}, invalid("gdd_accumulated", "must be a finite non-negative number")
	}
	if !isFinite(req.GDDRequired) || req.GDDRequired < 0 {
		return normalized{}, invalid("gdd_required", "must be a finite non-negative number")
	}
	if req.StressDays != nil && *req.StressDays < 0 {
		return normalized{}, invalid("stress_days", "must be non-negative")
	}
	if req.YieldImpact != nil && !isFinite(*req.YieldImpact) {
		return normalized{}, invalid("yield_impact", "must be finite")
	}
	if fm := req.FusionMetrics; fm != nil {
		if fm.GapsFilled < 0 || fm.MaxGapDays < 0 {
			return normalized{}, invalid("fusion_metrics", "gap counts must be non-negative")
		}
		if err := checkFraction("fusion_metrics.radar_contribution", fm.RadarContribution); err != nil {
			return normalized{}, err
		}
		if err := checkFraction("fusion_metrics.continuity_score", fm.ContinuityScore); err != nil {
			return normalized{}, err
		}
	}
	for _, d := range []struct {
		name string
		v    *types.Date
	}{
		{"eos_ndvi", req.EOSNDVI},
		{"eos_gdd", req.EOSGDD},
		{"planting_date", req.PlantingDate},
	} {
		if err := checkDate(d.name, d.v); err != nil {
			return normalized{}, err
		}
	}

	if req.GDDConfidence == "" {
		req.GDDConfidence = types.GDDConfidenceLow
	}
	if !req.GDDConfidence.IsValid() {
		return normalized{}, invalid("gdd_confidence", "unknown value %q", req.GDDConfidence)
	}
	if req.WaterStressLevel == "" {
		req.WaterStressLevel = types.WaterStressNone
	}
	if !req.WaterStressLevel.IsValid() {
		return normalized{}, invalid("water_stress_level", "unknown value %q", req.WaterStressLevel)
	}
	req.CropType = strings.ToLower(strings.TrimSpace(req.CropType))

	n := normalized{
		req:        req,
		crop:       req.CropType,
		hasNDVI:    req.EOSNDVI != nil,
		hasReading: req.CurrentNDVI > 0 || req.PeakNDVI > 0,
		gddScore:   th.gddScore(req.GDDConfidence),
	}
	if req.GDDRequired > 0 {
		n.progress = req.GDDAccumulated / req.GDDRequired
		n.progressKnown = true
		n.hasGDD = req.EOSGDD != nil
	} else if req.EOSGDD != nil {
		n.gddDiscarded = true
	}
	return n, nil
}

func checkFraction(field string, v float64) error {
	if !isFinite(v) || v < 0 || v > 1 {
		return invalid(field, "must lie in [0,1], got %v", v)
	}
	return nil
}

func checkDate(field string, d *types.Date) error {
	if d == nil {
		return nil
	}
	if d.IsZero() {
		return invalid(field, "must be a calendar date")
	}
	if y := d.Year(); y < minYear || y > maxYear {
		return invalid(field, "year %d outside [%d,%d]", y, minYear, maxYear)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
