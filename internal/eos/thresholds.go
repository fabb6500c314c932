package eos

import (
	"fmt"

	"harvestwatch/internal/types"
)

// Thresholds holds every tunable constant of the fusion engine. Recalibration
// happens here (or through config.EngineConfig); control flow never changes.
type Thresholds struct {
	// Selector
	ConvergenceWindowDays int // |eosNdvi - eosGdd| below this is FUSION
	GDDScoreHigh          int
	GDDScoreMedium        int
	GDDScoreLow           int

	// Fallback when neither projection exists
	FallbackOffsetDays     int
	CropFallbackOffsetDays map[string]int // keyed by lowercased crop name
	NoDataBaseConfidence   int
	NoDataConfidenceCap    int

	// Sanity guard, Rule A (thermal maturity vs. green canopy)
	ConflictNDVI           float64 // canopy counts as active above this
	ConflictMaxDeclineRate float64 // decline at or below this shows no senescence
	ConflictConfidenceCap  int
	SenescenceNDVI         float64 // reading the forward projection aims for
	MinDeclineRate         float64 // decline below this is treated as flat
	SamplingPeriodDays     int     // days per NDVI sampling period
	MaxForwardDays         int     // ceiling for the forward projection

	// Confidence scorer
	ConvergenceBonus     int
	AgreementBonus       int
	QualityBonus         int
	BetaQualityBonus     int
	QualityMaxGapDays    int // fusion metrics gap must be below this
	QualityMinContinuity float64

	// Stage classifier (MaturityNDVI doubles as the Rule B threshold)
	MaturityNDVI           float64
	VegetativeNDVI         float64
	ReproductiveProgress   float64
	GrainFillingProgress   float64
	SenescenceProgress     float64
	MaturityProgress       float64
	NDVIOnlySenescenceNDVI float64

	// Water stress
	WaterAdjustmentDays map[types.WaterStressLevel]int
	YieldRiskStressDays int
	YieldRiskImpact     float64
}

// DefaultThresholds returns the calibrated production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConvergenceWindowDays: 7,
		GDDScoreHigh:          80,
		GDDScoreMedium:        55,
		GDDScoreLow:           30,

		FallbackOffsetDays: 30,
		CropFallbackOffsetDays: map[string]int{
			"soja":    30,
			"soybean": 30,
			"milho":   35,
			"corn":    35,
			"trigo":   30,
			"wheat":   30,
			"algodao": 40,
			"algodão": 40,
			"cotton":  40,
			"feijao":  20,
			"feijão":  20,
			"bean":    20,
		},
		NoDataBaseConfidence: 20,
		NoDataConfidenceCap:  30,

		ConflictNDVI:           0.55,
		ConflictMaxDeclineRate: 1.0,
		ConflictConfidenceCap:  50,
		SenescenceNDVI:         0.5,
		MinDeclineRate:         0.05,
		SamplingPeriodDays:     5,
		MaxForwardDays:         45,

		ConvergenceBonus:     10,
		AgreementBonus:       5,
		QualityBonus:         5,
		BetaQualityBonus:     2,
		QualityMaxGapDays:    7,
		QualityMinContinuity: 0.8,

		MaturityNDVI:           0.5,
		VegetativeNDVI:         0.7,
		ReproductiveProgress:   0.40,
		GrainFillingProgress:   0.70,
		SenescenceProgress:     0.90,
		MaturityProgress:       1.00,
		NDVIOnlySenescenceNDVI: 0.6,

		WaterAdjustmentDays: map[types.WaterStressLevel]int{
			types.WaterStressNone:     0,
			types.WaterStressLow:      -1,
			types.WaterStressMedium:   -2,
			types.WaterStressHigh:     -4,
			types.WaterStressCritical: -7,
		},
		YieldRiskStressDays: 20,
		YieldRiskImpact:     20,
	}
}

// Validate checks that the thresholds describe a coherent decision procedure.
func (t Thresholds) Validate() error {
	switch {
	case t.ConvergenceWindowDays <= 0:
		return fmt.Errorf("eos: convergence window must be positive, got %d", t.ConvergenceWindowDays)
	case !(t.GDDScoreLow <= t.GDDScoreMedium && t.GDDScoreMedium <= t.GDDScoreHigh):
		return fmt.Errorf("eos: GDD scores must be ordered low <= medium <= high")
	case !isPercent(t.GDDScoreLow) || !isPercent(t.GDDScoreHigh):
		return fmt.Errorf("eos: GDD scores must lie in [0,100]")
	case t.FallbackOffsetDays <= 0:
		return fmt.Errorf("eos: fallback offset must be positive, got %d", t.FallbackOffsetDays)
	case !isPercent(t.NoDataConfidenceCap) || !isPercent(t.ConflictConfidenceCap):
		return fmt.Errorf("eos: confidence caps must lie in [0,100]")
	case t.NoDataBaseConfidence < 0 || t.NoDataBaseConfidence > t.NoDataConfidenceCap:
		return fmt.Errorf("eos: no-data base confidence must lie in [0, cap]")
	case !(0 < t.MaturityNDVI && t.MaturityNDVI < t.ConflictNDVI && t.ConflictNDVI <= t.VegetativeNDVI && t.VegetativeNDVI <= 1):
		return fmt.Errorf("eos: NDVI thresholds must satisfy 0 < maturity < conflict <= vegetative <= 1")
	case !(0 < t.SenescenceNDVI && t.SenescenceNDVI < t.ConflictNDVI):
		return fmt.Errorf("eos: senescence NDVI must lie below the conflict threshold")
	case t.MinDeclineRate <= 0:
		return fmt.Errorf("eos: minimum decline rate must be positive")
	case t.SamplingPeriodDays <= 0 || t.MaxForwardDays <= 0:
		return fmt.Errorf("eos: sampling period and forward horizon must be positive")
	case t.ConvergenceBonus < 0 || t.AgreementBonus < 0 || t.QualityBonus < 0 || t.BetaQualityBonus < 0:
		return fmt.Errorf("eos: bonuses must be non-negative")
	case t.BetaQualityBonus > t.QualityBonus:
		return fmt.Errorf("eos: beta quality bonus cannot exceed the full quality bonus")
	case !(0 < t.ReproductiveProgress && t.ReproductiveProgress < t.GrainFillingProgress &&
		t.GrainFillingProgress < t.SenescenceProgress && t.SenescenceProgress < t.MaturityProgress):
		return fmt.Errorf("eos: GDD progress bands must be strictly increasing")
	}
	for _, level := range []types.WaterStressLevel{
		types.WaterStressNone, types.WaterStressLow, types.WaterStressMedium,
		types.WaterStressHigh, types.WaterStressCritical,
	} {
		days, ok := t.WaterAdjustmentDays[level]
		if !ok {
			return fmt.Errorf("eos: missing water adjustment for %s", level)
		}
		if days > 0 {
			return fmt.Errorf("eos: water adjustment for %s must be <= 0, got %d", level, days)
		}
	}
	return nil
}

// gddScore maps the qualitative GDD confidence to a numeric score.
func (t Thresholds) gddScore(c types.GDDConfidence) int {
	switch c {
	case types.GDDConfidenceHigh:
		return t.GDDScoreHigh
	case types.GDDConfidenceMedium:
		return t.GDDScoreMedium
	default:
		return t.GDDScoreLow
	}
}

// fallbackOffset returns the generic projection horizon for a crop.
func (t Thresholds) fallbackOffset(crop string) int {
	if days, ok := t.CropFallbackOffsetDays[crop]; ok && days > 0 {
		return days
	}
	return t.FallbackOffsetDays
}

func isPercent(v int) bool { return v >= 0 && v <= 100 }
