package eos

import (
	"harvestwatch/internal/types"
)

// scoreConfidence combines the base confidence with the convergence,
// agreement and data-quality bonuses, then applies the caps. Caps run last so
// no bonus can lift a capped score.
func scoreConfidence(in normalized, v verdict, th Thresholds) int {
	score := v.confidence
	if v.method == types.MethodFusion {
		score += th.ConvergenceBonus
	}
	if v.rule == types.SanityRuleMaturityAgreement {
		score += th.AgreementBonus
	}
	score += qualityBonus(in, th)
	score = min(max(score, 0), 100)

	if v.rule == types.SanityRuleActiveCanopy {
		score = min(score, th.ConflictConfidenceCap)
	}
	if v.noData {
		score = min(score, th.NoDataConfidenceCap)
	}
	return score
}

// qualityBonus rewards a well-sampled NDVI series. It is never negative.
func qualityBonus(in normalized, th Thresholds) int {
	fm := in.req.FusionMetrics
	if fm == nil || !in.hasNDVI {
		return 0
	}
	if fm.MaxGapDays >= th.QualityMaxGapDays || fm.ContinuityScore < th.QualityMinContinuity {
		return 0
	}
	if fm.IsBeta {
		return th.BetaQualityBonus
	}
	return th.QualityBonus
}
