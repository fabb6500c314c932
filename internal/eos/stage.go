package eos

import "harvestwatch/internal/types"

// classifyStage derives the phenological stage. Live NDVI readings take
// priority over GDD progress; an active-canopy conflict never reports MATURITY.
func classifyStage(in normalized, rule types.SanityRule, th Thresholds) types.PhenologicalStage {
	stage := stageFor(in, th)
	if rule == types.SanityRuleActiveCanopy && stage == types.StageMaturity {
		return types.StageSenescence
	}
	return stage
}

func stageFor(in normalized, th Thresholds) types.PhenologicalStage {
	ndvi, decline := in.req.CurrentNDVI, in.req.NDVIDeclineRate

	if in.hasReading {
		if ndvi < th.MaturityNDVI {
			return types.StageMaturity
		}
		if ndvi > th.VegetativeNDVI && decline <= 0 {
			return types.StageVegetative
		}
	}

	if in.progressKnown {
		switch p := in.progress; {
		case p < th.ReproductiveProgress:
			return types.StageVegetative
		case p < th.GrainFillingProgress:
			return types.StageReproductive
		case p < th.SenescenceProgress:
			return types.StageGrainFilling
		case p < th.MaturityProgress:
			return types.StageSenescence
		default:
			return types.StageMaturity
		}
	}

	// No thermal requirement: read the canopy alone.
	switch {
	case !in.hasReading || decline <= 0:
		return types.StageVegetative
	case ndvi <= th.NDVIOnlySenescenceNDVI:
		return types.StageSenescence
	default:
		return types.StageGrainFilling
	}
}
