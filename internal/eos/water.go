package eos

import "harvestwatch/internal/types"

// applyWaterStress brings the date forward by the stress offset and relabels
// pure NDVI/GDD methods. FUSION keeps its label.
func applyWaterStress(in normalized, v verdict, today types.Date, th Thresholds) verdict {
	level := in.req.WaterStressLevel
	adj := th.WaterAdjustmentDays[level]
	v.waterAdjustment = adj

	if adj != 0 {
		v.eos = v.eos.AddDays(adj)
		switch v.method {
		case types.MethodNDVI:
			v.method = types.MethodNDVIAdjusted
		case types.MethodGDD:
			v.method = types.MethodGDDAdjusted
		}
		v = v.withFactor("Water stress %s brings EOS forward by %d days", level, -adj)
	}
	if v.forward && !v.eos.After(today) {
		v.eos = today.AddDays(1)
	}

	if yieldAtRisk(in.req, th) {
		v = v.withWarning("Yield at risk: water stress %s%s%s", level,
			optionalInt(", %d stress days", in.req.StressDays),
			optionalFloat(", estimated yield impact %.0f%%", in.req.YieldImpact))
	}
	return v
}

func yieldAtRisk(req types.EstimateRequest, th Thresholds) bool {
	switch {
	case req.WaterStressLevel == types.WaterStressCritical:
		return true
	case req.StressDays != nil && *req.StressDays >= th.YieldRiskStressDays:
		return true
	case req.YieldImpact != nil && *req.YieldImpact >= th.YieldRiskImpact:
		return true
	}
	return false
}
