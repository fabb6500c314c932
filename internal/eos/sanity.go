package eos

import (
	"math"

	"harvestwatch/internal/types"
)

// applySanityGuard overrides the baseline when the live canopy contradicts a
// thermal maturity claim (Rule A) and marks agreement when both signals say
// the crop is mature (Rule B). The date is never cleared.
func applySanityGuard(in normalized, v verdict, today types.Date, th Thresholds) verdict {
	if !in.progressKnown || !in.hasReading || in.progress < th.MaturityProgress {
		return v
	}
	ndvi := in.req.CurrentNDVI

	switch {
	case ndvi > th.ConflictNDVI && in.req.NDVIDeclineRate <= th.ConflictMaxDeclineRate:
		v.rule = types.SanityRuleActiveCanopy
		switch {
		case in.hasNDVI && v.method == types.MethodGDD:
			v.method = types.MethodNDVI
			v.eos = *in.req.EOSNDVI
			v.confidence = in.req.NDVIConfidence
			v.gddStatus = types.ProjectionOverridden
			v = v.withFactor("Baseline switched to the NDVI projection %s: the canopy is still active", v.eos)
		case in.hasGDD && !in.hasNDVI && in.req.EOSGDD.Before(today):
			days := forwardDays(ndvi, in.req.NDVIDeclineRate, th)
			v.eos = today.AddDays(days)
			v.forward = true
			v.gddStatus = types.ProjectionOverridden
			v = v.withFactor("EOS projected %d days forward until NDVI falls to %.2f", days, th.SenescenceNDVI)
		}
		return v.withWarning("GDD reports %.0f%% of the thermal requirement but NDVI %.2f shows an active canopy; "+
			"maturity is not declared and confidence is capped at %d%%",
			in.progress*100, ndvi, th.ConflictConfidenceCap)

	case ndvi < th.MaturityNDVI:
		v.rule = types.SanityRuleMaturityAgreement
		return v.withFactor("Thermal requirement met and NDVI %.2f confirms maturity", ndvi)
	}
	return v
}

// forwardDays estimates how many days the canopy needs to decay from ndvi to
// the senescence threshold at the given decline rate (% per sampling period).
// The result lies in [1, MaxForwardDays] and does not grow as decline speeds up.
func forwardDays(ndvi, declineRate float64, th Thresholds) int {
	gap := ndvi - th.SenescenceNDVI
	if gap <= 0 {
		return 1
	}
	if declineRate < th.MinDeclineRate {
		return th.MaxForwardDays
	}
	perPeriod := ndvi * declineRate / 100
	periods := math.Ceil(gap / perPeriod)
	days := periods * float64(th.SamplingPeriodDays)
	if days > float64(th.MaxForwardDays) {
		return th.MaxForwardDays
	}
	return max(int(days), 1)
}
