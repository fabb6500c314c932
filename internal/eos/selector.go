package eos

import (
	"fmt"
	"slices"

	"harvestwatch/internal/types"
)

// verdict is the value each pipeline stage receives and returns. Stages copy
// it; none of them mutates the input they were handed.
type verdict struct {
	method     types.Method
	eos        types.Date
	confidence int // base confidence, before the scorer

	ndviStatus types.ProjectionStatus
	gddStatus  types.ProjectionStatus

	convergenceDays *int
	noData          bool
	rule            types.SanityRule
	forward         bool // eos is a Rule A forward projection
	waterAdjustment int

	factors  []string
	warnings []string
}

func (v verdict) withFactor(format string, args ...any) verdict {
	v.factors = append(slices.Clip(v.factors), fmt.Sprintf(format, args...))
	return v
}

func (v verdict) withWarning(format string, args ...any) verdict {
	v.warnings = append(slices.Clip(v.warnings), fmt.Sprintf(format, args...))
	return v
}

// selectBaseline picks the baseline method, date and confidence from signal
// availability and agreement.
func selectBaseline(in normalized, today types.Date, th Thresholds) verdict {
	v := verdict{
		ndviStatus: types.ProjectionUnavailable,
		gddStatus:  types.ProjectionUnavailable,
		rule:       types.SanityRuleNone,
	}
	if in.hasNDVI {
		v.ndviStatus = types.ProjectionAvailable
	}
	switch {
	case in.hasGDD:
		v.gddStatus = types.ProjectionAvailable
	case in.gddDiscarded:
		v.gddStatus = types.ProjectionDiscarded
		v = v.withFactor("GDD projection %s ignored: no thermal requirement for this crop", in.req.EOSGDD)
	}

	ndviConf := in.req.NDVIConfidence
	switch {
	case in.hasNDVI && in.hasGDD:
		ndvi, gdd := *in.req.EOSNDVI, *in.req.EOSGDD
		diff := ndvi.DaysUntil(gdd)
		if diff < 0 {
			diff = -diff
		}
		v.convergenceDays = &diff

		if diff < th.ConvergenceWindowDays {
			v.method = types.MethodFusion
			v.eos = types.MinDate(ndvi, gdd).AddDays(diff / 2)
			v.confidence = (ndviConf + in.gddScore + 1) / 2
			return v.withFactor("NDVI (%s) and GDD (%s) projections converge within %d days", ndvi, gdd, diff)
		}
		if ndviConf >= in.gddScore {
			v.method, v.eos, v.confidence = types.MethodNDVI, ndvi, ndviConf
		} else {
			v.method, v.eos, v.confidence = types.MethodGDD, gdd, in.gddScore
		}
		return v.withWarning("NDVI (%s) and GDD (%s) projections diverge by %d days; using %s, the more confident signal",
			ndvi, gdd, diff, v.method)

	case in.hasNDVI:
		v.method, v.eos, v.confidence = types.MethodNDVI, *in.req.EOSNDVI, ndviConf
		return v.withFactor("NDVI projection from historical curve matching (confidence %d%%)", ndviConf)

	case in.hasGDD:
		v.method, v.eos, v.confidence = types.MethodGDD, *in.req.EOSGDD, in.gddScore
		return v.withFactor("Thermal projection from growing-degree-day accumulation (%s confidence)", in.req.GDDConfidence)
	}

	offset := th.fallbackOffset(in.crop)
	v.method = types.MethodNDVI
	v.eos = today.AddDays(offset)
	v.confidence = th.NoDataBaseConfidence
	v.noData = true
	return v.withWarning("no data available, using generic projection of %d days from today", offset)
}
