package eos

import (
	"fmt"
	"strings"

	"harvestwatch/internal/types"
)

// explain adds the descriptive factors and assembles the explanation. Nothing
// produced here feeds back into the date, method, confidence or stage.
func explain(in normalized, v verdict, confidence int, stage types.PhenologicalStage, passed bool) (verdict, string) {
	if in.progressKnown {
		v = v.withFactor("Thermal accumulation at %.0f%% of the requirement (%.0f of %.0f GDD)",
			in.progress*100, in.req.GDDAccumulated, in.req.GDDRequired)
	}
	if in.hasReading {
		v = v.withFactor("Current NDVI %.2f (peak %.2f), decline %.2f%% per period",
			in.req.CurrentNDVI, in.req.PeakNDVI, in.req.NDVIDeclineRate)
	}
	if fm := in.req.FusionMetrics; fm != nil {
		v = v.withFactor("NDVI series: %d gaps filled, longest gap %d days, radar contribution %.0f%%, continuity %.2f",
			fm.GapsFilled, fm.MaxGapDays, fm.RadarContribution*100, fm.ContinuityScore)
		if fm.IsBeta {
			v = v.withWarning("NDVI series uses beta radar fusion; quality bonus reduced")
		}
	}
	if pd := in.req.PlantingDate; pd != nil && v.eos.Before(*pd) {
		v = v.withWarning("Estimated EOS %s precedes the planting date %s; check the input projections", v.eos, *pd)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "End of season estimated for %s using %s, confidence %d%% (%s). Stage: %s.",
		v.eos, MethodLabel(v.method), confidence, ConfidenceLabel(confidence), PhenologicalStageLabel(stage))
	switch v.rule {
	case types.SanityRuleActiveCanopy:
		b.WriteString(" The vegetation signal overrides the thermal maturity claim.")
	case types.SanityRuleMaturityAgreement:
		b.WriteString(" Thermal and vegetation signals agree the crop is mature.")
	}
	if passed {
		b.WriteString(" The estimated date has already passed.")
	}
	if v.noData {
		b.WriteString(" No projection was available; the date is a generic estimate.")
	}
	return v, b.String()
}

func optionalInt(format string, v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

func optionalFloat(format string, v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
