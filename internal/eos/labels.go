package eos

import "harvestwatch/internal/types"

// Confidence label thresholds.
const (
	HighConfidenceScore   = 70
	MediumConfidenceScore = 40
)

var methodLabels = map[types.Method]string{
	types.MethodNDVI:         "NDVI Histórico",
	types.MethodGDD:          "Soma Térmica",
	types.MethodFusion:       "NDVI + GDD",
	types.MethodNDVIAdjusted: "NDVI + Hídrico",
	types.MethodGDDAdjusted:  "GDD + Hídrico",
}

var stageLabels = map[types.PhenologicalStage]string{
	types.StageVegetative:   "Vegetativo",
	types.StageReproductive: "Reprodutivo",
	types.StageGrainFilling: "Enchimento de Grãos",
	types.StageSenescence:   "Senescência",
	types.StageMaturity:     "Maturação",
}

// ConfidenceLabel buckets a 0-100 score into ALTA, MEDIA or BAIXA.
func ConfidenceLabel(score int) string {
	switch {
	case score >= HighConfidenceScore:
		return "ALTA"
	case score >= MediumConfidenceScore:
		return "MEDIA"
	default:
		return "BAIXA"
	}
}

// MethodLabel returns the localized name of a method. Unknown methods are
// returned verbatim.
func MethodLabel(m types.Method) string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return string(m)
}

// PhenologicalStageLabel returns the localized name of a stage. Unknown
// stages are returned verbatim.
func PhenologicalStageLabel(s types.PhenologicalStage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}
