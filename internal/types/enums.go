package types

// Method identifies which signal produced the final EOS date.
type Method string

const (
	MethodNDVI         Method = "NDVI"
	MethodGDD          Method = "GDD"
	MethodFusion       Method = "FUSION"
	MethodNDVIAdjusted Method = "NDVI_ADJUSTED"
	MethodGDDAdjusted  Method = "GDD_ADJUSTED"
)

// AllMethods lists every method in presentation order.
var AllMethods = []Method{MethodNDVI, MethodGDD, MethodFusion, MethodNDVIAdjusted, MethodGDDAdjusted}

// PhenologicalStage is the ordered crop-development label.
type PhenologicalStage string

const (
	StageVegetative   PhenologicalStage = "VEGETATIVE"
	StageReproductive PhenologicalStage = "REPRODUCTIVE"
	StageGrainFilling PhenologicalStage = "GRAIN_FILLING"
	StageSenescence   PhenologicalStage = "SENESCENCE"
	StageMaturity     PhenologicalStage = "MATURITY"
)

// AllStages lists the stages from earliest to latest.
var AllStages = []PhenologicalStage{StageVegetative, StageReproductive, StageGrainFilling, StageSenescence, StageMaturity}

// GDDConfidence is the qualitative confidence of the thermal projection.
type GDDConfidence string

const (
	GDDConfidenceHigh   GDDConfidence = "HIGH"
	GDDConfidenceMedium GDDConfidence = "MEDIUM"
	GDDConfidenceLow    GDDConfidence = "LOW"
)

// IsValid reports whether c is one of the known confidence levels.
func (c GDDConfidence) IsValid() bool {
	switch c {
	case GDDConfidenceHigh, GDDConfidenceMedium, GDDConfidenceLow:
		return true
	}
	return false
}

// WaterStressLevel is the qualitative severity of water deficit.
type WaterStressLevel string

const (
	WaterStressNone     WaterStressLevel = "NONE"
	WaterStressLow      WaterStressLevel = "LOW"
	WaterStressMedium   WaterStressLevel = "MEDIUM"
	WaterStressHigh     WaterStressLevel = "HIGH"
	WaterStressCritical WaterStressLevel = "CRITICAL"
)

// IsValid reports whether l is one of the known stress levels.
func (l WaterStressLevel) IsValid() bool {
	switch l {
	case WaterStressNone, WaterStressLow, WaterStressMedium, WaterStressHigh, WaterStressCritical:
		return true
	}
	return false
}

// ProjectionStatus describes how an upstream projection was used.
type ProjectionStatus string

const (
	ProjectionAvailable   ProjectionStatus = "AVAILABLE"
	ProjectionUnavailable ProjectionStatus = "UNAVAILABLE"
	// ProjectionDiscarded marks a GDD date supplied without a thermal requirement.
	ProjectionDiscarded ProjectionStatus = "DISCARDED"
	// ProjectionOverridden marks a GDD date replaced by the sanity guard.
	ProjectionOverridden ProjectionStatus = "OVERRIDDEN"
)

// SanityRule records which sanity-guard branch fired.
type SanityRule string

const (
	SanityRuleNone              SanityRule = "NONE"
	SanityRuleActiveCanopy      SanityRule = "CONFLICT_ACTIVE_CANOPY"
	SanityRuleMaturityAgreement SanityRule = "MATURITY_AGREEMENT"
)

// EventType identifies the kind of outbound estimate event.
type EventType string

const (
	EventEstimateCompleted EventType = "estimate_completed"
)
