package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricAPILatency         = "APILatency"
	MetricAPIRequestCount    = "APIRequestCount"
	MetricEstimateProduced   = "EstimateProduced"
	MetricEstimateConfidence = "EstimateConfidence"
	MetricSanityOverride     = "SanityOverride"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
	DimMethod   = "Method"
	DimStage    = "Stage"
	DimRule     = "Rule"

	// Metric Namespace
	MetricNamespace = "HarvestWatch"
)
