// Package config loads the HarvestWatch process configuration once at startup.
//
// Values are resolved in priority order:
//
//	OS environment -> .env file -> AWS SSM Parameter Store
//
// A missing required value or a malformed one is a startup failure.
package config

import (
	"strings"
	"time"

	"harvestwatch/internal/eos"
	"harvestwatch/internal/types"
)

// SecretString is the redacted secret type used for connection strings.
type SecretString = types.SecretString

// Config is the top-level process configuration. Components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"harvestwatch-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	Engine        EngineConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
}

// DatabaseConfig holds the estimate history store settings. History is
// disabled when URL is empty.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds region and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"sa-east-1"`

	// Estimate events are not published when empty.
	EstimateEventsQueue string `envconfig:"SQS_ESTIMATE_EVENTS" validate:"omitempty,url"`

	// LocalStack endpoint; empty in deployed environments.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"HarvestWatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// SecurityConfig holds browser-facing settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// EngineConfig exposes every fusion-engine threshold as an environment
// variable. Defaults equal eos.DefaultThresholds.
type EngineConfig struct {
	ConvergenceWindowDays int `envconfig:"EOS_CONVERGENCE_WINDOW_DAYS" default:"7"`
	GDDScoreHigh          int `envconfig:"EOS_GDD_SCORE_HIGH" default:"80"`
	GDDScoreMedium        int `envconfig:"EOS_GDD_SCORE_MEDIUM" default:"55"`
	GDDScoreLow           int `envconfig:"EOS_GDD_SCORE_LOW" default:"30"`

	FallbackOffsetDays   int            `envconfig:"EOS_FALLBACK_OFFSET_DAYS" default:"30"`
	CropOffsetDays       map[string]int `envconfig:"EOS_CROP_OFFSET_DAYS"` // e.g. "soja:28,milho:35"; merged over the built-in table
	NoDataBaseConfidence int            `envconfig:"EOS_NO_DATA_BASE_CONFIDENCE" default:"20"`
	NoDataConfidenceCap  int            `envconfig:"EOS_NO_DATA_CONFIDENCE_CAP" default:"30"`

	ConflictNDVI           float64 `envconfig:"EOS_CONFLICT_NDVI" default:"0.55"`
	ConflictMaxDeclineRate float64 `envconfig:"EOS_CONFLICT_MAX_DECLINE_RATE" default:"1.0"`
	ConflictConfidenceCap  int     `envconfig:"EOS_CONFLICT_CONFIDENCE_CAP" default:"50"`
	SenescenceNDVI         float64 `envconfig:"EOS_SENESCENCE_NDVI" default:"0.5"`
	MinDeclineRate         float64 `envconfig:"EOS_MIN_DECLINE_RATE" default:"0.05"`
	SamplingPeriodDays     int     `envconfig:"EOS_SAMPLING_PERIOD_DAYS" default:"5"`
	MaxForwardDays         int     `envconfig:"EOS_MAX_FORWARD_DAYS" default:"45"`

	ConvergenceBonus     int     `envconfig:"EOS_CONVERGENCE_BONUS" default:"10"`
	AgreementBonus       int     `envconfig:"EOS_AGREEMENT_BONUS" default:"5"`
	QualityBonus         int     `envconfig:"EOS_QUALITY_BONUS" default:"5"`
	BetaQualityBonus     int     `envconfig:"EOS_BETA_QUALITY_BONUS" default:"2"`
	QualityMaxGapDays    int     `envconfig:"EOS_QUALITY_MAX_GAP_DAYS" default:"7"`
	QualityMinContinuity float64 `envconfig:"EOS_QUALITY_MIN_CONTINUITY" default:"0.8"`

	MaturityNDVI           float64 `envconfig:"EOS_MATURITY_NDVI" default:"0.5"`
	VegetativeNDVI         float64 `envconfig:"EOS_VEGETATIVE_NDVI" default:"0.7"`
	ReproductiveProgress   float64 `envconfig:"EOS_REPRODUCTIVE_PROGRESS" default:"0.40"`
	GrainFillingProgress   float64 `envconfig:"EOS_GRAIN_FILLING_PROGRESS" default:"0.70"`
	SenescenceProgress     float64 `envconfig:"EOS_SENESCENCE_PROGRESS" default:"0.90"`
	MaturityProgress       float64 `envconfig:"EOS_MATURITY_PROGRESS" default:"1.00"`
	NDVIOnlySenescenceNDVI float64 `envconfig:"EOS_NDVI_ONLY_SENESCENCE_NDVI" default:"0.6"`

	WaterAdjustLow      int     `envconfig:"EOS_WATER_ADJUST_LOW" default:"-1"`
	WaterAdjustMedium   int     `envconfig:"EOS_WATER_ADJUST_MEDIUM" default:"-2"`
	WaterAdjustHigh     int     `envconfig:"EOS_WATER_ADJUST_HIGH" default:"-4"`
	WaterAdjustCritical int     `envconfig:"EOS_WATER_ADJUST_CRITICAL" default:"-7"`
	YieldRiskStressDays int     `envconfig:"EOS_YIELD_RISK_STRESS_DAYS" default:"20"`
	YieldRiskImpact     float64 `envconfig:"EOS_YIELD_RISK_IMPACT" default:"20"`
}

// Thresholds converts the env view into engine thresholds. The result is not
// validated; eos.New does that.
func (c EngineConfig) Thresholds() eos.Thresholds {
	th := eos.DefaultThresholds()

	th.ConvergenceWindowDays = c.ConvergenceWindowDays
	th.GDDScoreHigh = c.GDDScoreHigh
	th.GDDScoreMedium = c.GDDScoreMedium
	th.GDDScoreLow = c.GDDScoreLow

	th.FallbackOffsetDays = c.FallbackOffsetDays
	// Keys are matched against crop_type after the engine lowercases and trims it.
	for crop, days := range c.CropOffsetDays {
		th.CropFallbackOffsetDays[strings.ToLower(strings.TrimSpace(crop))] = days
	}
	th.NoDataBaseConfidence = c.NoDataBaseConfidence
	th.NoDataConfidenceCap = c.NoDataConfidenceCap

	th.ConflictNDVI = c.ConflictNDVI
	th.ConflictMaxDeclineRate = c.ConflictMaxDeclineRate
	th.ConflictConfidenceCap = c.ConflictConfidenceCap
	th.SenescenceNDVI = c.SenescenceNDVI
	th.MinDeclineRate = c.MinDeclineRate
	th.SamplingPeriodDays = c.SamplingPeriodDays
	th.MaxForwardDays = c.MaxForwardDays

	th.ConvergenceBonus = c.ConvergenceBonus
	th.AgreementBonus = c.AgreementBonus
	th.QualityBonus = c.QualityBonus
	th.BetaQualityBonus = c.BetaQualityBonus
	th.QualityMaxGapDays = c.QualityMaxGapDays
	th.QualityMinContinuity = c.QualityMinContinuity

	th.MaturityNDVI = c.MaturityNDVI
	th.VegetativeNDVI = c.VegetativeNDVI
	th.ReproductiveProgress = c.ReproductiveProgress
	th.GrainFillingProgress = c.GrainFillingProgress
	th.SenescenceProgress = c.SenescenceProgress
	th.MaturityProgress = c.MaturityProgress
	th.NDVIOnlySenescenceNDVI = c.NDVIOnlySenescenceNDVI

	th.WaterAdjustmentDays = map[types.WaterStressLevel]int{
		types.WaterStressNone:     0,
		types.WaterStressLow:      c.WaterAdjustLow,
		types.WaterStressMedium:   c.WaterAdjustMedium,
		types.WaterStressHigh:     c.WaterAdjustHigh,
		types.WaterStressCritical: c.WaterAdjustCritical,
	}
	th.YieldRiskStressDays = c.YieldRiskStressDays
	th.YieldRiskImpact = c.YieldRiskImpact
	return th
}

// HistoryEnabled reports whether an estimate store is configured.
func (c *Config) HistoryEnabled() bool { return c.Database.URL.IsSet() }

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
