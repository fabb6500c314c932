package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// testSecretProvider records the keys it was asked for.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// fakeEnv is an in-memory environment for resolveSSMParams.
type fakeEnv map[string]string

func (e fakeEnv) deps() loaderDeps {
	return loaderDeps{
		lookupEnv: func(k string) (string, bool) { v, ok := e[k]; return v, ok },
		setEnv:    func(k, v string) error { e[k] = v; return nil },
		environ: func() []string {
			out := make([]string, 0, len(e))
			for k, v := range e {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

func assertConfigErrorType(t *testing.T, err error, want ConfigErrorType) {
	t.Helper()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Type != want {
		t.Errorf("ConfigError.Type = %s, want %s (%v)", cfgErr.Type, want, err)
	}
}

func TestLoadConfigLocalDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 10s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.MaxConns != 10 || cfg.Database.MinConns != 1 {
		t.Errorf("Database pool = %d/%d, want 10/1", cfg.Database.MaxConns, cfg.Database.MinConns)
	}
	if cfg.AWS.Region != "sa-east-1" {
		t.Errorf("AWS.Region = %q", cfg.AWS.Region)
	}
	if cfg.Observability.MetricNamespace != "HarvestWatch" || cfg.Observability.EnableMetrics {
		t.Errorf("Observability = %+v", cfg.Observability)
	}
	if len(cfg.Security.CorsAllowedOrigins) != 1 || cfg.Security.CorsAllowedOrigins[0] != "*" {
		t.Errorf("CorsAllowedOrigins = %v", cfg.Security.CorsAllowedOrigins)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q", cfg.Build.Version)
	}
	if time.Local != time.UTC {
		t.Error("LoadConfig must force UTC")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("DATABASE_URL", "postgres://harvest:pw@localhost:5432/harvest")
	t.Setenv("SQS_ESTIMATE_EVENTS", "https://sqs.sa-east-1.amazonaws.com/123/estimate-events")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("EOS_MAX_FORWARD_DAYS", "30")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.HistoryEnabled() || cfg.Database.URL.String() != "***REDACTED***" {
		t.Errorf("Database.URL not loaded as a secret")
	}
	if cfg.AWS.EstimateEventsQueue == "" {
		t.Error("AWS.EstimateEventsQueue not loaded")
	}
	if len(cfg.Security.CorsAllowedOrigins) != 2 {
		t.Errorf("CorsAllowedOrigins = %v", cfg.Security.CorsAllowedOrigins)
	}
	if cfg.Engine.Thresholds().MaxForwardDays != 30 {
		t.Errorf("engine override not applied")
	}
}

func TestLoadConfigFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want ConfigErrorType
	}{
		{"missing app env", map[string]string{"APP_ENV": ""}, ErrMissingEnv},
		{"unknown environment", map[string]string{"APP_ENV": "qa"}, ErrValidation},
		{"bad log level", map[string]string{"APP_ENV": "local", "LOG_LEVEL": "verbose"}, ErrValidation},
		{"bad database url", map[string]string{"APP_ENV": "local", "DATABASE_URL": "not a url"}, ErrValidation},
		{"min above max conns", map[string]string{"APP_ENV": "local", "DB_MIN_CONNS": "20"}, ErrValidation},
		{"unparseable duration", map[string]string{"APP_ENV": "local", "REQUEST_TIMEOUT": "soon"}, ErrParsing},
		{"incoherent thresholds", map[string]string{"APP_ENV": "local", "EOS_CONFLICT_NDVI": "0.3"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig(nil)
			if err == nil {
				t.Fatalf("expected error, got config %+v", cfg)
			}
			assertConfigErrorType(t, err, tt.want)
		})
	}
}

func TestLoadEngineConfig(t *testing.T) {
	t.Setenv("EOS_SAMPLING_PERIOD_DAYS", "8")

	th, err := LoadEngineConfig()
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if th.SamplingPeriodDays != 8 {
		t.Errorf("SamplingPeriodDays = %d, want 8", th.SamplingPeriodDays)
	}

	t.Setenv("EOS_REPRODUCTIVE_PROGRESS", "0.95")
	_, err = LoadEngineConfig()
	assertConfigErrorType(t, err, ErrValidation)
}

func TestLoadEngineConfigCropOffsetKeysAreNormalized(t *testing.T) {
	t.Setenv("EOS_CROP_OFFSET_DAYS", "Soja:28, MILHO :33")

	th, err := LoadEngineConfig()
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if got := th.CropFallbackOffsetDays["soja"]; got != 28 {
		t.Errorf("soja offset = %d, want the override 28", got)
	}
	if got := th.CropFallbackOffsetDays["milho"]; got != 33 {
		t.Errorf("milho offset = %d, want the override 33", got)
	}
	if _, ok := th.CropFallbackOffsetDays["Soja"]; ok {
		t.Error("mixed-case key kept; normalized crop types can never match it")
	}
}

func TestResolveSSMParams(t *testing.T) {
	env := fakeEnv{
		"DATABASE_URL_SSM_PARAM": "/prod/harvestwatch/database/url",
		"UNRELATED":              "x",
	}
	provider := &testSecretProvider{values: map[string]string{
		"/prod/harvestwatch/database/url": "postgres://resolved",
	}}

	if err := resolveSSMParams(provider, env.deps()); err != nil {
		t.Fatalf("resolveSSMParams: %v", err)
	}
	if env["DATABASE_URL"] != "postgres://resolved" {
		t.Errorf("DATABASE_URL = %q", env["DATABASE_URL"])
	}
	if provider.callCount != 1 || len(provider.calledWith) != 1 {
		t.Errorf("provider called %d times with %v", provider.callCount, provider.calledWith)
	}
}

func TestResolveSSMParamsDirectEnvWins(t *testing.T) {
	env := fakeEnv{
		"DATABASE_URL":           "postgres://direct",
		"DATABASE_URL_SSM_PARAM": "/prod/harvestwatch/database/url",
	}
	provider := &testSecretProvider{}

	if err := resolveSSMParams(provider, env.deps()); err != nil {
		t.Fatalf("resolveSSMParams: %v", err)
	}
	if provider.callCount != 0 {
		t.Error("provider should not be called when every target is already set")
	}
	if env["DATABASE_URL"] != "postgres://direct" {
		t.Errorf("DATABASE_URL overwritten: %q", env["DATABASE_URL"])
	}
}

func TestResolveSSMParamsErrors(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		env := fakeEnv{"DATABASE_URL_SSM_PARAM": "/p/db"}
		err := resolveSSMParams(nil, env.deps())
		assertConfigErrorType(t, err, ErrSSMResolution)
		if !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Errorf("error should name the target variable: %v", err)
		}
	})
	t.Run("provider failure", func(t *testing.T) {
		env := fakeEnv{"DATABASE_URL_SSM_PARAM": "/p/db"}
		boom := errors.New("throttled")
		err := resolveSSMParams(&testSecretProvider{err: boom}, env.deps())
		assertConfigErrorType(t, err, ErrSSMResolution)
		if !errors.Is(err, boom) {
			t.Error("provider error should be wrapped")
		}
	})
	t.Run("missing parameter", func(t *testing.T) {
		env := fakeEnv{"DATABASE_URL_SSM_PARAM": "/p/db"}
		err := resolveSSMParams(&testSecretProvider{values: map[string]string{}}, env.deps())
		assertConfigErrorType(t, err, ErrSSMResolution)
	})
	t.Run("empty path is ignored", func(t *testing.T) {
		env := fakeEnv{"DATABASE_URL_SSM_PARAM": ""}
		if err := resolveSSMParams(nil, env.deps()); err != nil {
			t.Errorf("empty SSM path should be skipped, got %v", err)
		}
	})
}

func TestLoadConfigWithDepsResolvesBeforeParsing(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	env := fakeEnv{
		"APP_ENV":                "dev",
		"DATABASE_URL_SSM_PARAM": "/dev/harvestwatch/database/url",
	}
	deps := env.deps()
	deps.setEnv = func(k, v string) error {
		env[k] = v
		t.Setenv(k, v)
		return nil
	}
	provider := &testSecretProvider{values: map[string]string{
		"/dev/harvestwatch/database/url": "postgres://u:p@db:5432/harvest",
	}}

	cfg, err := loadConfigWithDeps(provider, deps)
	if err != nil {
		t.Fatalf("loadConfigWithDeps: %v", err)
	}
	if cfg.Database.URL.Unmask() != "postgres://u:p@db:5432/harvest" {
		t.Errorf("Database.URL = %q", cfg.Database.URL.Unmask())
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	withCause := &ConfigError{Type: ErrParsing, Message: "bad value", Err: inner}
	if withCause.Error() != "[PARSING_FAILED] bad value: boom" {
		t.Errorf("Error() = %q", withCause.Error())
	}
	if !errors.Is(withCause, inner) {
		t.Error("Unwrap should expose the cause")
	}
	bare := &ConfigError{Type: ErrMissingEnv, Message: "APP_ENV must be set"}
	if bare.Error() != "[MISSING_ENV] APP_ENV must be set" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
