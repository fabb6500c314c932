package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"harvestwatch/internal/config"
	"harvestwatch/internal/core"
)

// buildTestServer wires the real server with every optional dependency
// disabled, so no database or AWS endpoint is needed.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	return srv
}

func serve(srv *core.Server, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

// TestHealthEndpoint verifies that the wired server reports healthy with no
// probes registered.
func TestHealthEndpoint(t *testing.T) {
	srv := buildTestServer(t)
	rec := serve(srv, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: got status %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
}

// TestEstimateEndpoint runs one estimate through the full middleware chain.
func TestEstimateEndpoint(t *testing.T) {
	srv := buildTestServer(t)
	rec := serve(srv, http.MethodPost, "/v1/estimates",
		`{"field_id":"talhao-7","eos_ndvi":"2099-03-12","ndvi_confidence":70,"current_ndvi":0.66,"peak_ndvi":0.85}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/estimates: got %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			ID     string `json:"id"`
			Result struct {
				EOS    string `json:"eos"`
				Method string `json:"method"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Data.ID == "" || resp.Data.Result.EOS != "2099-03-12" || resp.Data.Result.Method != "NDVI" {
		t.Errorf("unexpected record: %+v", resp.Data)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header missing")
	}
}

// TestHistoryWithoutDatabase verifies history reports itself disabled
// instead of pretending the field has no estimates.
func TestHistoryWithoutDatabase(t *testing.T) {
	srv := buildTestServer(t)
	rec := serve(srv, http.MethodGet, "/v1/fields/talhao-7/estimates", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500; body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "internal_history_disabled") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// TestLabelsEndpoint verifies the label handler is mounted.
func TestLabelsEndpoint(t *testing.T) {
	srv := buildTestServer(t)
	rec := serve(srv, http.MethodGet, "/v1/labels/confidence?score=85", "")

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ALTA"`) {
		t.Errorf("got %d; body: %s", rec.Code, rec.Body.String())
	}
}

// TestLambdaAdapterServesRouter drives the router with an API Gateway event.
func TestLambdaAdapterServesRouter(t *testing.T) {
	h := newLambdaHandler(buildTestServer(t))

	ev := events.APIGatewayV2HTTPRequest{RawPath: "/v1/labels"}
	ev.RequestContext.HTTP.Method = http.MethodGet

	resp, err := h(context.Background(), ev)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Body, "Soma Térmica") {
		t.Errorf("response = %d %s", resp.StatusCode, resp.Body)
	}
}

func TestLambdaAdapterAdoptsGatewayRequestID(t *testing.T) {
	h := newLambdaHandler(buildTestServer(t))

	ev := events.APIGatewayV2HTTPRequest{RawPath: "/health", Headers: map[string]string{}}
	ev.RequestContext.HTTP.Method = http.MethodGet
	ev.RequestContext.RequestID = "gw-req-42"

	resp, err := h(context.Background(), ev)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := resp.Headers["X-Request-Id"]; got != "gw-req-42" {
		t.Errorf("X-Request-Id = %q, want gateway request ID", got)
	}

	ev.Headers["x-request-id"] = "client-7"
	resp, err = h(context.Background(), ev)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := resp.Headers["X-Request-Id"]; got != "client-7" {
		t.Errorf("X-Request-Id = %q, caller header should win", got)
	}
}

// TestBuildServerRejectsUnreachableDatabase verifies startup fails fast when
// history is configured but the database cannot be reached.
func TestBuildServerRejectsUnreachableDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	setTestEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := buildServer(context.Background(), cfg, slog.New(slog.NewJSONHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected an error for an unreachable database")
	}
}

// TestIsLambdaEnvironment verifies Lambda environment detection logic.
func TestIsLambdaEnvironment(t *testing.T) {
	os.Unsetenv("AWS_LAMBDA_RUNTIME_API")
	os.Unsetenv("_LAMBDA_SERVER_PORT")

	if isLambdaEnvironment() {
		t.Error("isLambdaEnvironment: expected false when no Lambda env vars are set")
	}

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "localhost:8080")
	if !isLambdaEnvironment() {
		t.Error("isLambdaEnvironment: expected true when AWS_LAMBDA_RUNTIME_API is set")
	}
}

// TestNewLogger verifies that the logger factory handles various log levels.
func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		t.Run(level, func(t *testing.T) {
			if newLogger(level) == nil {
				t.Fatalf("newLogger(%q) returned nil", level)
			}
		})
	}
}

// setTestEnv sets the minimal environment for config.LoadConfig in local
// mode with history, metrics and events disabled.
func setTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("SQS_ESTIMATE_EVENTS", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
}
