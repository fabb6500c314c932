// Package main is the entry point for the HarvestWatch API.
//
// It loads configuration, builds the fusion engine and its optional side
// effects (PostgreSQL history, CloudWatch metrics, SQS events), mounts the
// handlers on the core chassis and serves them.
//
// Inside AWS Lambda the router is driven by API Gateway v2 events; anywhere
// else it runs as a plain HTTP server with graceful shutdown on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	proxycore "github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"golang.org/x/sync/errgroup"

	"harvestwatch/internal/api/handlers"
	"harvestwatch/internal/config"
	"harvestwatch/internal/core"
	"harvestwatch/internal/db"
	"harvestwatch/internal/eos"
	"harvestwatch/internal/estimates"
	"harvestwatch/internal/queue"
	"harvestwatch/internal/telemetry"
	"harvestwatch/internal/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	provider := config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION"))
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("harvestwatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"history_enabled", cfg.HistoryEnabled(),
		"metrics_enabled", cfg.Observability.EnableMetrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		lambda.Start(newLambdaHandler(srv))
		return nil
	}
	return runHTTPServer(ctx, srv, cfg, logger)
}

// buildServer wires every component selected by cfg and mounts the routes.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	engine, err := eos.New(cfg.Engine.Thresholds())
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	var opts []estimates.Option

	if cfg.HistoryEnabled() {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		srv.OnShutdown(func() error { pool.Close(); return nil })
		srv.HealthProbes = append(srv.HealthProbes, db.NewProbe(pool))
		opts = append(opts, estimates.WithRepository(db.NewEstimateRepository(pool)))
	}

	if cfg.Observability.EnableMetrics || cfg.AWS.EstimateEventsQueue != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		if cfg.Observability.EnableMetrics {
			metrics := telemetry.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg),
				cfg.Observability.MetricNamespace, types.SlogLogger{L: logger})
			srv.Metrics = metrics
			opts = append(opts, estimates.WithMetrics(metrics))
		}
		if cfg.AWS.EstimateEventsQueue != "" {
			opts = append(opts, estimates.WithPublisher(
				queue.NewEstimatePublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.EstimateEventsQueue, logger)))
		}
	}

	svc, err := estimates.NewService(engine, logger, opts...)
	if err != nil {
		return nil, err
	}

	estimateHandler := handlers.NewEstimateHandler(svc, srv.Validator, logger)
	labelHandler := handlers.NewLabelHandler()
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		estimateHandler.RegisterRoutes,
		labelHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// loadAWSConfig loads the default credential chain for the configured
// region, pointing every client at EndpointURL when set (LocalStack).
func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if c.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return awsCfg, nil
}

// lambdaHandlerFunc is the API Gateway HTTP API (payload 2.0) entry point.
type lambdaHandlerFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// newLambdaHandler drives the router with API Gateway v2 events.
func newLambdaHandler(srv *core.Server) lambdaHandlerFunc {
	return httpadapter.NewV2(gatewayRequestID(srv.Handler())).ProxyWithContext
}

// gatewayRequestID adopts the API Gateway request ID when the caller sent
// no X-Request-Id, so API logs line up with the gateway access logs.
func gatewayRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			if gw, ok := proxycore.GetAPIGatewayV2ContextFromContext(r.Context()); ok && gw.RequestID != "" {
				r.Header.Set("X-Request-Id", gw.RequestID)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight
// requests and releases server resources.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level name.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
