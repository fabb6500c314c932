// Package telemetry publishes API and estimate metrics to CloudWatch.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sony/gobreaker/v2"

	"harvestwatch/internal/types"
)

// putTimeout bounds one PutMetricData call. Request metrics are recorded
// inline, so this is also the worst-case latency they add.
const putTimeout = 500 * time.Millisecond

// CloudWatchClient is the subset of *cloudwatch.Client used here.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics records metrics through a circuit breaker. Failures are
// logged and dropped; an open breaker drops without logging.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
	breaker   *gobreaker.CircuitBreaker[*cloudwatch.PutMetricDataOutput]
}

// NewCloudWatchMetrics returns a recorder for namespace (types.MetricNamespace
// when empty).
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		breaker: gobreaker.NewCircuitBreaker[*cloudwatch.PutMetricDataOutput](gobreaker.Settings{
			Name:        "cloudwatch",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
	}
}

// RecordRequest emits APILatency (ms) and APIRequestCount with Method,
// Endpoint and Status dimensions.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dimension(types.DimMethod, method),
		dimension(types.DimEndpoint, endpoint),
		dimension(types.DimStatus, status),
	}
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	m.put(ctx, "request", []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	})
}

// RecordEstimate emits EstimateProduced (Method, Stage), EstimateConfidence
// (Method) and, when the sanity guard fired, SanityOverride (Rule).
func (m *CloudWatchMetrics) RecordEstimate(ctx context.Context, result *types.EstimateResult) {
	if result == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	method := dimension(types.DimMethod, string(result.Method))
	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricEstimateProduced),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{method, dimension(types.DimStage, string(result.PhenologicalStage))},
		},
		{
			MetricName: aws.String(types.MetricEstimateConfidence),
			Value:      aws.Float64(float64(result.Confidence)),
			Unit:       cwtypes.StandardUnitPercent,
			Dimensions: []cwtypes.Dimension{method},
		},
	}
	if result.SanityRule != "" && result.SanityRule != types.SanityRuleNone {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricSanityOverride),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dimension(types.DimRule, string(result.SanityRule))},
		})
	}
	m.put(ctx, "estimate", data)
}

func (m *CloudWatchMetrics) put(ctx context.Context, kind string, data []cwtypes.MetricDatum) {
	_, err := m.breaker.Execute(func() (*cloudwatch.PutMetricDataOutput, error) {
		return m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: data,
		})
	})
	if err == nil || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	m.logger.Warn("failed to record metrics", "kind", kind, "error", err.Error())
}

func dimension(name, value string) cwtypes.Dimension {
	if value == "" {
		value = "unknown"
	}
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
