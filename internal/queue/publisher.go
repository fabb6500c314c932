// Package queue publishes estimate events to SQS for downstream report
// consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"harvestwatch/internal/types"
)

// SQSSender is the subset of *sqs.Client used here.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EstimatePublisher sends one EstimateEvent per completed estimate.
type EstimatePublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEstimatePublisher returns a publisher for queueURL.
func NewEstimatePublisher(client SQSSender, queueURL string, logger *slog.Logger) *EstimatePublisher {
	return &EstimatePublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewEstimateEvent builds the event for rec. When history is enabled the
// service only publishes records that were stored.
func NewEstimateEvent(rec *types.EstimateRecord, occurredAt time.Time) types.EstimateEvent {
	return types.EstimateEvent{
		EventID:           uuid.NewString(),
		Type:              types.EventEstimateCompleted,
		EstimateID:        rec.ID,
		FieldID:           rec.FieldID,
		EOS:               rec.Result.EOS,
		Method:            rec.Result.Method,
		Confidence:        rec.Result.Confidence,
		PhenologicalStage: rec.Result.PhenologicalStage,
		Passed:            rec.Result.Passed,
		OccurredAt:        occurredAt,
	}
}

// PublishEstimate serializes the event for rec and sends it. The event type
// travels as the EventType message attribute so subscribers can filter
// without parsing the body.
func (p *EstimatePublisher) PublishEstimate(ctx context.Context, rec *types.EstimateRecord) error {
	event := NewEstimateEvent(rec, p.now())

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal EstimateEvent: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"EventType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(event.Type)),
		},
	}
	if rec.FieldID != "" {
		attrs["FieldID"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(rec.FieldID),
		}
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			"failed to publish estimate event",
			fmt.Errorf("queue: send to %s: %w", p.queueURL, err))
	}

	var messageID string
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	p.logger.InfoContext(ctx, "estimate event published",
		"event_id", event.EventID,
		"estimate_id", event.EstimateID,
		"field_id", event.FieldID,
		"message_id", messageID,
	)
	return nil
}
