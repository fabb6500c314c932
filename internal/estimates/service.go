// Package estimates is the application layer around the eos engine. It runs
// an estimate, stores it, reports metrics and announces it to downstream
// consumers. Only the engine call can fail a request; the side effects are
// best effort.
package estimates

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"harvestwatch/internal/types"
)

const (
	// DefaultHistoryLimit is used when History is called with limit 0.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single history page.
	MaxHistoryLimit = 100
)

// Estimator runs the fusion engine. *eos.Engine satisfies it.
type Estimator interface {
	Estimate(req types.EstimateRequest) (*types.EstimateResult, error)
}

// Repository persists estimate records. *db.EstimateRepository satisfies it.
type Repository interface {
	Create(ctx context.Context, rec *types.EstimateRecord) error
	GetByID(ctx context.Context, id string) (*types.EstimateRecord, error)
	ListByField(ctx context.Context, fieldID string, limit int) ([]types.EstimateRecord, error)
}

// MetricsRecorder receives one call per produced estimate.
type MetricsRecorder interface {
	RecordEstimate(ctx context.Context, result *types.EstimateResult)
}

// EventPublisher announces completed estimates.
type EventPublisher interface {
	PublishEstimate(ctx context.Context, rec *types.EstimateRecord) error
}

// Service wires the engine to its optional side effects.
type Service struct {
	engine    Estimator
	repo      Repository
	metrics   MetricsRecorder
	publisher EventPublisher
	clock     types.Clock
	logger    *slog.Logger
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithRepository enables persistence and history.
func WithRepository(r Repository) Option { return func(s *Service) { s.repo = r } }

// WithMetrics enables estimate metrics.
func WithMetrics(m MetricsRecorder) Option { return func(s *Service) { s.metrics = m } }

// WithPublisher enables EstimateCompleted events.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithClock overrides the clock used for record timestamps.
func WithClock(c types.Clock) Option { return func(s *Service) { s.clock = c } }

// NewService returns a Service around engine. The engine is required.
func NewService(engine Estimator, logger *slog.Logger, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, errors.New("estimates: engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		engine: engine,
		clock:  types.RealClock{},
		logger: logger,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HistoryEnabled reports whether a repository is configured.
func (s *Service) HistoryEnabled() bool { return s.repo != nil }

// Estimate runs the engine and, on success, stores, measures and publishes
// the result. Engine validation errors are returned unchanged. No event is
// published for a record the configured repository failed to store.
func (s *Service) Estimate(ctx context.Context, req types.EstimateRequest) (*types.EstimateRecord, error) {
	result, err := s.engine.Estimate(req)
	if err != nil {
		return nil, err
	}

	rec := &types.EstimateRecord{
		ID:        s.newID(),
		FieldID:   req.FieldID,
		CreatedAt: s.clock.Now().UTC(),
		Request:   req,
		Result:    *result,
	}
	log := s.logger.With("estimate_id", rec.ID, "field_id", rec.FieldID)
	if id := types.GetRequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}

	stored := true
	if s.repo != nil {
		if err := s.repo.Create(ctx, rec); err != nil {
			stored = false
			log.Warn("failed to persist estimate", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordEstimate(ctx, result)
	}
	// Consumers resolve estimate_id through the history API, so an event
	// must never point at a record the repository rejected.
	if s.publisher != nil && stored {
		if err := s.publisher.PublishEstimate(ctx, rec); err != nil {
			log.Warn("failed to publish estimate event", "error", err)
		}
	}

	log.Info("estimate produced",
		"method", result.Method,
		"stage", result.PhenologicalStage,
		"confidence", result.Confidence,
		"eos", result.EOS.String(),
		"passed", result.Passed,
		"warnings", len(result.Warnings),
	)
	return rec, nil
}

// Get returns one stored estimate.
func (s *Service) Get(ctx context.Context, id string) (*types.EstimateRecord, error) {
	if s.repo == nil {
		return nil, errHistoryDisabled()
	}
	return s.repo.GetByID(ctx, id)
}

// History returns the most recent estimates for fieldID, newest first. A
// limit of 0 selects DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, fieldID string, limit int) ([]types.EstimateRecord, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLimit,
			"limit must be between 1 and 100", nil, map[string]any{"limit": limit})
	}
	if s.repo == nil {
		return nil, errHistoryDisabled()
	}
	return s.repo.ListByField(ctx, fieldID, limit)
}

func errHistoryDisabled() error {
	return types.NewAppError(types.ErrCodeInternalHistoryDisabled,
		"estimate history is not configured on this deployment", nil)
}
