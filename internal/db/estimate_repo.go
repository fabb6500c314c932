package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"harvestwatch/internal/types"
)

// EstimateRepository stores engine verdicts in eos_estimates. The request
// and result are kept whole as JSONB; the scalar columns exist for
// filtering and reporting.
type EstimateRepository struct {
	db DBTX
}

// NewEstimateRepository returns a repository backed by db.
func NewEstimateRepository(db DBTX) *EstimateRepository {
	return &EstimateRepository{db: db}
}

const estimateColumns = `id::text, COALESCE(field_id, ''), created_at, request, result`

func scanEstimate(row pgx.Row) (*types.EstimateRecord, error) {
	var rec types.EstimateRecord
	if err := row.Scan(&rec.ID, &rec.FieldID, &rec.CreatedAt, &rec.Request, &rec.Result); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Create inserts rec. ID and CreatedAt must be set by the caller.
func (r *EstimateRepository) Create(ctx context.Context, rec *types.EstimateRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO eos_estimates (id, field_id, evaluated_on, eos, method, confidence,
		 phenological_stage, passed, request, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		nilIfEmpty(rec.FieldID),
		rec.Result.EvaluatedOn.Time,
		rec.Result.EOS.Time,
		string(rec.Result.Method),
		rec.Result.Confidence,
		string(rec.Result.PhenologicalStage),
		rec.Result.Passed,
		rec.Request,
		rec.Result,
		rec.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store estimate", err)
	}
	return nil
}

// GetByID returns one estimate or a not_found_estimate error.
func (r *EstimateRepository) GetByID(ctx context.Context, id string) (*types.EstimateRecord, error) {
	notFound := types.NewAppErrorWithDetails(types.ErrCodeNotFoundEstimate, "estimate not found", nil,
		map[string]any{"estimate_id": id})
	// A malformed ID cannot exist; skip the round trip and the cast error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound
	}

	rec, err := scanEstimate(r.db.QueryRow(ctx,
		`SELECT `+estimateColumns+` FROM eos_estimates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load estimate", err)
	}
	return rec, nil
}

// ListByField returns up to limit estimates for fieldID, newest first. An
// unknown field yields an empty slice.
func (r *EstimateRepository) ListByField(ctx context.Context, fieldID string, limit int) ([]types.EstimateRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+estimateColumns+` FROM eos_estimates
		 WHERE field_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		fieldID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list estimates", err)
	}
	defer rows.Close()

	out := make([]types.EstimateRecord, 0, limit)
	for rows.Next() {
		rec, err := scanEstimate(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan estimate", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate estimates", err)
	}
	return out, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
