package db

import (
	"context"

	"harvestwatch/internal/types"
)

// Schema creates the estimate history table. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS eos_estimates (
	id                 uuid PRIMARY KEY,
	field_id           text,
	evaluated_on       date        NOT NULL,
	eos                date        NOT NULL,
	method             text        NOT NULL,
	confidence         integer     NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	phenological_stage text        NOT NULL,
	passed             boolean     NOT NULL,
	request            jsonb       NOT NULL,
	result             jsonb       NOT NULL,
	created_at         timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS eos_estimates_field_created_idx
	ON eos_estimates (field_id, created_at DESC, id DESC)
	WHERE field_id IS NOT NULL;
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply estimate schema", err)
	}
	return nil
}
