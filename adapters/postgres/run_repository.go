// Package postgres persists completed cutoff runs so the report endpoints can
// serve past results.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"godfi/domain/core"
	"godfi/domain/cutoff"
	apperrors "godfi/internal/errors"
	"godfi/ports"
)

// runRepository implements ports.RunRepository over Postgres.
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// EnsureSchema creates the runs table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cutoff_runs (
		id          TEXT PRIMARY KEY,
		model_text  TEXT NOT NULL,
		sample_size INTEGER NOT NULL,
		reps        INTEGER NOT NULL,
		seed        BIGINT NOT NULL,
		estimator   TEXT NOT NULL,
		table_json  JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return apperrors.Wrap(err, "failed to ensure cutoff_runs schema")
	}
	return nil
}

// Save inserts a completed run.
func (r *runRepository) Save(ctx context.Context, run *cutoff.Run) error {
	tableJSON, err := json.Marshal(run.Table)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal cutoff table")
	}

	query := `INSERT INTO cutoff_runs (
		id, model_text, sample_size, reps, seed, estimator, table_json, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID.String(), run.ModelText, run.SampleSize, run.Reps, run.Seed,
		run.Estimator, tableJSON, run.CreatedAt.Time(),
	)
	if err != nil {
		return apperrors.Wrapf(err, "failed to save run %s", run.ID)
	}
	return nil
}

// Get retrieves a run by its ID.
func (r *runRepository) Get(ctx context.Context, id core.RunID) (*cutoff.Run, error) {
	query := `SELECT id, model_text, sample_size, reps, seed, estimator, table_json, created_at
		FROM cutoff_runs WHERE id = $1`

	var (
		run       cutoff.Run
		idStr     string
		tableJSON []byte
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(
		&idStr, &run.ModelText, &run.SampleSize, &run.Reps, &run.Seed,
		&run.Estimator, &tableJSON, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, apperrors.Wrapf(err, "failed to get run %s", id)
	}

	if err := json.Unmarshal(tableJSON, &run.Table); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal cutoff table")
	}
	run.ID = core.RunID(idStr)
	run.CreatedAt = core.NewTimestamp(createdAt)
	return &run, nil
}
