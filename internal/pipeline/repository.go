package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/ingest-notifier/internal/repository/postgres"
)

// Schema creates the audit tables written by Repository.
const Schema = `
CREATE TABLE IF NOT EXISTS notification_runs (
	id            BIGSERIAL PRIMARY KEY,
	bucket        TEXT        NOT NULL,
	url           TEXT        NOT NULL,
	ingestion_id  TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	total_keys    INTEGER     NOT NULL DEFAULT 0,
	succeeded     INTEGER     NOT NULL DEFAULT 0,
	failed        INTEGER     NOT NULL DEFAULT 0,
	duration_ms   BIGINT      NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	error_message TEXT        NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notification_jobs (
	id            BIGSERIAL PRIMARY KEY,
	run_id        BIGINT  NOT NULL REFERENCES notification_runs(id) ON DELETE CASCADE,
	object_key    TEXT    NOT NULL,
	uri           TEXT    NOT NULL,
	status        TEXT    NOT NULL,
	status_code   INTEGER NOT NULL DEFAULT 0,
	duration_ms   BIGINT  NOT NULL DEFAULT 0,
	error_message TEXT    NOT NULL DEFAULT ''
);
`

// Repository records finished runs in Postgres. It is an audit trail only:
// nothing reads it back to resume or skip keys.
type Repository struct {
	db *postgres.DB
}

// NewRepository creates a new run repository
func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the audit tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create notification tables: %w", err)
	}
	return nil
}

// Report stores run and its jobs in one transaction.
func (r *Repository) Report(ctx context.Context, run *Run) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.createRun(ctx, tx, run); err != nil {
			return fmt.Errorf("insert notification run: %w", err)
		}
		if len(run.Jobs) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO notification_jobs (
				run_id, object_key, uri, status, status_code, duration_ms, error_message
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("prepare notification job insert: %w", err)
		}
		defer stmt.Close()

		for i := range run.Jobs {
			job := &run.Jobs[i]
			job.RunID = run.ID
			err := stmt.QueryRowxContext(
				ctx,
				job.RunID, job.Key, job.URI, string(job.Status), job.StatusCode,
				job.Duration.Milliseconds(), job.ErrorMessage,
			).Scan(&job.ID)
			if err != nil {
				return fmt.Errorf("insert notification job %s: %w", job.Key, err)
			}
		}
		return nil
	})
}

func (r *Repository) createRun(ctx context.Context, tx *sqlx.Tx, run *Run) error {
	query := `
		INSERT INTO notification_runs (
			bucket, url, ingestion_id, status, total_keys,
			succeeded, failed, duration_ms, started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	return tx.QueryRowxContext(
		ctx, query,
		run.Bucket, run.URL, run.IngestionID, string(run.Status), run.TotalKeys,
		run.Succeeded, run.Failed, run.Duration.Milliseconds(), run.StartedAt,
		run.CompletedAt, run.ErrorMessage,
	).Scan(&run.ID)
}

// RunRecord is one row of notification_runs.
type RunRecord struct {
	ID           int64      `db:"id"`
	Bucket       string     `db:"bucket"`
	URL          string     `db:"url"`
	IngestionID  string     `db:"ingestion_id"`
	Status       string     `db:"status"`
	TotalKeys    int        `db:"total_keys"`
	Succeeded    int        `db:"succeeded"`
	Failed       int        `db:"failed"`
	DurationMS   int64      `db:"duration_ms"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	ErrorMessage string     `db:"error_message"`
}

// ListRecentRuns returns the latest runs, newest first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, bucket, url, ingestion_id, status, total_keys,
		       succeeded, failed, duration_ms, started_at, completed_at, error_message
		FROM notification_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	var runs []RunRecord
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list notification runs: %w", err)
	}
	return runs, nil
}

var _ Reporter = (*Repository)(nil)
