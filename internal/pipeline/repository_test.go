package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/ingest-notifier/internal/notify"
	"github.com/andresuchdata/ingest-notifier/internal/repository/postgres"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(postgres.Wrap(sqlx.NewDb(db, postgres.DriverName))), mock
}

func finishedRun() *Run {
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)
	return &Run{
		Bucket:      "data-bucket",
		URL:         "http://ingest.example/hook",
		IngestionID: "test",
		Status:      StatusDone,
		TotalKeys:   2,
		Succeeded:   1,
		Failed:      1,
		StartedAt:   started,
		CompletedAt: &completed,
		Duration:    2 * time.Second,
		Jobs: []KeyJob{
			{Key: "a.json", URI: "s3://data-bucket/a.json", Status: notify.StateSucceeded, StatusCode: 200, Duration: 120 * time.Millisecond},
			{Key: "b.json", URI: "s3://data-bucket/b.json", Status: notify.StateFailed, ErrorMessage: "connection refused"},
		},
	}
}

func TestRepository_Report(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := finishedRun()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notification_runs").
		WithArgs("data-bucket", "http://ingest.example/hook", "test", "done", 2, 1, 1, int64(2000),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	prep := mock.ExpectPrepare("INSERT INTO notification_jobs")
	prep.ExpectQuery().
		WithArgs(int64(7), "a.json", "s3://data-bucket/a.json", "succeeded", 200, int64(120), "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(70)))
	prep.ExpectQuery().
		WithArgs(int64(7), "b.json", "s3://data-bucket/b.json", "failed", 0, int64(0), "connection refused").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(71)))
	mock.ExpectCommit()

	require.NoError(t, repo.Report(context.Background(), run))

	assert.Equal(t, int64(7), run.ID)
	assert.Equal(t, int64(70), run.Jobs[0].ID)
	assert.Equal(t, int64(71), run.Jobs[1].ID)
	assert.Equal(t, int64(7), run.Jobs[1].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReportWithoutJobs(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := finishedRun()
	run.Jobs = nil

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notification_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectCommit()

	require.NoError(t, repo.Report(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReportRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notification_runs").WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	err := repo.Report(context.Background(), finishedRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert notification run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notification_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListRecentRuns(t *testing.T) {
	repo, mock := newMockRepository(t)
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "bucket", "url", "ingestion_id", "status", "total_keys",
		"succeeded", "failed", "duration_ms", "started_at", "completed_at", "error_message",
	}).AddRow(int64(3), "data-bucket", "http://ingest.example/hook", "test", "done", 2, 2, 0, int64(900), started, started.Add(time.Second), "")

	mock.ExpectQuery("FROM notification_runs").WithArgs(20).WillReturnRows(rows)

	runs, err := repo.ListRecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].ID)
	assert.Equal(t, "done", runs[0].Status)
	assert.Equal(t, int64(900), runs[0].DurationMS)
	require.NotNil(t, runs[0].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
