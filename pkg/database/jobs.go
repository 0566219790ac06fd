package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const ensureSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id         SERIAL PRIMARY KEY,
    url        VARCHAR(2048) NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    running    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_jobs_running_created_at ON jobs (running, created_at DESC);
`

func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, ensureSchema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

const upsertRunningJob = `-- name: UpsertRunningJob :one
INSERT INTO jobs (url, running)
VALUES ($1, TRUE)
ON CONFLICT (url) DO UPDATE SET running = TRUE
RETURNING id, url, created_at, running, (xmax = 0) AS created
`

// UpsertRunningJob marks url as running, inserting it if it is new. created
// reports whether a row was inserted rather than re-run.
func (q *Queries) UpsertRunningJob(ctx context.Context, url string) (Job, bool, error) {
	row := q.db.QueryRow(ctx, upsertRunningJob, url)
	var i Job
	var created bool
	err := row.Scan(
		&i.ID,
		&i.URL,
		&i.CreatedAt,
		&i.Running,
		&created,
	)
	return i, created, err
}

const markJobDone = `-- name: MarkJobDone :one
UPDATE jobs SET running = FALSE
WHERE url = $1
RETURNING id, url, created_at, running
`

func (q *Queries) MarkJobDone(ctx context.Context, url string) (Job, error) {
	row := q.db.QueryRow(ctx, markJobDone, url)
	var i Job
	err := row.Scan(
		&i.ID,
		&i.URL,
		&i.CreatedAt,
		&i.Running,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return i, ErrJobNotFound
	}
	return i, err
}

const getJobByURL = `-- name: GetJobByURL :one
SELECT id, url, created_at, running FROM jobs
WHERE url = $1
`

func (q *Queries) GetJobByURL(ctx context.Context, url string) (Job, error) {
	row := q.db.QueryRow(ctx, getJobByURL, url)
	var i Job
	err := row.Scan(
		&i.ID,
		&i.URL,
		&i.CreatedAt,
		&i.Running,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return i, ErrJobNotFound
	}
	return i, err
}

const listJobs = `-- name: ListJobs :many
SELECT id, url, created_at, running FROM jobs
WHERE running = $1
ORDER BY created_at DESC
`

func (q *Queries) ListJobs(ctx context.Context, running bool) ([]Job, error) {
	rows, err := q.db.Query(ctx, listJobs, running)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Job{}
	for rows.Next() {
		var i Job
		if err := rows.Scan(
			&i.ID,
			&i.URL,
			&i.CreatedAt,
			&i.Running,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
