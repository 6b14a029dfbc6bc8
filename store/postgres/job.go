package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

const jobColumns = `
	id, type, state, progress, input, result, error,
	estimated_total, model_count, created_at, started_at, completed_at`

// scanJob reads one job row in jobColumns order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		rawID          string
		state          string
		estimatedTotal int64
		j              job.Job
	)
	err := row.Scan(
		&rawID, &j.Type, &state, &j.Progress, &j.Input, &j.Result, &j.Error,
		&estimatedTotal, &j.ModelCount, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseJobID(rawID)
	if err != nil {
		return nil, fmt.Errorf("taskq/postgres: parse job id %q: %w", rawID, err)
	}
	j.ID = parsedID
	j.State = job.State(state)
	j.EstimatedTotal = time.Duration(estimatedTotal)
	return &j, nil
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// SaveJob inserts or replaces the stored record for j.
func (s *Store) SaveJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO taskq_jobs (
			id, type, state, progress, input, result, error,
			estimated_total, model_count, created_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			state = EXCLUDED.state,
			progress = EXCLUDED.progress,
			input = EXCLUDED.input,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			estimated_total = EXCLUDED.estimated_total,
			model_count = EXCLUDED.model_count,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		j.ID.String(), j.Type, string(j.State), j.Progress, j.Input, j.Result,
		j.Error, j.EstimatedTotal.Nanoseconds(), j.ModelCount,
		j.CreatedAt, j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("taskq/postgres: save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID, including its progress history.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM taskq_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, taskq.ErrJobNotFound
		}
		return nil, fmt.Errorf("taskq/postgres: get job: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ts, message, percentage FROM taskq_progress
		WHERE job_id = $1 ORDER BY seq ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("taskq/postgres: get job progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u job.ProgressUpdate
		if err := rows.Scan(&u.Timestamp, &u.Message, &u.Percentage); err != nil {
			return nil, fmt.Errorf("taskq/postgres: scan progress: %w", err)
		}
		j.ProgressUpdates = append(j.ProgressUpdates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskq/postgres: iterate progress: %w", err)
	}
	return j, nil
}

// ListJobs returns every stored job ordered by creation time, each with
// its progress history attached.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM taskq_jobs ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("taskq/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	byID := make(map[string]*job.Job)
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("taskq/postgres: scan job: %w", scanErr)
		}
		jobs = append(jobs, j)
		byID[j.ID.String()] = j
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskq/postgres: iterate jobs: %w", err)
	}

	progRows, err := s.pool.Query(ctx,
		`SELECT job_id, ts, message, percentage FROM taskq_progress ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("taskq/postgres: list progress: %w", err)
	}
	defer progRows.Close()

	for progRows.Next() {
		var (
			jobID string
			u     job.ProgressUpdate
		)
		if err := progRows.Scan(&jobID, &u.Timestamp, &u.Message, &u.Percentage); err != nil {
			return nil, fmt.Errorf("taskq/postgres: scan progress: %w", err)
		}
		if j, ok := byID[jobID]; ok {
			j.ProgressUpdates = append(j.ProgressUpdates, u)
		}
	}
	if err := progRows.Err(); err != nil {
		return nil, fmt.Errorf("taskq/postgres: iterate progress: %w", err)
	}
	return jobs, nil
}

// AppendProgress adds one update to the job's history and refreshes the
// job row's progress column.
func (s *Store) AppendProgress(ctx context.Context, jobID id.JobID, u job.ProgressUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE taskq_jobs SET progress = $2 WHERE id = $1`,
		jobID.String(), u.Percentage,
	)
	if err != nil {
		return fmt.Errorf("taskq/postgres: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return taskq.ErrJobNotFound
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO taskq_progress (job_id, ts, message, percentage)
		VALUES ($1, $2, $3, $4)`,
		jobID.String(), u.Timestamp, u.Message, u.Percentage,
	)
	if err != nil {
		return fmt.Errorf("taskq/postgres: append progress: %w", err)
	}
	return nil
}

// PurgeTerminalBefore removes finished jobs whose completion timestamp
// is before cutoff. Progress rows go with them via ON DELETE CASCADE.
func (s *Store) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM taskq_jobs
		WHERE state IN ('completed', 'failed', 'cancelled')
		  AND completed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("taskq/postgres: purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
