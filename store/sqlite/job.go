package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// SaveJob inserts or replaces the stored record for j. The progress
// history rides in the taskq_progress table and is untouched here.
func (s *Store) SaveJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("type = EXCLUDED.type").
		Set("state = EXCLUDED.state").
		Set("progress = EXCLUDED.progress").
		Set("input = EXCLUDED.input").
		Set("result = EXCLUDED.result").
		Set("error = EXCLUDED.error").
		Set("estimated_total = EXCLUDED.estimated_total").
		Set("model_count = EXCLUDED.model_count").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("taskq/sqlite: save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID, including its progress history.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, taskq.ErrJobNotFound
		}
		return nil, fmt.Errorf("taskq/sqlite: get job: %w", err)
	}

	j, err := fromJobModel(m)
	if err != nil {
		return nil, err
	}

	var rows []progressModel
	err = s.db.NewSelect().Model(&rows).
		Where("job_id = ?", jobID.String()).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq/sqlite: get job progress: %w", err)
	}
	for i := range rows {
		j.ProgressUpdates = append(j.ProgressUpdates, fromProgressModel(&rows[i]))
	}

	return j, nil
}

// ListJobs returns every stored job ordered by creation time, each with
// its progress history attached.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq/sqlite: list jobs: %w", err)
	}

	var rows []progressModel
	err = s.db.NewSelect().Model(&rows).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq/sqlite: list progress: %w", err)
	}
	history := make(map[string][]job.ProgressUpdate, len(models))
	for i := range rows {
		history[rows[i].JobID] = append(history[rows[i].JobID], fromProgressModel(&rows[i]))
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		j.ProgressUpdates = history[models[i].ID]
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// AppendProgress adds one update to the job's history and refreshes the
// job row's progress column.
func (s *Store) AppendProgress(ctx context.Context, jobID id.JobID, u job.ProgressUpdate) error {
	res, err := s.db.NewUpdate().
		TableExpr("taskq_jobs").
		Set("progress = ?", u.Percentage).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("taskq/sqlite: update progress: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return taskq.ErrJobNotFound
	}

	m := toProgressModel(jobID, u)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("taskq/sqlite: append progress: %w", err)
	}
	return nil
}

// PurgeTerminalBefore removes finished jobs whose completion timestamp
// is before cutoff, together with their progress history.
func (s *Store) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			TableExpr("taskq_progress").
			Where(`job_id IN (
				SELECT id FROM taskq_jobs
				WHERE state IN ('completed', 'failed', 'cancelled')
				  AND completed_at < ?
			)`, cutoff).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("taskq/sqlite: purge progress: %w", err)
		}

		res, err := tx.NewDelete().
			TableExpr("taskq_jobs").
			Where("state IN ('completed', 'failed', 'cancelled')").
			Where("completed_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("taskq/sqlite: purge jobs: %w", err)
		}
		purged, _ = res.RowsAffected() //nolint:errcheck // driver always returns nil
		return nil
	})
	return purged, err
}
