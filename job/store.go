package job

import (
	"context"
	"time"

	"github.com/quorumchat/taskq/id"
)

// Store defines the persistence contract for jobs. The dispatcher's
// in-memory table is the instantaneous source of truth; a Store is a
// best-effort mirror consulted only at startup by the recovery
// coordinator. Implementations must be safe for concurrent use.
type Store interface {
	// SaveJob persists the job's full current record, inserting or
	// replacing by ID.
	SaveJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID, including its progress-update history.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListJobs returns all persisted jobs ordered by creation time,
	// including progress-update histories.
	ListJobs(ctx context.Context) ([]*Job, error)

	// AppendProgress appends one progress-update row for the given job.
	AppendProgress(ctx context.Context, jobID id.JobID, u ProgressUpdate) error

	// PurgeTerminalBefore deletes all persisted jobs (and their progress
	// rows) whose state is terminal and whose completion timestamp is
	// before the cutoff. Returns the number of jobs removed.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
