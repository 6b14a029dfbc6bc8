// Package hook defines the lifecycle notification system for taskq.
// Hooks are notified of job lifecycle transitions (submitted, started,
// progress, completed, cancelled, restored) and can react to them:
// pushing live updates to clients, mirroring to persistence, metrics.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about. Delivery is synchronous, in attachment
// order, on the control flow that performed the transition, and
// at-most-once per transition: not queued, not replayed to late
// subscribers, not delivered across a restart.
package hook

import (
	"context"

	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// JobSubmitted is called after a job is accepted into the table, before
// any promotion it may immediately receive.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a job transitions into the running state,
// either directly at submission or by FIFO promotion.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobProgress is called after a progress update is appended to a job's
// history. The percentage on the job is already clamped.
type JobProgress interface {
	OnJobProgress(ctx context.Context, j *job.Job, u job.ProgressUpdate) error
}

// JobCompleted is called when a job reaches a completed or failed
// terminal state. Failure is a terminal-completion event for observers;
// inspect j.State to distinguish.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job) error
}

// JobCancelled is called when a job is cancelled, whether it was pending
// or running at the time.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// JobRestored is called once per job re-submitted by the recovery
// coordinator after a restart. oldID is the persisted identity the job
// carried before the restart; j carries its new identity.
type JobRestored interface {
	OnJobRestored(ctx context.Context, oldID id.JobID, j *job.Job) error
}
