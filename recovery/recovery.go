// Package recovery reconstructs a dispatcher's backlog from a
// persistence mirror after a process restart.
//
// Recovered jobs are re-submitted as new work: each gets a fresh
// identity, re-enters the queue in its original creation order, and
// starts from zero progress. Continuity of identity across a restart is
// explicitly not attempted; the JobRestored advisory event carries the
// old-to-new mapping for observers that need to reconcile.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Report summarizes one recovery pass.
type Report struct {
	// Restored maps each recovered job's persisted ID to the ID it
	// carries now.
	Restored map[id.JobID]id.JobID

	// Skipped counts persisted jobs left alone because they had already
	// finished.
	Skipped int
}

// Coordinator replays non-terminal persisted jobs into a dispatcher.
type Coordinator struct {
	dispatcher *taskq.Dispatcher
	store      job.Store
	logger     *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New returns a Coordinator that restores store's backlog into d.
func New(d *taskq.Dispatcher, store job.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		dispatcher: d,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recover loads every persisted job and re-submits the pending and
// running ones. A job that was mid-flight when the process died is
// indistinguishable from one that never started, so both re-enter the
// queue the same way. Run once at startup, before external submissions
// begin; the returned Report maps old IDs to new ones.
func (c *Coordinator) Recover(ctx context.Context) (*Report, error) {
	persisted, err := c.store.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq/recovery: load persisted jobs: %w", err)
	}

	report := &Report{Restored: make(map[id.JobID]id.JobID)}
	for _, old := range persisted {
		if old.State.Terminal() {
			report.Skipped++
			continue
		}

		var opts []job.Option
		if old.EstimatedTotal > 0 {
			opts = append(opts, job.WithEstimatedTotal(old.EstimatedTotal))
		}
		if old.ModelCount > 0 {
			opts = append(opts, job.WithModelCount(old.ModelCount))
		}

		restored := c.dispatcher.SubmitRaw(ctx, old.Type, old.Input, opts...)
		report.Restored[old.ID] = restored.ID

		c.dispatcher.Hooks().EmitJobRestored(ctx, old.ID, restored)
		c.logger.Info("restored job",
			"old_id", old.ID.String(),
			"new_id", restored.ID.String(),
			"type", old.Type,
			"previous_state", string(old.State),
		)
	}

	c.logger.Info("recovery complete",
		"restored", len(report.Restored),
		"skipped", report.Skipped,
	)
	return report, nil
}
