package taskq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quorumchat/taskq/codec"
	"github.com/quorumchat/taskq/hook"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Dispatcher owns the authoritative in-memory job table, enforces the
// concurrency bound, and runs the pending→running promotion algorithm.
//
// All table mutations are serialized behind a single mutex: no two
// mutations interleave their read-modify-write of a job record or of the
// running/pending accounting. Hooks fire after the mutation has been
// committed, outside the lock, on the calling goroutine.
//
// The Dispatcher never executes or supervises the work a job represents.
// Submission never blocks on the work, never rejects on overload (the
// pending backlog is unbounded), and progress/outcome calls may arrive
// from any goroutine.
type Dispatcher struct {
	config Config
	logger *slog.Logger
	hooks  *hook.Registry
	codec  codec.Codec

	mu      sync.RWMutex
	jobs    map[string]*job.Job
	order   []id.JobID // insertion order, for deterministic listing
	pending []id.JobID // FIFO backlog of pending job IDs
	running int

	// now is the clock; overridable in tests.
	now func() time.Time
}

// New creates a Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
		codec:  codec.JSON{},
		jobs:   make(map[string]*job.Job),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.hooks == nil {
		d.hooks = hook.NewRegistry(d.logger)
	}
	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Hooks returns the dispatcher's hook registry. Attach hooks before
// submitting jobs.
func (d *Dispatcher) Hooks() *hook.Registry { return d.hooks }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// Codec returns the payload codec used by the typed helpers.
func (d *Dispatcher) Codec() codec.Codec { return d.codec }

// SubmitRaw accepts a job with a pre-serialized input payload. If a
// concurrency slot is free the job starts running immediately and the
// started hook fires synchronously; otherwise it joins the tail of the
// FIFO backlog. Submission always succeeds.
//
// The returned Job is a snapshot; later calls to Job observe updates.
func (d *Dispatcher) SubmitRaw(ctx context.Context, jobType string, input []byte, opts ...job.Option) *job.Job {
	var jobOpts job.Options
	for _, opt := range opts {
		opt(&jobOpts)
	}

	d.mu.Lock()
	now := d.now()
	j := &job.Job{
		ID:             id.NewJobID(),
		Type:           jobType,
		State:          job.StatePending,
		Input:          input,
		EstimatedTotal: jobOpts.EstimatedTotal,
		ModelCount:     jobOpts.ModelCount,
		CreatedAt:      now,
	}

	started := false
	if d.running < d.config.MaxConcurrent {
		j.State = job.StateRunning
		startedAt := now
		j.StartedAt = &startedAt
		d.running++
		started = true
	} else {
		d.pending = append(d.pending, j.ID)
	}

	d.jobs[j.ID.String()] = j
	d.order = append(d.order, j.ID)
	snap := j.Clone()
	d.mu.Unlock()

	d.hooks.EmitJobSubmitted(ctx, snap)
	if started {
		d.hooks.EmitJobStarted(ctx, snap)
	}
	return snap
}

// Job returns a snapshot of the job with the given ID, including its
// full progress history. Returns ErrJobNotFound for unknown IDs.
func (d *Dispatcher) Job(jobID id.JobID) (*job.Job, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	j, ok := d.jobs[jobID.String()]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// ResultRaw returns the serialized result payload of a completed job.
// Returns ErrJobNotFound for unknown IDs and ErrNoResult for jobs that
// have not completed.
func (d *Dispatcher) ResultRaw(jobID id.JobID) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	j, ok := d.jobs[jobID.String()]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.State != job.StateCompleted {
		return nil, ErrNoResult
	}
	return append([]byte(nil), j.Result...), nil
}

// Jobs returns snapshots of every job in the table, in insertion order.
func (d *Dispatcher) Jobs() []*job.Job {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*job.Job, 0, len(d.order))
	for _, jobID := range d.order {
		if j, ok := d.jobs[jobID.String()]; ok {
			result = append(result, j.Clone())
		}
	}
	return result
}

// JobsByState returns snapshots of jobs in the given state, in insertion
// order.
func (d *Dispatcher) JobsByState(state job.State) []*job.Job {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*job.Job
	for _, jobID := range d.order {
		if j, ok := d.jobs[jobID.String()]; ok && j.State == state {
			result = append(result, j.Clone())
		}
	}
	return result
}

// Stats scans the table and returns per-state counts. Total always
// equals the sum of the five state counts.
func (d *Dispatcher) Stats() job.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := job.Stats{MaxConcurrent: d.config.MaxConcurrent}
	for _, j := range d.jobs {
		s.Total++
		switch j.State {
		case job.StatePending:
			s.Pending++
		case job.StateRunning:
			s.Running++
		case job.StateCompleted:
			s.Completed++
		case job.StateFailed:
			s.Failed++
		case job.StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// UpdateProgress clamps percentage to [0, 100], sets the job's progress,
// and appends a timestamped entry to its history. A no-op for unknown
// IDs. Permitted in any state; the state is not changed. Monotonicity is
// not enforced.
func (d *Dispatcher) UpdateProgress(ctx context.Context, jobID id.JobID, percentage int, message string) {
	d.mu.Lock()
	j, ok := d.jobs[jobID.String()]
	if !ok {
		d.mu.Unlock()
		return
	}

	u := job.ProgressUpdate{
		Timestamp:  d.now(),
		Message:    message,
		Percentage: job.ClampProgress(percentage),
	}
	j.Progress = u.Percentage
	j.ProgressUpdates = append(j.ProgressUpdates, u)
	snap := j.Clone()
	d.mu.Unlock()

	d.hooks.EmitJobProgress(ctx, snap, u)
}

// Complete marks the job completed with the given result payload, sets
// progress to 100, fires the completed hook, and promotes the next
// pending job into the freed slot. A no-op for unknown IDs.
//
// Calling Complete (or Fail) on an already-terminal job is an idempotent
// overwrite: the record's terminal fields are replaced, but no hook
// fires, no slot accounting changes, and no promotion runs.
func (d *Dispatcher) Complete(ctx context.Context, jobID id.JobID, result []byte) {
	d.finalize(ctx, jobID, job.StateCompleted, result, "")
}

// Fail marks the job failed with the given error string, leaving
// progress unchanged. Failure is a terminal-completion event: the
// completed hook fires, then promotion fills the freed slot. A no-op
// for unknown IDs.
func (d *Dispatcher) Fail(ctx context.Context, jobID id.JobID, errMsg string) {
	d.finalize(ctx, jobID, job.StateFailed, nil, errMsg)
}

// finalize performs a terminal transition into completed or failed.
func (d *Dispatcher) finalize(ctx context.Context, jobID id.JobID, state job.State, result []byte, errMsg string) {
	d.mu.Lock()
	j, ok := d.jobs[jobID.String()]
	if !ok {
		d.mu.Unlock()
		return
	}

	wasTerminal := j.State.Terminal()
	wasRunning := j.State == job.StateRunning
	wasPending := j.State == job.StatePending

	now := d.now()
	j.State = state
	j.CompletedAt = &now
	if state == job.StateCompleted {
		j.Result = result
		j.Progress = 100
		j.Error = ""
	} else {
		j.Error = errMsg
		j.Result = nil
	}

	if wasTerminal {
		// Idempotent overwrite: side-effect-free on repeat calls.
		d.mu.Unlock()
		return
	}

	if wasPending {
		d.removePendingLocked(j.ID)
	}

	var promoted []*job.Job
	if wasRunning {
		d.running--
		promoted = d.promoteLocked()
	}
	snap := j.Clone()
	d.mu.Unlock()

	d.hooks.EmitJobCompleted(ctx, snap)
	for _, p := range promoted {
		d.hooks.EmitJobStarted(ctx, p)
	}
}

// Cancel marks the job cancelled and returns true. Returns false for
// unknown IDs and for jobs already in a terminal state. Cancelling a
// pending job removes it from the backlog without promotion (it held no
// slot); cancelling a running job frees its slot and promotion fills it.
//
// Cancellation is advisory: it changes bookkeeping only. The caller that
// owns the external work is responsible for actually aborting it.
func (d *Dispatcher) Cancel(ctx context.Context, jobID id.JobID) bool {
	d.mu.Lock()
	j, ok := d.jobs[jobID.String()]
	if !ok || j.State.Terminal() {
		d.mu.Unlock()
		return false
	}

	wasRunning := j.State == job.StateRunning
	if j.State == job.StatePending {
		d.removePendingLocked(j.ID)
	}

	now := d.now()
	j.State = job.StateCancelled
	j.CompletedAt = &now

	var promoted []*job.Job
	if wasRunning {
		d.running--
		promoted = d.promoteLocked()
	}
	snap := j.Clone()
	d.mu.Unlock()

	d.hooks.EmitJobCancelled(ctx, snap)
	for _, p := range promoted {
		d.hooks.EmitJobStarted(ctx, p)
	}
	return true
}

// ClearOldJobs removes every terminal job whose completion timestamp is
// older than olderThan, together with its progress history. Pending and
// running jobs are never pruned regardless of age. Returns the number of
// jobs removed.
func (d *Dispatcher) ClearOldJobs(olderThan time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-olderThan)
	removed := 0
	kept := d.order[:0]
	for _, jobID := range d.order {
		key := jobID.String()
		j, ok := d.jobs[key]
		if !ok {
			continue
		}
		if j.State.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(d.jobs, key)
			removed++
			continue
		}
		kept = append(kept, jobID)
	}
	d.order = kept

	if removed > 0 {
		d.logger.Info("cleared old jobs",
			slog.Int("removed", removed),
			slog.Duration("older_than", olderThan),
		)
	}
	return removed
}

// promoteLocked pops the head of the FIFO backlog into the running state
// until capacity is exhausted or the backlog is empty. Single-pass,
// non-preemptive, strict FIFO: no priority, no starvation avoidance
// beyond arrival order. Caller must hold d.mu; returns snapshots of the
// promoted jobs for hook emission after unlock.
func (d *Dispatcher) promoteLocked() []*job.Job {
	var promoted []*job.Job
	for d.running < d.config.MaxConcurrent && len(d.pending) > 0 {
		head := d.pending[0]
		d.pending = d.pending[1:]

		j, ok := d.jobs[head.String()]
		if !ok || j.State != job.StatePending {
			continue
		}

		startedAt := d.now()
		j.State = job.StateRunning
		j.StartedAt = &startedAt
		d.running++
		promoted = append(promoted, j.Clone())
	}
	return promoted
}

// removePendingLocked drops a job ID from the FIFO backlog, preserving
// the order of the rest. Caller must hold d.mu.
func (d *Dispatcher) removePendingLocked(jobID id.JobID) {
	for i, pid := range d.pending {
		if pid == jobID {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}
