// Package persist mirrors dispatcher lifecycle transitions into a
// job.Store so the backlog survives a process restart.
//
// The mirror is best-effort: the dispatcher's in-memory table stays
// authoritative, store errors are surfaced to the hook registry (which
// logs and swallows them), and progress writes are rate limited per job
// so a chatty reporter cannot flood the backend. Dropped progress rows
// cost nothing but history granularity; the job row itself always
// carries the latest percentage once the next transition is saved.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/quorumchat/taskq/hook"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Compile-time checks that Mirror handles the lifecycle events.
var (
	_ hook.JobSubmitted = (*Mirror)(nil)
	_ hook.JobStarted   = (*Mirror)(nil)
	_ hook.JobProgress  = (*Mirror)(nil)
	_ hook.JobCompleted = (*Mirror)(nil)
	_ hook.JobCancelled = (*Mirror)(nil)
)

// DefaultProgressRate is the per-job progress write budget: two rows a
// second with a small burst for the opening updates.
const (
	DefaultProgressRate  = rate.Limit(2)
	DefaultProgressBurst = 5
)

// Mirror is a hook that writes job transitions through a job.Store.
// Attach it to a dispatcher's registry:
//
//	d.Hooks().Attach(persist.NewMirror(store))
type Mirror struct {
	store  job.Store
	logger *slog.Logger

	progressRate  rate.Limit
	progressBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures the Mirror.
type Option func(*Mirror)

// WithLogger sets the logger for the mirror.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) { m.logger = logger }
}

// WithProgressRate overrides the per-job progress write budget.
// A zero limit disables progress mirroring entirely.
func WithProgressRate(limit rate.Limit, burst int) Option {
	return func(m *Mirror) {
		m.progressRate = limit
		m.progressBurst = burst
	}
}

// NewMirror returns a Mirror writing through store.
func NewMirror(store job.Store, opts ...Option) *Mirror {
	m := &Mirror{
		store:         store,
		logger:        slog.Default(),
		progressRate:  DefaultProgressRate,
		progressBurst: DefaultProgressBurst,
		limiters:      make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements hook.Hook.
func (m *Mirror) Name() string { return "persist-mirror" }

// OnJobSubmitted saves the freshly accepted job.
func (m *Mirror) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	if err := m.store.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("taskq/persist: mirror submit: %w", err)
	}
	return nil
}

// OnJobStarted saves the running snapshot.
func (m *Mirror) OnJobStarted(ctx context.Context, j *job.Job) error {
	if err := m.store.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("taskq/persist: mirror start: %w", err)
	}
	return nil
}

// OnJobProgress appends a progress row, subject to the per-job rate
// limit. Dropped rows are logged at debug and are not an error.
func (m *Mirror) OnJobProgress(ctx context.Context, j *job.Job, u job.ProgressUpdate) error {
	if !m.limiter(j.ID).Allow() {
		m.logger.Debug("progress row dropped by rate limit",
			"job_id", j.ID.String(),
			"percentage", u.Percentage,
		)
		return nil
	}
	if err := m.store.AppendProgress(ctx, j.ID, u); err != nil {
		return fmt.Errorf("taskq/persist: mirror progress: %w", err)
	}
	return nil
}

// OnJobCompleted saves the terminal snapshot, result or error included.
func (m *Mirror) OnJobCompleted(ctx context.Context, j *job.Job) error {
	m.forget(j.ID)
	if err := m.store.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("taskq/persist: mirror completion: %w", err)
	}
	return nil
}

// OnJobCancelled saves the cancelled snapshot.
func (m *Mirror) OnJobCancelled(ctx context.Context, j *job.Job) error {
	m.forget(j.ID)
	if err := m.store.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("taskq/persist: mirror cancel: %w", err)
	}
	return nil
}

func (m *Mirror) limiter(jobID id.JobID) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := jobID.String()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.progressRate, m.progressBurst)
		m.limiters[key] = l
	}
	return l
}

// forget releases the job's limiter once it can no longer report.
func (m *Mirror) forget(jobID id.JobID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.limiters, jobID.String())
}
