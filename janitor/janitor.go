// Package janitor prunes finished jobs on a cron schedule, from both
// the dispatcher's in-memory table and, when configured, the
// persistence mirror behind it.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/job"
)

// cronParser supports standard 5-field cron and descriptors like
// "@every 30m" or "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// DefaultRetention keeps finished jobs for a day before pruning.
const DefaultRetention = 24 * time.Hour

// Janitor periodically removes terminal jobs older than the retention
// window.
type Janitor struct {
	dispatcher *taskq.Dispatcher
	store      job.Store
	schedule   cronlib.Schedule
	retention  time.Duration
	logger     *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures the Janitor.
type Option func(*Janitor)

// WithStore also purges the given persistence mirror on each fire.
func WithStore(store job.Store) Option {
	return func(j *Janitor) { j.store = store }
}

// WithRetention overrides how long finished jobs are kept.
func WithRetention(d time.Duration) Option {
	return func(j *Janitor) { j.retention = d }
}

// WithLogger sets the logger for the janitor.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) { j.logger = logger }
}

// New creates a Janitor firing per the cron expression schedule, e.g.
// "0 * * * *" or "@hourly".
func New(d *taskq.Dispatcher, schedule string, opts ...Option) (*Janitor, error) {
	parsed, err := ParseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("taskq/janitor: parse schedule %q: %w", schedule, err)
	}

	j := &Janitor{
		dispatcher: d,
		schedule:   parsed,
		retention:  DefaultRetention,
		logger:     slog.Default(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start launches the schedule loop.
func (j *Janitor) Start(_ context.Context) error {
	j.wg.Add(1)
	go j.loop()
	j.logger.Info("janitor started",
		slog.Duration("retention", j.retention),
		slog.Time("next_fire", j.schedule.Next(time.Now())),
	)
	return nil
}

// Stop signals the janitor to stop and waits for the loop to finish.
func (j *Janitor) Stop(_ context.Context) error {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("janitor stopped")
	return nil
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if _, _, err := j.Prune(context.Background()); err != nil {
				j.logger.Error("scheduled prune failed", "error", err)
			}
		}
	}
}

// Prune removes terminal jobs older than the retention window from the
// dispatcher table and the store, concurrently when both are in play.
// Returns the counts removed from each.
func (j *Janitor) Prune(ctx context.Context) (dropped int, purged int64, err error) {
	cutoff := time.Now().UTC().Add(-j.retention)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dropped = j.dispatcher.ClearOldJobs(j.retention)
		return nil
	})
	if j.store != nil {
		g.Go(func() error {
			n, purgeErr := j.store.PurgeTerminalBefore(ctx, cutoff)
			if purgeErr != nil {
				return fmt.Errorf("taskq/janitor: purge store: %w", purgeErr)
			}
			purged = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dropped, purged, err
	}

	j.logger.Info("pruned finished jobs",
		"dropped", dropped,
		"purged", purged,
		"cutoff", cutoff,
	)
	return dropped, purged, nil
}
