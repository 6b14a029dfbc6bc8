// Package observability records scheduler lifecycle metrics via
// OpenTelemetry. Attach the extension to a dispatcher's hook registry
// to track submission rates, completion and failure counts, the running
// gauge, and queue wait times.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quorumchat/taskq/hook"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// meterName is the instrumentation scope name for taskq metrics.
const meterName = "github.com/quorumchat/taskq"

// Compile-time interface checks.
var (
	_ hook.Hook         = (*MetricsExtension)(nil)
	_ hook.JobSubmitted = (*MetricsExtension)(nil)
	_ hook.JobStarted   = (*MetricsExtension)(nil)
	_ hook.JobCompleted = (*MetricsExtension)(nil)
	_ hook.JobCancelled = (*MetricsExtension)(nil)
	_ hook.JobRestored  = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics for every job transition.
//
// Instruments:
//   - taskq.jobs.submitted (Int64Counter): submissions, by job_type
//   - taskq.jobs.finished (Int64Counter): terminal transitions, by
//     job_type and status ("completed", "failed", "cancelled")
//   - taskq.jobs.restored (Int64Counter): recovery re-submissions
//   - taskq.jobs.running (Int64UpDownCounter): currently running jobs
//   - taskq.jobs.queue_wait (Float64Histogram): seconds between
//     submission and start, by job_type
type MetricsExtension struct {
	submitted metric.Int64Counter
	finished  metric.Int64Counter
	restored  metric.Int64Counter
	running   metric.Int64UpDownCounter
	queueWait metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global OTel
// MeterProvider. With no provider configured the instruments are noops
// and the extension costs nothing.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension using the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Instruments are created once. On error the API returns noop
	// instruments, so the extension degrades gracefully.
	submitted, sErr := meter.Int64Counter(
		"taskq.jobs.submitted",
		metric.WithDescription("Total number of jobs submitted"),
		metric.WithUnit("{job}"),
	)
	_ = sErr // noop fallback guaranteed by OTel API contract

	finished, fErr := meter.Int64Counter(
		"taskq.jobs.finished",
		metric.WithDescription("Total number of jobs reaching a terminal state"),
		metric.WithUnit("{job}"),
	)
	_ = fErr // noop fallback guaranteed by OTel API contract

	restored, rErr := meter.Int64Counter(
		"taskq.jobs.restored",
		metric.WithDescription("Total number of jobs re-submitted by restart recovery"),
		metric.WithUnit("{job}"),
	)
	_ = rErr // noop fallback guaranteed by OTel API contract

	running, gErr := meter.Int64UpDownCounter(
		"taskq.jobs.running",
		metric.WithDescription("Number of jobs currently running"),
		metric.WithUnit("{job}"),
	)
	_ = gErr // noop fallback guaranteed by OTel API contract

	queueWait, qErr := meter.Float64Histogram(
		"taskq.jobs.queue_wait",
		metric.WithDescription("Seconds between submission and start"),
		metric.WithUnit("s"),
	)
	_ = qErr // noop fallback guaranteed by OTel API contract

	return &MetricsExtension{
		submitted: submitted,
		finished:  finished,
		restored:  restored,
		running:   running,
		queueWait: queueWait,
	}
}

// Name implements hook.Hook.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobSubmitted implements hook.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	m.submitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", j.Type),
	))
	return nil
}

// OnJobStarted implements hook.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.running.Add(ctx, 1)
	if j.StartedAt != nil {
		m.queueWait.Record(ctx, j.StartedAt.Sub(j.CreatedAt).Seconds(), metric.WithAttributes(
			attribute.String("job_type", j.Type),
		))
	}
	return nil
}

// OnJobCompleted implements hook.JobCompleted, covering both the
// completed and failed terminal states.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job) error {
	m.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", j.Type),
		attribute.String("status", string(j.State)),
	))
	// Only jobs that actually started held a running slot.
	if j.StartedAt != nil {
		m.running.Add(ctx, -1)
	}
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	m.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", j.Type),
		attribute.String("status", string(j.State)),
	))
	if j.StartedAt != nil {
		m.running.Add(ctx, -1)
	}
	return nil
}

// OnJobRestored implements hook.JobRestored.
func (m *MetricsExtension) OnJobRestored(ctx context.Context, _ id.JobID, j *job.Job) error {
	m.restored.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", j.Type),
	))
	return nil
}
