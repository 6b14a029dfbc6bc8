package hook

import (
	"context"
	"log/slog"

	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Named entry types pair an event implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobProgressEntry struct {
	name string
	hook JobProgress
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type jobRestoredEntry struct {
	name string
	hook JobRestored
}

// Registry holds attached hooks and dispatches lifecycle events to them.
// It type-caches hooks at attachment time so emit calls iterate only
// over hooks that implement the relevant event.
//
// Attachment appends to the relevant lists; there is no detach. Attach
// all hooks before the dispatcher starts accepting submissions: the
// Registry itself is not synchronized.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	jobSubmitted []jobSubmittedEntry
	jobStarted   []jobStartedEntry
	jobProgress  []jobProgressEntry
	jobCompleted []jobCompletedEntry
	jobCancelled []jobCancelledEntry
	jobRestored  []jobRestoredEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Attach adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in attachment order.
func (r *Registry) Attach(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, e})
	}
	if e, ok := h.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, e})
	}
	if e, ok := h.(JobProgress); ok {
		r.jobProgress = append(r.jobProgress, jobProgressEntry{name, e})
	}
	if e, ok := h.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, e})
	}
	if e, ok := h.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, e})
	}
	if e, ok := h.(JobRestored); ok {
		r.jobRestored = append(r.jobRestored, jobRestoredEntry{name, e})
	}
}

// Hooks returns all attached hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitJobSubmitted notifies all hooks that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobStarted notifies all hooks that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobProgress notifies all hooks that implement JobProgress.
func (r *Registry) EmitJobProgress(ctx context.Context, j *job.Job, u job.ProgressUpdate) {
	for _, e := range r.jobProgress {
		if err := e.hook.OnJobProgress(ctx, j, u); err != nil {
			r.logHookError("OnJobProgress", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all hooks that implement JobCompleted.
// Fired for both completed and failed terminal transitions.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all hooks that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, j); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// EmitJobRestored notifies all hooks that implement JobRestored.
func (r *Registry) EmitJobRestored(ctx context.Context, oldID id.JobID, j *job.Job) {
	for _, e := range r.jobRestored {
		if err := e.hook.OnJobRestored(ctx, oldID, j); err != nil {
			r.logHookError("OnJobRestored", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated: a broken subscriber must not
// block the remaining hooks or the already-committed table mutation.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
