package persist_test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/job"
	"github.com/quorumchat/taskq/persist"
	"github.com/quorumchat/taskq/store/memory"
)

func newMirroredDispatcher(t *testing.T, store job.Store, opts ...persist.Option) *taskq.Dispatcher {
	t.Helper()
	d, err := taskq.New(taskq.WithMaxConcurrent(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Hooks().Attach(persist.NewMirror(store, opts...))
	return d
}

func TestMirror_LifecycleWrites(t *testing.T) {
	store := memory.New()
	d := newMirroredDispatcher(t, store, persist.WithProgressRate(rate.Inf, 0))
	ctx := context.Background()

	j := d.SubmitRaw(ctx, "query-models", []byte(`{"prompt":"hi"}`))
	d.UpdateProgress(ctx, j.ID, 50, "halfway")
	d.Complete(ctx, j.ID, []byte(`{"answers":3}`))

	got, err := store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateCompleted {
		t.Errorf("mirrored State = %q, want completed", got.State)
	}
	if string(got.Result) != `{"answers":3}` {
		t.Errorf("mirrored Result = %q", got.Result)
	}
	if len(got.ProgressUpdates) != 1 {
		t.Errorf("mirrored history len = %d, want 1", len(got.ProgressUpdates))
	}
}

func TestMirror_CancelWrites(t *testing.T) {
	store := memory.New()
	d := newMirroredDispatcher(t, store)
	ctx := context.Background()

	j := d.SubmitRaw(ctx, "query-models", nil)
	d.Cancel(ctx, j.ID)

	got, err := store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateCancelled {
		t.Errorf("mirrored State = %q, want cancelled", got.State)
	}
	if got.CompletedAt == nil {
		t.Error("mirrored CompletedAt not set")
	}
}

func TestMirror_ProgressRateLimit(t *testing.T) {
	store := memory.New()
	// One row per hour, burst of 1: only the first update lands.
	d := newMirroredDispatcher(t, store, persist.WithProgressRate(rate.Every(time.Hour), 1))
	ctx := context.Background()

	j := d.SubmitRaw(ctx, "query-models", nil)
	for i := 1; i <= 5; i++ {
		d.UpdateProgress(ctx, j.ID, i*10, "tick")
	}

	got, err := store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if len(got.ProgressUpdates) != 1 {
		t.Fatalf("mirrored history len = %d, want 1 (rest rate limited)", len(got.ProgressUpdates))
	}
	if got.ProgressUpdates[0].Percentage != 10 {
		t.Errorf("surviving row = %d, want the first update", got.ProgressUpdates[0].Percentage)
	}

	// The dispatcher's own table keeps everything.
	live, err := d.Job(j.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if len(live.ProgressUpdates) != 5 {
		t.Errorf("live history len = %d, want 5", len(live.ProgressUpdates))
	}
}

func TestMirror_StoreErrorDoesNotBreakDispatch(t *testing.T) {
	store := memory.New()
	d := newMirroredDispatcher(t, store)
	ctx := context.Background()

	// A closed store makes every mirror write fail. The registry logs
	// and swallows, so dispatch keeps working.
	_ = store.Close()

	j := d.SubmitRaw(ctx, "query-models", nil)
	if j.State != job.StateRunning {
		t.Errorf("State = %q, mirror failure must not block submission", j.State)
	}
	d.Complete(ctx, j.ID, nil)

	got, err := d.Job(j.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.State != job.StateCompleted {
		t.Errorf("State = %q, want completed", got.State)
	}
}
