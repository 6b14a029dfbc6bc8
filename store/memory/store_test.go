package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

func newJob(jobType string, state job.State) *job.Job {
	now := time.Now().UTC()
	return &job.Job{
		ID:        id.NewJobID(),
		Type:      jobType,
		State:     state,
		Input:     []byte(`{"test":true}`),
		CreatedAt: now,
	}
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, taskq.ErrStoreClosed) {
		t.Fatalf("Ping after Close = %v, want ErrStoreClosed", err)
	}
	if err := s.SaveJob(ctx, newJob("query-models", job.StatePending)); !errors.Is(err, taskq.ErrStoreClosed) {
		t.Fatalf("SaveJob after Close = %v, want ErrStoreClosed", err)
	}
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID != j.ID || got.Type != j.Type || got.State != j.State {
		t.Errorf("GetJob = %+v, want %+v", got, j)
	}

	// SaveJob is an upsert: the new record replaces the old one.
	j.State = job.StateCompleted
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("SaveJob (update): %v", err)
	}
	got, _ = s.GetJob(ctx, j.ID)
	if got.State != job.StateCompleted {
		t.Errorf("State after upsert = %q, want completed", got.State)
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Errorf("GetJob(unknown) = %v, want ErrJobNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	first, _ := s.GetJob(ctx, j.ID)
	first.State = job.StateFailed
	first.Input[0] = 'X'

	second, _ := s.GetJob(ctx, j.ID)
	if second.State != job.StateRunning {
		t.Error("mutating a returned job changed the stored record")
	}
	if string(second.Input) != `{"test":true}` {
		t.Error("mutating returned Input changed the stored record")
	}
}

func TestListJobs_OrderedByCreation(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	base := time.Now().UTC()
	var want []id.JobID
	for i := range 5 {
		j := newJob("query-models", job.StatePending)
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		want = append(want, j.ID)
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	got, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ListJobs len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("ListJobs[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestAppendProgress(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	for i, pct := range []int{25, 50, 75} {
		u := job.ProgressUpdate{
			Timestamp:  time.Now().UTC(),
			Message:    "step",
			Percentage: pct,
		}
		if err := s.AppendProgress(ctx, j.ID, u); err != nil {
			t.Fatalf("AppendProgress %d: %v", i, err)
		}
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.Progress != 75 {
		t.Errorf("Progress = %d, want 75", got.Progress)
	}
	if len(got.ProgressUpdates) != 3 {
		t.Fatalf("history len = %d, want 3", len(got.ProgressUpdates))
	}
	if got.ProgressUpdates[1].Percentage != 50 {
		t.Errorf("history[1] = %d, want 50", got.ProgressUpdates[1].Percentage)
	}

	err := s.AppendProgress(ctx, id.NewJobID(), job.ProgressUpdate{Percentage: 10})
	if !errors.Is(err, taskq.ErrJobNotFound) {
		t.Errorf("AppendProgress(unknown) = %v, want ErrJobNotFound", err)
	}
}

func TestPurgeTerminalBefore(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	mk := func(state job.State, completedAgo time.Duration) *job.Job {
		j := newJob("query-models", state)
		if state.Terminal() {
			at := now.Add(-completedAgo)
			j.CompletedAt = &at
		}
		return j
	}

	oldCompleted := mk(job.StateCompleted, 48*time.Hour)
	oldFailed := mk(job.StateFailed, 48*time.Hour)
	freshCompleted := mk(job.StateCompleted, time.Hour)
	running := mk(job.StateRunning, 0)
	pending := mk(job.StatePending, 0)

	for _, j := range []*job.Job{oldCompleted, oldFailed, freshCompleted, running, pending} {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	n, err := s.PurgeTerminalBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeTerminalBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	for _, jobID := range []id.JobID{oldCompleted.ID, oldFailed.ID} {
		if _, err := s.GetJob(ctx, jobID); !errors.Is(err, taskq.ErrJobNotFound) {
			t.Errorf("purged job still present: %s", jobID)
		}
	}
	for _, jobID := range []id.JobID{freshCompleted.ID, running.ID, pending.ID} {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			t.Errorf("job %s wrongly purged: %v", jobID, err)
		}
	}
}
