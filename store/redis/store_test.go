//go:build integration

package redis_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
	redisstore "github.com/quorumchat/taskq/store/redis"
)

// setupTestStore connects to the Redis named by TASKQ_REDIS_ADDR,
// e.g. "localhost:6379". The database is flushed between tests.
func setupTestStore(t *testing.T) *redisstore.Store {
	t.Helper()

	addr := os.Getenv("TASKQ_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKQ_REDIS_ADDR not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	return redisstore.New(client)
}

func newJob(jobType string, state job.State) *job.Job {
	return &job.Job{
		ID:        id.NewJobID(),
		Type:      jobType,
		State:     state,
		Input:     []byte(`{"prompt":"hi"}`),
		CreatedAt: time.Now().UTC(),
	}
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	j.ModelCount = 4
	now := time.Now().UTC()
	j.StartedAt = &now

	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Type != "query-models" || got.State != job.StateRunning {
		t.Fatalf("got %+v", got)
	}
	if got.ModelCount != 4 {
		t.Fatalf("expected model count 4, got %d", got.ModelCount)
	}
	if string(got.Input) != `{"prompt":"hi"}` {
		t.Fatalf("expected input preserved, got %s", got.Input)
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got: %v", err)
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("save: %v", err)
	}

	j.State = job.StateFailed
	j.Error = "model timeout"
	now := time.Now().UTC()
	j.CompletedAt = &now
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("save (update): %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != job.StateFailed {
		t.Fatalf("expected failed, got %s", got.State)
	}
	if got.Error != "model timeout" {
		t.Fatalf("expected error message, got %q", got.Error)
	}
}

func TestStore_ProgressRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newJob("query-models", job.StateRunning)
	if err := s.SaveJob(ctx, j); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, pct := range []int{10, 50, 90} {
		u := job.ProgressUpdate{
			Timestamp:  time.Now().UTC(),
			Message:    "model answered",
			Percentage: pct,
		}
		if err := s.AppendProgress(ctx, j.ID, u); err != nil {
			t.Fatalf("append %d: %v", pct, err)
		}
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != 90 {
		t.Fatalf("expected progress 90, got %d", got.Progress)
	}
	if len(got.ProgressUpdates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(got.ProgressUpdates))
	}
	if got.ProgressUpdates[0].Percentage != 10 {
		t.Fatalf("expected first update 10, got %d", got.ProgressUpdates[0].Percentage)
	}

	err = s.AppendProgress(ctx, id.NewJobID(), job.ProgressUpdate{Percentage: 1})
	if !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got: %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	var want []id.JobID
	for i := range 3 {
		j := newJob("query-models", job.StatePending)
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		want = append(want, j.ID)
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("list[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestStore_PurgeTerminalBefore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := newJob("query-models", job.StateCompleted)
	oldAt := now.Add(-48 * time.Hour)
	old.CompletedAt = &oldAt

	running := newJob("query-models", job.StateRunning)

	for _, j := range []*job.Job{old, running} {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := s.AppendProgress(ctx, old.ID, job.ProgressUpdate{Timestamp: oldAt, Percentage: 100}); err != nil {
		t.Fatalf("append: %v", err)
	}

	purged, err := s.PurgeTerminalBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	if _, err := s.GetJob(ctx, old.ID); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("expected purged job gone, got: %v", err)
	}
	if _, err := s.GetJob(ctx, running.ID); err != nil {
		t.Fatalf("running job wrongly purged: %v", err)
	}
}
