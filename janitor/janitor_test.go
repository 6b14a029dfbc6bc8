package janitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/janitor"
	"github.com/quorumchat/taskq/job"
	"github.com/quorumchat/taskq/store/memory"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		expr    string
		wantErr bool
	}{
		{"0 * * * *", false},
		{"*/5 * * * *", false},
		{"@hourly", false},
		{"@every 30m", false},
		{"not a schedule", true},
		{"", true},
	}
	for _, tc := range cases {
		_, err := janitor.ParseSchedule(tc.expr)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSchedule(%q) err = %v, wantErr %v", tc.expr, err, tc.wantErr)
		}
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	d, err := taskq.New()
	if err != nil {
		t.Fatalf("New dispatcher: %v", err)
	}
	if _, err := janitor.New(d, "bogus"); err == nil {
		t.Fatal("New accepted an invalid schedule")
	}
}

func TestPrune_DispatcherAndStore(t *testing.T) {
	d, err := taskq.New()
	if err != nil {
		t.Fatalf("New dispatcher: %v", err)
	}
	store := memory.New()
	ctx := context.Background()

	// Finished work in both places, plus a live job that must survive.
	finished := d.SubmitRaw(ctx, "query-models", nil)
	d.Complete(ctx, finished.ID, nil)
	live := d.SubmitRaw(ctx, "query-models", nil)

	oldAt := time.Now().UTC().Add(-time.Hour)
	stored := &job.Job{
		ID:          id.NewJobID(),
		Type:        "query-models",
		State:       job.StateFailed,
		CreatedAt:   oldAt,
		CompletedAt: &oldAt,
	}
	if err := store.SaveJob(ctx, stored); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	// Zero retention: everything terminal is older than the cutoff.
	jan, err := janitor.New(d, "@hourly", janitor.WithStore(store), janitor.WithRetention(0))
	if err != nil {
		t.Fatalf("New janitor: %v", err)
	}

	dropped, purged, err := jan.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	if _, err := d.Job(finished.ID); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Errorf("finished job still in table: %v", err)
	}
	if _, err := d.Job(live.ID); err != nil {
		t.Errorf("live job pruned: %v", err)
	}
	if _, err := store.GetJob(ctx, stored.ID); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Errorf("stored job still present: %v", err)
	}
}

func TestPrune_WithoutStore(t *testing.T) {
	d, err := taskq.New()
	if err != nil {
		t.Fatalf("New dispatcher: %v", err)
	}
	ctx := context.Background()

	j := d.SubmitRaw(ctx, "query-models", nil)
	d.Cancel(ctx, j.ID)

	jan, err := janitor.New(d, "@hourly", janitor.WithRetention(0))
	if err != nil {
		t.Fatalf("New janitor: %v", err)
	}

	dropped, purged, err := jan.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if dropped != 1 || purged != 0 {
		t.Errorf("Prune = (%d, %d), want (1, 0)", dropped, purged)
	}
}

func TestStartStop(t *testing.T) {
	d, err := taskq.New()
	if err != nil {
		t.Fatalf("New dispatcher: %v", err)
	}
	ctx := context.Background()

	j := d.SubmitRaw(ctx, "query-models", nil)
	d.Complete(ctx, j.ID, nil)

	jan, err := janitor.New(d, "@every 10ms", janitor.WithRetention(0))
	if err != nil {
		t.Fatalf("New janitor: %v", err)
	}
	if err := jan.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := d.Job(j.ID); errors.Is(err, taskq.ErrJobNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("janitor never pruned the finished job")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := jan.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
