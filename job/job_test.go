package job

import (
	"testing"
	"time"

	"github.com/quorumchat/taskq/id"
)

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		terminal bool
	}{
		{StatePending, false},
		{StateRunning, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestClampProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{-50, 0},
		{-1, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{101, 100},
		{250, 100},
	}

	for _, tt := range tests {
		if got := ClampProgress(tt.in); got != tt.want {
			t.Errorf("ClampProgress(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	started := time.Now().Add(-time.Minute)
	j := &Job{
		ID:        id.NewJobID(),
		Type:      "query",
		State:     StateRunning,
		Progress:  40,
		Input:     []byte(`{"prompt":"hi"}`),
		CreatedAt: time.Now().Add(-2 * time.Minute),
		StartedAt: &started,
		ProgressUpdates: []ProgressUpdate{
			{Timestamp: started, Percentage: 40, Message: "2 of 5"},
		},
	}

	cp := j.Clone()

	// Mutating the clone must not reach the original.
	cp.Input[0] = 'X'
	cp.ProgressUpdates[0].Percentage = 99
	*cp.StartedAt = cp.StartedAt.Add(time.Hour)

	if j.Input[0] != '{' {
		t.Error("clone shares Input backing array with original")
	}
	if j.ProgressUpdates[0].Percentage != 40 {
		t.Error("clone shares ProgressUpdates backing array with original")
	}
	if !j.StartedAt.Equal(started) {
		t.Error("clone shares StartedAt pointer with original")
	}
}

func TestCloneNilFields(t *testing.T) {
	t.Parallel()

	j := &Job{ID: id.NewJobID(), Type: "query", State: StatePending, CreatedAt: time.Now()}
	cp := j.Clone()

	if cp.StartedAt != nil || cp.CompletedAt != nil {
		t.Error("clone invented timestamps")
	}
	if cp.Input != nil || cp.Result != nil || cp.ProgressUpdates != nil {
		t.Error("clone invented payload fields")
	}
}

func TestStatsCount(t *testing.T) {
	t.Parallel()

	s := Stats{Total: 10, Pending: 4, Running: 2, Completed: 2, Failed: 1, Cancelled: 1}

	sum := 0
	for _, st := range States {
		sum += s.Count(st)
	}
	if sum != s.Total {
		t.Errorf("state counts sum to %d, want Total %d", sum, s.Total)
	}
	if s.Count(StatePending) != 4 {
		t.Errorf("Count(pending) = %d, want 4", s.Count(StatePending))
	}
	if s.Count(State("bogus")) != 0 {
		t.Errorf("Count(bogus) = %d, want 0", s.Count(State("bogus")))
	}
}
