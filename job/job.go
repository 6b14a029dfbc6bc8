package job

import (
	"time"

	"github.com/quorumchat/taskq/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting in the FIFO backlog for a
	// concurrency slot.
	StatePending State = "pending"
	// StateRunning means the job holds a concurrency slot and its work is
	// executing externally.
	StateRunning State = "running"
	// StateCompleted means the external work reported success.
	StateCompleted State = "completed"
	// StateFailed means the external work reported a terminal error.
	StateFailed State = "failed"
	// StateCancelled means the job was explicitly cancelled.
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a terminal state. Jobs in a terminal
// state are never mutated by the dispatcher again and become eligible
// for pruning.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// States lists all states in a stable order, used for stats iteration.
var States = []State{StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled}

// ProgressUpdate is one timestamped, caller-supplied progress report.
// The history is append-only and preserves insertion order.
type ProgressUpdate struct {
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Percentage int       `json:"percentage"`
}

// Job represents one submitted unit of work tracked from creation to a
// terminal outcome. Input and Result are opaque to the scheduler: they
// are stored and returned unchanged, never interpreted.
type Job struct {
	ID       id.JobID `json:"id"`
	Type     string   `json:"type"`
	State    State    `json:"state"`
	Progress int      `json:"progress"`
	Input    []byte   `json:"input,omitempty"`
	Result   []byte   `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`

	// Scheduling hints carried through unchanged for observers.
	EstimatedTotal time.Duration `json:"estimated_total,omitempty"`
	ModelCount     int           `json:"model_count,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ProgressUpdates []ProgressUpdate `json:"progress_updates,omitempty"`
}

// Clone returns a deep copy of the job. The dispatcher hands out clones
// so callers can never observe a record mid-transition or mutate the
// authoritative table through a snapshot.
func (j *Job) Clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Input != nil {
		cp.Input = append([]byte(nil), j.Input...)
	}
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	if j.ProgressUpdates != nil {
		cp.ProgressUpdates = append([]ProgressUpdate(nil), j.ProgressUpdates...)
	}
	return &cp
}

// ClampProgress clamps a caller-supplied percentage to [0, 100].
// Monotonicity is not enforced; clamping is the only rule.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
