// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and deployments that do
// not need restart recovery.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

var _ job.Store = (*Store)(nil)

// Store keeps the mirrored job table in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*job.Job
	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return taskq.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// ErrStoreClosed.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.jobs = nil
	return nil
}

// SaveJob inserts or replaces the stored record for j. The progress
// history is owned by AppendProgress; an existing record's history is
// preserved across upserts.
func (m *Store) SaveJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return taskq.ErrStoreClosed
	}
	key := j.ID.String()
	cp := j.Clone()
	if prev, ok := m.jobs[key]; ok {
		cp.ProgressUpdates = prev.ProgressUpdates
	} else {
		cp.ProgressUpdates = nil
	}
	m.jobs[key] = cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, taskq.ErrStoreClosed
	}
	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, taskq.ErrJobNotFound
	}
	return j.Clone(), nil
}

// ListJobs returns every stored job ordered by creation time.
func (m *Store) ListJobs(_ context.Context) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, taskq.ErrStoreClosed
	}

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		result = append(result, j.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// AppendProgress adds one update to the stored job's history.
func (m *Store) AppendProgress(_ context.Context, jobID id.JobID, u job.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return taskq.ErrStoreClosed
	}
	j, ok := m.jobs[jobID.String()]
	if !ok {
		return taskq.ErrJobNotFound
	}
	j.Progress = u.Percentage
	j.ProgressUpdates = append(j.ProgressUpdates, u)
	return nil
}

// PurgeTerminalBefore removes finished jobs whose completion timestamp
// is before cutoff, together with their progress history.
func (m *Store) PurgeTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, taskq.ErrStoreClosed
	}

	var count int64
	for key, j := range m.jobs {
		if !j.State.Terminal() {
			continue
		}
		if j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, key)
			count++
		}
	}
	return count, nil
}
