package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/quorumchat/taskq"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// SaveJob stores the job as a Hash and records its ID in the
// enumeration Set. Existing fields are overwritten.
func (s *Store) SaveJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jID), jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("taskq/redis: save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID, including its progress history.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := s.getJobByKey(ctx, jobKey(jobID.String()))
	if err != nil {
		return nil, err
	}

	updates, err := s.progressHistory(ctx, jobID.String())
	if err != nil {
		return nil, err
	}
	j.ProgressUpdates = updates
	return j, nil
}

// ListJobs returns every stored job ordered by creation time, each with
// its progress history attached.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		updates, histErr := s.progressHistory(ctx, jID)
		if histErr != nil {
			return nil, histErr
		}
		j.ProgressUpdates = updates
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

// AppendProgress pushes one update onto the job's history List and
// refreshes the Hash's progress field.
func (s *Store) AppendProgress(ctx context.Context, jobID id.JobID, u job.ProgressUpdate) error {
	jID := jobID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("taskq/redis: append progress exists: %w", err)
	}
	if exists == 0 {
		return taskq.ErrJobNotFound
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("taskq/redis: marshal progress: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "progress", strconv.Itoa(u.Percentage))
	pipe.RPush(ctx, progressKey(jID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("taskq/redis: append progress: %w", err)
	}
	return nil
}

// PurgeTerminalBefore removes finished jobs whose completion timestamp
// is before cutoff, together with their progress histories.
func (s *Store) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("taskq/redis: purge smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if !j.State.Terminal() {
			continue
		}
		if j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, jobKey(jID))
		pipe.Del(ctx, progressKey(jID))
		pipe.SRem(ctx, jobIDsKey, jID)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return count, fmt.Errorf("taskq/redis: purge job %s: %w", jID, pErr)
		}
		count++
	}
	return count, nil
}

// ── helpers ──

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, taskq.ErrJobNotFound
	}
	return mapToJob(vals)
}

func (s *Store) progressHistory(ctx context.Context, jID string) ([]job.ProgressUpdate, error) {
	raw, err := s.client.LRange(ctx, progressKey(jID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: progress lrange: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	updates := make([]job.ProgressUpdate, 0, len(raw))
	for _, entry := range raw {
		var u job.ProgressUpdate
		if err := json.Unmarshal([]byte(entry), &u); err != nil {
			return nil, fmt.Errorf("taskq/redis: unmarshal progress: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":              j.ID.String(),
		"type":            j.Type,
		"state":           string(j.State),
		"progress":        strconv.Itoa(j.Progress),
		"input":           string(j.Input),
		"result":          string(j.Result),
		"error":           j.Error,
		"estimated_total": strconv.FormatInt(int64(j.EstimatedTotal), 10),
		"model_count":     strconv.Itoa(j.ModelCount),
		"created_at":      j.CreatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: parse job id: %w", err)
	}

	progress, _ := strconv.Atoi(m["progress"])                       //nolint:errcheck // best-effort parse from trusted Redis data
	modelCount, _ := strconv.Atoi(m["model_count"])                  //nolint:errcheck // best-effort parse from trusted Redis data
	estimated, _ := strconv.ParseInt(m["estimated_total"], 10, 64)   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])    //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		ID:             jID,
		Type:           m["type"],
		State:          job.State(m["state"]),
		Progress:       progress,
		Error:          m["error"],
		EstimatedTotal: time.Duration(estimated),
		ModelCount:     modelCount,
		CreatedAt:      createdAt,
	}
	if v := m["input"]; v != "" {
		j.Input = []byte(v)
	}
	if v := m["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	return j, nil
}
