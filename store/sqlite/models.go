package sqlite

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:taskq_jobs"`

	ID             string     `bun:"id,pk"`
	Type           string     `bun:"type,notnull"`
	State          string     `bun:"state,notnull,default:'pending'"`
	Progress       int        `bun:"progress,notnull,default:0"`
	Input          []byte     `bun:"input"`
	Result         []byte     `bun:"result"`
	Error          string     `bun:"error"`
	EstimatedTotal int64      `bun:"estimated_total,notnull,default:0"`
	ModelCount     int        `bun:"model_count,notnull,default:0"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	StartedAt      *time.Time `bun:"started_at"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

type progressModel struct {
	bun.BaseModel `bun:"table:taskq_progress"`

	Seq        int64     `bun:"seq,pk,autoincrement"`
	JobID      string    `bun:"job_id,notnull"`
	Timestamp  time.Time `bun:"ts,notnull"`
	Message    string    `bun:"message"`
	Percentage int       `bun:"percentage,notnull"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:             j.ID.String(),
		Type:           j.Type,
		State:          string(j.State),
		Progress:       j.Progress,
		Input:          j.Input,
		Result:         j.Result,
		Error:          j.Error,
		EstimatedTotal: j.EstimatedTotal.Nanoseconds(),
		ModelCount:     j.ModelCount,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("taskq/sqlite: parse job id %q: %w", m.ID, err)
	}

	return &job.Job{
		ID:             parsedID,
		Type:           m.Type,
		State:          job.State(m.State),
		Progress:       m.Progress,
		Input:          m.Input,
		Result:         m.Result,
		Error:          m.Error,
		EstimatedTotal: time.Duration(m.EstimatedTotal),
		ModelCount:     m.ModelCount,
		CreatedAt:      m.CreatedAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}, nil
}

func toProgressModel(jobID id.JobID, u job.ProgressUpdate) *progressModel {
	return &progressModel{
		JobID:      jobID.String(),
		Timestamp:  u.Timestamp,
		Message:    u.Message,
		Percentage: u.Percentage,
	}
}

func fromProgressModel(m *progressModel) job.ProgressUpdate {
	return job.ProgressUpdate{
		Timestamp:  m.Timestamp,
		Message:    m.Message,
		Percentage: m.Percentage,
	}
}
