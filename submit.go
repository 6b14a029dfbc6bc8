package taskq

import (
	"context"
	"fmt"

	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Submit serializes a typed input payload with the dispatcher's codec
// and submits it. The payload round-trips through the scheduler opaque
// and unchanged.
func Submit[T any](ctx context.Context, d *Dispatcher, jobType string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := d.codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("taskq: marshal input for job type %q: %w", jobType, err)
	}
	return d.SubmitRaw(ctx, jobType, data, opts...), nil
}

// Result decodes a completed job's result payload into T using the
// dispatcher's codec. Returns ErrJobNotFound for unknown IDs and
// ErrNoResult for jobs that have not completed.
func Result[T any](d *Dispatcher, jobID id.JobID) (T, error) {
	var out T

	data, err := d.ResultRaw(jobID)
	if err != nil {
		return out, err
	}
	if err := d.codec.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("taskq: unmarshal result for job %s: %w", jobID, err)
	}
	return out, nil
}
