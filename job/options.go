package job

import "time"

// Options carries per-submission scheduling hints. The dispatcher stores
// them on the job and returns them unchanged; it never acts on them.
type Options struct {
	// EstimatedTotal is the caller's estimate of total work duration.
	EstimatedTotal time.Duration

	// ModelCount is the number of models the work will query.
	ModelCount int
}

// Option is a functional option for configuring a job submission.
type Option func(*Options)

// WithEstimatedTotal sets the caller's estimate of total work duration.
func WithEstimatedTotal(d time.Duration) Option {
	return func(o *Options) {
		o.EstimatedTotal = d
	}
}

// WithModelCount sets the number of models the work will query.
func WithModelCount(n int) Option {
	return func(o *Options) {
		o.ModelCount = n
	}
}
