package taskq

// Config holds configuration for the Dispatcher.
type Config struct {
	// MaxConcurrent is the maximum number of jobs in the running state at
	// any instant. Fixed at construction.
	MaxConcurrent int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
	}
}
