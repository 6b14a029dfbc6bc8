package taskq

import (
	"fmt"
	"log/slog"

	"github.com/quorumchat/taskq/codec"
	"github.com/quorumchat/taskq/hook"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithMaxConcurrent sets the maximum number of simultaneously running
// jobs. The bound is fixed for the life of the dispatcher.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) error {
		if n < 1 {
			return fmt.Errorf("taskq: max concurrent must be >= 1, got %d", n)
		}
		d.config.MaxConcurrent = n
		return nil
	}
}

// WithConfig replaces the dispatcher's entire configuration.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) error {
		if cfg.MaxConcurrent < 1 {
			return fmt.Errorf("taskq: max concurrent must be >= 1, got %d", cfg.MaxConcurrent)
		}
		d.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithHooks sets a pre-built hook registry. Without this option the
// dispatcher creates an empty registry reachable via Hooks().
func WithHooks(r *hook.Registry) Option {
	return func(d *Dispatcher) error {
		d.hooks = r
		return nil
	}
}

// WithCodec sets the payload codec used by the typed Submit and Result
// helpers. Defaults to JSON.
func WithCodec(c codec.Codec) Option {
	return func(d *Dispatcher) error {
		d.codec = c
		return nil
	}
}
