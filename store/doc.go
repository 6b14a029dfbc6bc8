// Package store defines the persistence contract shared by the taskq
// backends and hosts their implementations.
//
// A backend mirrors the dispatcher's in-memory job table so that a
// process restart can reconstruct the backlog. Four backends ship with
// the module:
//
//   - memory: process-local map, for tests and ephemeral deployments
//   - sqlite: embedded file database via bun
//   - postgres: raw SQL over a pgx connection pool
//   - redis: hash-per-job over go-redis
//
// Backends are passive. The dispatcher never writes to a store itself;
// the persist.Mirror hook forwards lifecycle events into one, and the
// recovery.Coordinator reads one back at startup.
package store

import (
	"context"

	"github.com/quorumchat/taskq/job"
)

// Store is the full backend contract: the job persistence operations
// plus lifecycle management.
type Store interface {
	job.Store

	// Migrate creates or upgrades the backend's schema. Safe to call on
	// every startup.
	Migrate(ctx context.Context) error

	// Ping verifies connectivity to the underlying system.
	Ping(ctx context.Context) error

	// Close releases the backend's resources. The store must not be
	// used after Close returns.
	Close() error
}
