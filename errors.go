package taskq

import "errors"

var (
	// Not found errors. An unknown job ID is an expected condition, never
	// a fault: callers check for it explicitly with errors.Is.
	ErrJobNotFound = errors.New("taskq: job not found")

	// ErrNoResult is returned when a job exists but has not completed, so
	// no result is available yet.
	ErrNoResult = errors.New("taskq: job has no result")

	// Store errors.
	ErrJobAlreadyExists = errors.New("taskq: job already exists")
	ErrStoreClosed      = errors.New("taskq: store closed")
	ErrMigrationFailed  = errors.New("taskq: migration failed")
)
