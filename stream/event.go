// Package stream provides a real-time event broker for taskq lifecycle
// events. It bridges the hook system to connected clients via
// topic-based pub/sub over buffered channels: attach the Broker as a
// hook and fan job transitions out to any number of subscribers.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventJobSubmitted EventType = "job.submitted"
	EventJobStarted   EventType = "job.started"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobCancelled EventType = "job.cancelled"
	EventJobRestored  EventType = "job.restored"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the job-specific channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID      string `json:"job_id"`
	JobType    string `json:"job_type"`
	State      string `json:"state"`
	Percentage int    `json:"percentage,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`

	// OldJobID is set on job.restored events: the identity the job
	// carried before the restart it was recovered from.
	OldJobID string `json:"old_job_id,omitempty"`
}
