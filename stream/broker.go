package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quorumchat/taskq/hook"
	"github.com/quorumchat/taskq/id"
	"github.com/quorumchat/taskq/job"
)

// Compile-time interface checks.
var (
	_ hook.Hook         = (*Broker)(nil)
	_ hook.JobSubmitted = (*Broker)(nil)
	_ hook.JobStarted   = (*Broker)(nil)
	_ hook.JobProgress  = (*Broker)(nil)
	_ hook.JobCompleted = (*Broker)(nil)
	_ hook.JobCancelled = (*Broker)(nil)
	_ hook.JobRestored  = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the hook
// interfaces to receive lifecycle events and fans them out to
// subscribers via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID string → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements hook.Hook.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics and returns
// it. The subscriber is assigned a fresh identity.
func (b *Broker) Subscribe(topics ...string) *Subscriber {
	sub := NewSubscriber(id.NewSubscriberID(), b.bufferSize, b.defaultCredits)
	b.subscribers.Store(sub.ID().String(), sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID id.SubscriberID, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID.String())
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID id.SubscriberID, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID id.SubscriberID) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID.String()); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID id.SubscriberID) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID.String())
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Close removes and closes all subscribers.
func (b *Broker) Close() {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		b.topics.UnsubscribeAll(sub.ID())
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker closed")
}

// publishJob builds an event for the job and broadcasts it to all
// matching topics.
func (b *Broker) publishJob(evtType EventType, j *job.Job, data JobEventData) {
	evt := &Event{
		Type:      evtType,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(data),
	}
	delivered, dropped := b.topics.Broadcast(resolveTopics(evt, j.Type), evt)
	b.totalPublished.Add(int64(delivered))
	b.totalDropped.Add(int64(dropped))
}

// jobData fills the common payload fields from a job snapshot.
func jobData(j *job.Job) JobEventData {
	return JobEventData{
		JobID:   j.ID.String(),
		JobType: j.Type,
		State:   string(j.State),
	}
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("taskq/stream: marshal event data: " + err.Error())
	}
	return data
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobSubmitted(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobSubmitted, j, jobData(j))
	return nil
}

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobStarted, j, jobData(j))
	return nil
}

func (b *Broker) OnJobProgress(_ context.Context, j *job.Job, u job.ProgressUpdate) error {
	data := jobData(j)
	data.Percentage = u.Percentage
	data.Message = u.Message
	b.publishJob(EventJobProgress, j, data)
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job) error {
	data := jobData(j)
	evtType := EventJobCompleted
	if j.State == job.StateFailed {
		evtType = EventJobFailed
		data.Error = j.Error
	}
	if j.StartedAt != nil && j.CompletedAt != nil {
		data.ElapsedMs = j.CompletedAt.Sub(*j.StartedAt).Milliseconds()
	}
	b.publishJob(evtType, j, data)
	return nil
}

func (b *Broker) OnJobCancelled(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobCancelled, j, jobData(j))
	return nil
}

func (b *Broker) OnJobRestored(_ context.Context, oldID id.JobID, j *job.Job) error {
	data := jobData(j)
	data.OldJobID = oldID.String()
	b.publishJob(EventJobRestored, j, data)
	return nil
}
