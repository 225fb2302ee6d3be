// Package events publishes proof lifecycle events. Kafka carries them when
// brokers are configured; otherwise they are logged.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"formproof/internal/platform/kafka/producer"
)

// Type names a lifecycle event.
type Type string

const (
	TypeInitiated Type = "proof.initiated"
	TypeFallback  Type = "proof.fallback"
	TypeVerified  Type = "proof.verified"
	TypeExpired   Type = "proof.expired"
	TypeFailed    Type = "proof.failed"
)

// Event is one lifecycle transition. Verified attribute values are never
// included, only their names.
type Event struct {
	Type          Type      `json:"type"`
	ProofID       string    `json:"proofId"`
	FormRef       string    `json:"formRef"`
	DefineID      string    `json:"defineId,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Degraded      bool      `json:"degraded,omitempty"`
	Attributes    []string  `json:"attributes,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Producer is the subset of the Kafka producer used here.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events as JSON keyed by proof id, so all events of
// one proof land on the same partition in order.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher creates a publisher for topic.
func NewKafkaPublisher(p Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// Publish produces e synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode proof event: %w", err)
	}
	return p.producer.Produce(ctx, &producer.Message{
		Topic: p.topic,
		Key:   []byte(e.ProofID),
		Value: value,
		Headers: map[string]string{
			"event_type": string(e.Type),
		},
	})
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs e.
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "proof event",
		"event_type", string(e.Type),
		"proof_id", e.ProofID,
		"form_ref", e.FormRef,
		"define_id", e.DefineID,
		"degraded", e.Degraded,
		"reason", e.Reason,
	)
	return nil
}

// MemoryPublisher records events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty recorder.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records e.
func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types returns the recorded event types in publish order.
func (p *MemoryPublisher) Types() []Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
