// Package publisher ships audit events to Kafka. Delivery is asynchronous
// and best-effort: audit is an operational trail, not part of the contract's
// atomic commit, so a slow broker must never block a ledger operation.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "trustline/pkg/platform/audit"
)

// KafkaPublisher produces audit events to a single topic, keyed by actor so
// one party's trail stays ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the given brokers. Returns an error if the client
// cannot be constructed; broker reachability is checked lazily by franz-go.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

type wireEvent struct {
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Publish produces the event asynchronously. Failures are logged, not
// returned to the mutating operation.
func (p *KafkaPublisher) Publish(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:     event.Actor.String(),
		Subject:   event.Subject,
		Action:    string(event.Action),
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Actor.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Error("audit publish failed",
				"topic", p.topic,
				"action", event.Action,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush audit records: %w", err)
	}
	p.client.Close()
	return nil
}
