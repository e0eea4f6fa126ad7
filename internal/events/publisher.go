package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Event types emitted over the registration lifecycle.
const (
	TypeVerified    = "registration.verified"
	TypeRejected    = "registration.rejected"
	TypeCompleted   = "registration.completed"
	TypeChainFailed = "registration.chain_failed"
)

// Event is the wire format published to Kafka. It carries the identity
// hash, never the identity.
type Event struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	IDHash    string `json:"id_hash,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	Code      uint32 `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher emits registration lifecycle events to a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the given brokers. Publishing is fire-and-forget;
// delivery failures are logged, never surfaced to the request path.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish serializes and produces an event asynchronously. The address is
// the record key so per-user events stay ordered.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event", "type", event.Type, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Address),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce event", "type", event.Type, "error", err)
		}
	})
}

// Close flushes pending records and shuts the client down.
func (p *Publisher) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
