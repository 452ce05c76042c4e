// Package publish streams committed journal entries to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/tezbet/pool-engine/internal/model"
)

// Publisher delivers journal entries after they have been committed.
type Publisher interface {
	Publish(ctx context.Context, entries []model.LedgerEntry) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for a comma-separated broker list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher writes one message per entry, keyed by event id so every
// entry of an event lands on the same partition in order.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.EventID),
			Value:   b,
			Time:    e.Timestamp,
			Headers: []kafka.Header{{Key: "kind", Value: []byte(e.Kind)}},
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d entries: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Nop discards entries. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, []model.LedgerEntry) error { return nil }
func (Nop) Close() error                                       { return nil }
