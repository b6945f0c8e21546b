// Package events streams activity log entries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/isdelr/ender-feed-be/internal/models"
	kgo "github.com/segmentio/kafka-go"
)

// KafkaPublisher is a services.EventPublisher backed by a Kafka topic.
type KafkaPublisher struct {
	w *kgo.Writer
}

// NewKafkaPublisher creates a writer for topic on the given brokers. Blank entries are skipped.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &KafkaPublisher{w: &kgo.Writer{
		Addr:         kgo.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Publish writes event as JSON. Events of one user share a partition key so
// they stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func toMessage(event models.Event) (kgo.Message, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return kgo.Message{}, err
	}
	msg := kgo.Message{Value: b, Time: event.CreatedAt}
	if event.UserID != nil {
		msg.Key = []byte(*event.UserID)
	}
	return msg, nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error { return p.w.Close() }
