// Package kafka produces notifications to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"attest/internal/alerting"
)

// Sink writes notifications keyed by kind so a kind stays ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New creates a sink that owns client and closes it on Close.
func New(client *kgo.Client, topic string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("kafka client is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Send(ctx context.Context, n alerting.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(n.Kind),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "severity", Value: []byte(n.Severity)},
			{Key: "notification_id", Value: []byte(n.ID)},
		},
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (s *Sink) Close() error {
	defer s.client.Close()
	if err := s.client.Flush(context.Background()); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
