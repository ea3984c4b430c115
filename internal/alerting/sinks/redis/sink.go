// Package redis publishes notifications on Redis pub/sub channels.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"attest/internal/alerting"
)

const defaultChannelPrefix = "attest:notifications"

// Sink publishes each notification as JSON on "<prefix>:<kind>".
type Sink struct {
	client goredis.UniversalClient
	prefix string
}

// New creates a sink on an existing client. The client is owned by the caller.
func New(client goredis.UniversalClient, prefix string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &Sink{client: client, prefix: prefix}, nil
}

func (s *Sink) Name() string { return "redis" }

// Channel returns the channel a notification kind is published on.
func (s *Sink) Channel(kind alerting.Kind) string {
	return s.prefix + ":" + string(kind)
}

func (s *Sink) Send(ctx context.Context, n alerting.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.Channel(n.Kind), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (s *Sink) Close() error { return nil }
