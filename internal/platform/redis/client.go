// Package redis opens the go-redis client backing the notification sink.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attest/internal/platform/config"
)

const clientName = "attest"

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
}

// New dials Redis and pings it once. An empty URL means Redis is disabled
// and yields a nil client with no error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyOverrides(opts, cfg)

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// applyOverrides copies the non-zero pool and timeout settings onto opts.
func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	opts.ClientName = clientName
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	setPositive(&opts.DialTimeout, cfg.DialTimeout)
	setPositive(&opts.ReadTimeout, cfg.ReadTimeout)
	setPositive(&opts.WriteTimeout, cfg.WriteTimeout)
}

func setPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Health pings Redis. It is registered as the redis readiness check.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health: %w", err)
	}
	return nil
}
