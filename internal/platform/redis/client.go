// Package redis builds the shared go-redis client used by the review queue and
// the rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crowdfund/internal/platform/config"
)

const defaultPingTimeout = 3 * time.Second

// Client embeds *redis.Client so stores can take it directly.
type Client struct {
	*redis.Client
	pingTimeout time.Duration
}

// New returns nil when REDIS_URL is unset. Otherwise the server must answer a
// PING before the process continues.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts), pingTimeout: defaultPingTimeout}
	if cfg.DialTimeout > 0 {
		c.pingTimeout = cfg.DialTimeout
	}
	if err := c.Health(ctx); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return c, nil
}

// Health pings with its own deadline so a stalled server cannot hold the
// /health handler.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
