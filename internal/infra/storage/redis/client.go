// Package redis stores the registry document under a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

// Client wraps the Redis operations used by the registry store.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(rdb, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb redis.UniversalClient, prefix string) *Client {
	if prefix == "" {
		prefix = "pinwatch"
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) documentKey() string {
	return fmt.Sprintf("%s:registry", c.prefix)
}

func (c *Client) updatedKey() string {
	return fmt.Sprintf("%s:registry:updated", c.prefix)
}

func (c *Client) Read(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, c.documentKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrRegistryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return data, nil
}

// Write replaces the document and its write timestamp in one MULTI/EXEC.
func (c *Client) Write(ctx context.Context, doc []byte) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.documentKey(), doc, 0)
		pipe.Set(ctx, c.updatedKey(), time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
