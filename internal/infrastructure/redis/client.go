package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions overrides connection settings parsed from the URL.
type ClientOptions struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a Redis client from a redis:// URL and verifies it with a
// ping.
func NewClient(ctx context.Context, redisURL string, overrides ...ClientOptions) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	for _, o := range overrides {
		if o.PoolSize > 0 {
			opts.PoolSize = o.PoolSize
		}
		if o.DialTimeout > 0 {
			opts.DialTimeout = o.DialTimeout
		}
		if o.ReadTimeout > 0 {
			opts.ReadTimeout = o.ReadTimeout
		}
		if o.WriteTimeout > 0 {
			opts.WriteTimeout = o.WriteTimeout
		}
	}

	client := redis.NewClient(opts)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Pinger adapts a client to the readiness check interface.
type Pinger struct {
	Client *redis.Client
}

// Name identifies the dependency in readiness output.
func (p Pinger) Name() string { return "redis" }

// Ping checks the connection.
func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
