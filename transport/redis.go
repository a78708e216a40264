package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// DefaultChannel is the default pub/sub channel for frames.
const DefaultChannel = "sluice:frames"

// DefaultPublishTimeout is the default per-publish timeout.
const DefaultPublishTimeout = 5 * time.Second

// RedisConfig configures the Redis connector.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: sluice:frames).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
}

// Redis publishes frames to a pub/sub channel. Redis preserves publish
// order per connection, which carries the ordering guarantee; retry on
// failure is the caller's job, not this connector's.
type Redis struct {
	config RedisConfig
	client *goredis.Client
}

// DialRedis creates a Redis connector and verifies the server is
// reachable with a PING.
func DialRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis connector requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublishTimeout
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Redis{config: cfg, client: client}, nil
}

// RedisFactory returns a Factory that connects on first use.
func RedisFactory(cfg RedisConfig) Factory {
	return func() (Connector, error) {
		return DialRedis(cfg)
	}
}

// Open encodes and publishes a file open frame.
func (r *Redis) Open(ctx context.Context, open *types.FileOpenFrame) error {
	frame, err := wire.EncodeOpen(open)
	if err != nil {
		return err
	}
	return r.Send(ctx, frame)
}

// Send publishes one encoded frame to the configured channel.
func (r *Redis) Send(ctx context.Context, frame []byte) error {
	if r.client == nil {
		return ErrReleased
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := r.client.Publish(publishCtx, r.config.Channel, frame).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

// Release closes the Redis client.
func (r *Redis) Release() error {
	if r.client == nil {
		return nil
	}
	client := r.client
	r.client = nil
	if err := client.Close(); err != nil {
		return fmt.Errorf("redis: close: %w", err)
	}
	return nil
}

// Verify Redis implements Connector.
var _ Connector = (*Redis)(nil)
