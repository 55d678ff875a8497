package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces snapshot keys in a shared Redis.
const DefaultPrefix = "quark:snapshot:"

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	compression Compression
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithCompression sets the payload compression.
func WithCompression(c Compression) RedisOption {
	return func(r *Redis) { r.compression = c }
}

// NewRedis connects to the server at url (redis://...) and verifies it
// answers.
func NewRedis(ctx context.Context, url string, ttl time.Duration, opts ...RedisOption) (*Redis, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisClient(client, ttl, opts...), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client *redis.Client, ttl time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: DefaultPrefix, ttl: ttl, compression: CompressionZstd}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save implements Cache.
func (r *Redis) Save(ctx context.Context, key string, v any) error {
	data, err := encode(v, r.compression)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Load implements Cache.
func (r *Redis) Load(ctx context.Context, key string, out any) (bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := decode(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
