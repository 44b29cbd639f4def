// Package cache holds the Redis fast path for checkout idempotency. The
// checkout_requests table stays the source of truth; a cache miss or error
// only costs a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce-core/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KeyCheckoutIdempotency is idem:checkout:{user_id}:{idempotency_key}.
const KeyCheckoutIdempotency = "idem:checkout:%s:%s"

// Entry is the cached outcome of a checkout.
type Entry struct {
	OrderID     uuid.UUID `json:"order_id"`
	Fingerprint string    `json:"fingerprint"`
}

// IdempotencyCache remembers which order a checkout key produced.
type IdempotencyCache interface {
	// Get returns nil on a miss.
	Get(ctx context.Context, userID, key string) (*Entry, error)
	Set(ctx context.Context, userID, key string, entry Entry, ttl time.Duration) error
}

// CheckoutKey builds the Redis key for a user's idempotency key.
func CheckoutKey(userID, key string) string {
	return fmt.Sprintf(KeyCheckoutIdempotency, userID, key)
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisIdempotencyCache stores entries as JSON strings with a TTL.
type RedisIdempotencyCache struct {
	client redis.Cmdable
	logger zerolog.Logger
}

// NewRedisIdempotencyCache creates a cache over client.
func NewRedisIdempotencyCache(client redis.Cmdable, logger zerolog.Logger) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{
		client: client,
		logger: logger.With().Str("component", "idempotency_cache").Logger(),
	}
}

func (c *RedisIdempotencyCache) Get(ctx context.Context, userID, key string) (*Entry, error) {
	raw, err := c.client.Get(ctx, CheckoutKey(userID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read idempotency cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding corrupt idempotency cache entry")
		return nil, nil
	}
	return &entry, nil
}

func (c *RedisIdempotencyCache) Set(ctx context.Context, userID, key string, entry Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency cache entry: %w", err)
	}
	if err := c.client.Set(ctx, CheckoutKey(userID, key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency cache: %w", err)
	}
	return nil
}

// NopIdempotencyCache always misses. It is used when Redis is disabled.
type NopIdempotencyCache struct{}

func (NopIdempotencyCache) Get(context.Context, string, string) (*Entry, error) { return nil, nil }
func (NopIdempotencyCache) Set(context.Context, string, string, Entry, time.Duration) error {
	return nil
}
