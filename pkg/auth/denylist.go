package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/stroke-api/pkg/circuitbreaker"
)

// Denylist remembers revoked token ids until the tokens would have expired
// anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Close() error
}

type memoryDenylist struct {
	cache *cache.Cache
}

// NewMemoryDenylist keeps revoked ids in process memory. Revocations are
// lost on restart and are not shared between replicas.
func NewMemoryDenylist(cleanupInterval time.Duration) Denylist {
	return &memoryDenylist{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (d *memoryDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	d.cache.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := d.cache.Get(tokenID)
	return found, nil
}

func (d *memoryDenylist) Close() error {
	d.cache.Flush()
	return nil
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryBackoff time.Duration
}

type redisDenylist struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger zerolog.Logger
}

const denylistKeyPrefix = "stroke:revoked:"

// NewRedisDenylist shares revocations between replicas through Redis.
// Calls go through a circuit breaker so an unhealthy Redis fails fast.
func NewRedisDenylist(ctx context.Context, config RedisConfig, logger zerolog.Logger) (Denylist, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.MinIdleConns > 0 {
		opts.MinIdleConns = config.MinIdleConns
	}
	opts.MaxRetries = config.MaxRetries
	if config.RetryBackoff > 0 {
		opts.MinRetryBackoff = config.RetryBackoff
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisDenylist{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-denylist",
			MaxFailures: 5,
			Timeout:     5 * time.Second,
		}),
		logger: logger.With().Str("component", "token_denylist").Logger(),
	}, nil
}

func (d *redisDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	err := d.cb.Execute(func() error {
		return d.client.Set(ctx, denylistKeyPrefix+tokenID, 1, ttl).Err()
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to revoke token")
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int64
	err := d.cb.Execute(func() error {
		var err error
		n, err = d.client.Exists(ctx, denylistKeyPrefix+tokenID).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

func (d *redisDenylist) Close() error {
	return d.client.Close()
}
