package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/claim_idempotency.lua
var claimIdempotencyScript string

// InFlight is stored under an idempotency key while the first request is still running
const InFlight = "in-flight"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	claimScript   *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		claimScript:   redis.NewScript(claimIdempotencyScript),
	}, nil
}

// Ping checks connectivity, used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock owned by a random token.
// The returned release function only deletes the lock while this owner still holds it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := fmt.Sprintf("lock:%s", lockKey)
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := c.releaseScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock script failed: %w", err)
		}
		return nil
	}
	return release, true, nil
}

// ClaimIdempotencyKey atomically claims key for a new request.
// When the key is already present its stored value is returned with claimed=false.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	res, err := c.claimScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("idempotency:%s", key)}, InFlight, ttl.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		return "", true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency script failed: %w", err)
	}

	value, ok := res.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected script result type")
	}
	return value, false, nil
}

// SetIdempotencyKey stores the outcome of a request under key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// ForgetIdempotencyKey drops a claim so the client may retry after a failure
func (c *Client) ForgetIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}
