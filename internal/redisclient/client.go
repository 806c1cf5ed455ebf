package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/decr_available.lua
var decrAvailableScript string

//go:embed scripts/incr_available.lua
var incrAvailableScript string

// Client caches per-(flight, class) availability for search pricing and
// holds idempotency keys. Postgres stays the source of truth; every cache
// miss falls through to the database and mutations invalidate or adjust
// the cached counts best-effort.
type Client struct {
	rdb        *redis.Client
	decrScript *redis.Script
	incrScript *redis.Script
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
		rdb:        rdb,
		decrScript: redis.NewScript(decrAvailableScript),
		incrScript: redis.NewScript(incrAvailableScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func availabilityKey(flightID, seatClassID int64) string {
	return fmt.Sprintf("availability:%d:%d", flightID, seatClassID)
}

// GetAvailability returns the cached available-seat count for a (flight,
// class) pair. The bool is false on a cache miss.
func (c *Client) GetAvailability(ctx context.Context, flightID, seatClassID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, availabilityKey(flightID, seatClassID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value: %w", err)
	}
	return n, true, nil
}

// SetAvailability caches the available-seat count for a (flight, class)
// pair with a TTL.
func (c *Client) SetAvailability(ctx context.Context, flightID, seatClassID int64, available int, ttl time.Duration) error {
	return c.rdb.Set(ctx, availabilityKey(flightID, seatClassID), available, ttl).Err()
}

// DecrAvailability atomically lowers a cached count after a seat was sold.
// Missing or exhausted keys are reported, not created.
func (c *Client) DecrAvailability(ctx context.Context, flightID, seatClassID int64, amount int) error {
	_, err := c.decrScript.Run(ctx, c.rdb, []string{availabilityKey(flightID, seatClassID)}, amount).Result()
	if err != nil {
		return fmt.Errorf("decr availability script failed: %w", err)
	}
	return nil
}

// IncrAvailability atomically raises a cached count after a seat was
// released, if the key still exists.
func (c *Client) IncrAvailability(ctx context.Context, flightID, seatClassID int64, amount int) error {
	_, err := c.incrScript.Run(ctx, c.rdb, []string{availabilityKey(flightID, seatClassID)}, amount).Result()
	if err != nil {
		return fmt.Errorf("incr availability script failed: %w", err)
	}
	return nil
}

// InvalidateFlight drops every cached availability entry for a flight.
func (c *Client) InvalidateFlight(ctx context.Context, flightID int64) error {
	pattern := fmt.Sprintf("availability:%d:*", flightID)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
