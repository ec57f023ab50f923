package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_slot.lua
var reserveSlotScript string

//go:embed scripts/release_slot.lua
var releaseSlotScript string

//go:embed scripts/commit_slot.lua
var commitSlotScript string

const slotsKey = "camp:slots"

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
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
		reserveScript: redis.NewScript(reserveSlotScript),
		releaseScript: redis.NewScript(releaseSlotScript),
		commitScript:  redis.NewScript(commitSlotScript),
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

// ReserveSlot atomically holds one camp slot for a pending registration.
// Returns true if a slot was available.
func (c *Client) ReserveSlot(ctx context.Context) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{slotsKey}).Result()
	if err != nil {
		return false, fmt.Errorf("reserve slot script failed: %w", err)
	}

	success, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return success == 1, nil
}

// ReleaseSlot atomically returns a reserved slot to the pool. Called when
// a pending registration expires or its payment fails.
func (c *Client) ReleaseSlot(ctx context.Context) error {
	if _, err := c.releaseScript.Run(ctx, c.rdb, []string{slotsKey}).Result(); err != nil {
		return fmt.Errorf("release slot script failed: %w", err)
	}
	return nil
}

// CommitSlot atomically converts a reserved slot into a taken one once
// the registration is paid.
func (c *Client) CommitSlot(ctx context.Context) error {
	if _, err := c.commitScript.Run(ctx, c.rdb, []string{slotsKey}).Result(); err != nil {
		return fmt.Errorf("commit slot script failed: %w", err)
	}
	return nil
}

// InitSlots seeds the slot pool from the configured camp capacity. Only
// sets the counters when the key does not exist yet, so a restart does
// not reset live reservations.
func (c *Client) InitSlots(ctx context.Context, capacity int) error {
	exists, err := c.rdb.Exists(ctx, slotsKey).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, slotsKey, "available", capacity)
	pipe.HSet(ctx, slotsKey, "reserved", 0)

	_, err = pipe.Exec(ctx)
	return err
}

// GetSlots retrieves current slot counts
func (c *Client) GetSlots(ctx context.Context) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, slotsKey).Result()
	if err != nil {
		return 0, 0, err
	}

	if len(result) == 0 {
		return 0, 0, fmt.Errorf("slot pool not initialized")
	}

	var availableInt, reservedInt int
	fmt.Sscanf(result["available"], "%d", &availableInt)
	fmt.Sscanf(result["reserved"], "%d", &reservedInt)

	return availableInt, reservedInt, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
