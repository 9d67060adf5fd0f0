package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// presence entries expire unless refreshed by a live connection
const presenceTTL = 2 * time.Minute

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func counterKey(tenantID string) string {
	return fmt.Sprintf("order_counter:%s", tenantID)
}

// NextSequence atomically increments the tenant counter with INCR.
// A missing key starts from 0, so the first value is 1.
func (c *Client) NextSequence(ctx context.Context, tenantID string) (int64, error) {
	seq, err := c.rdb.Incr(ctx, counterKey(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr counter: %w", err)
	}
	return seq, nil
}

// CurrentSequence returns the last issued value, 0 when absent
func (c *Client) CurrentSequence(ctx context.Context, tenantID string) (int64, error) {
	val, err := c.rdb.Get(ctx, counterKey(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func presenceKey(tenantID string) string {
	return fmt.Sprintf("presence:%s", tenantID)
}

// MarkOnline records that userID is connected with role
func (c *Client) MarkOnline(ctx context.Context, tenantID, userID, role string) error {
	key := presenceKey(tenantID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, userID, role)
	pipe.Expire(ctx, key, presenceTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// MarkOffline removes userID from the tenant presence set
func (c *Client) MarkOffline(ctx context.Context, tenantID, userID string) error {
	return c.rdb.HDel(ctx, presenceKey(tenantID), userID).Err()
}

// OnlineUsers returns userID -> role for the tenant
func (c *Client) OnlineUsers(ctx context.Context, tenantID string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, presenceKey(tenantID)).Result()
}
