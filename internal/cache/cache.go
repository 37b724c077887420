// Package cache wraps the key-value store used for the shared connection
// registry, presence markers, read receipts and the user-info cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect dials the key-value store and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const (
	userInfoTTL    = time.Hour
	readReceiptTTL = 7 * 24 * time.Hour
)

// Cache provides the small non-registry conveniences: user-info caching and
// message read receipts. All failures are best-effort by contract.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func userInfoKey(userID int) string        { return fmt.Sprintf("%d_info", userID) }
func readReceiptKey(messageID string) string { return "message_read:" + messageID }

// GetUserInfo returns the cached user-info JSON, or "" on miss or error.
func (c *Cache) GetUserInfo(ctx context.Context, userID int) string {
	if c == nil || c.rdb == nil {
		return ""
	}
	val, err := c.rdb.Get(ctx, userInfoKey(userID)).Result()
	if err != nil {
		return ""
	}
	return val
}

// SetUserInfo caches the user-info JSON with a short TTL.
func (c *Cache) SetUserInfo(ctx context.Context, userID int, payload string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, userInfoKey(userID), payload, userInfoTTL).Err()
}

// MarkMessageRead records a read receipt for a persisted message.
func (c *Cache) MarkMessageRead(ctx context.Context, messageID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, readReceiptKey(messageID), "1", readReceiptTTL).Err()
}

// IsMessageRead reports whether a read receipt exists for the message.
func (c *Cache) IsMessageRead(ctx context.Context, messageID string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	n, err := c.rdb.Exists(ctx, readReceiptKey(messageID)).Result()
	return n > 0, err
}
