package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/confscout/provider"
	"github.com/mohammad-safakhou/confscout/session"
)

const keyPrefix = "dive:"

// Cache stores handles in redis so several backend replicas share one
// upload per paper per session. Redis expiry enforces handle expiry.
type Cache struct {
	client *redis.Client
	clock  session.Clock
}

// New wraps an existing redis client. A nil clock means time.Now.
func New(client *redis.Client, clock session.Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{client: client, clock: clock}
}

// Conn dials redis and verifies the connection with a ping.
func Conn(ctx context.Context, host, port, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	return client, nil
}

func (c *Cache) Get(ctx context.Context, key session.Key) (provider.FileHandle, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return provider.FileHandle{}, false, nil
		}
		return provider.FileHandle{}, false, err
	}
	var handle provider.FileHandle
	if err := json.Unmarshal([]byte(val), &handle); err != nil {
		return provider.FileHandle{}, false, err
	}
	if !handle.ExpiresAt.After(c.clock()) {
		_ = c.client.Del(ctx, keyPrefix+key.String()).Err()
		return provider.FileHandle{}, false, nil
	}
	return handle, true, nil
}

func (c *Cache) Put(ctx context.Context, key session.Key, handle provider.FileHandle) error {
	data, err := json.Marshal(handle)
	if err != nil {
		return err
	}
	ttl := handle.ExpiresAt.Sub(c.clock())
	if ttl <= 0 {
		return nil // already expired, nothing to store
	}
	return c.client.Set(ctx, keyPrefix+key.String(), data, ttl).Err()
}

func (c *Cache) ClearSession(ctx context.Context, identity string, client provider.Client) error {
	pattern := keyPrefix + identity + ":" + string(client) + ":*"
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
