package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

const pingTimeout = 2 * time.Second

// RedisDeviceCache keeps each user's APNs device tokens in a Redis set at
// apns:users/{urn}/devices.
type RedisDeviceCache struct {
	rdb *redis.Client
}

// NewRedisDeviceCache connects and pings so a bad address fails at startup.
func NewRedisDeviceCache(addr, password string, db int) (*RedisDeviceCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisDeviceCache{rdb: rdb}, nil
}

// Devices returns ErrCacheMiss when the user has no cached set.
func (c *RedisDeviceCache) Devices(ctx context.Context, user urn.URN) ([]string, error) {
	tokens, err := c.rdb.SMembers(ctx, devicesKey(user)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrCacheMiss
	}
	return tokens, nil
}

// SetDevices replaces the user's set atomically. An empty list only clears it,
// since Redis cannot hold an empty set.
func (c *RedisDeviceCache) SetDevices(ctx context.Context, user urn.URN, tokens []string, ttl time.Duration) error {
	key := devicesKey(user)
	members := make([]interface{}, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (c *RedisDeviceCache) Forget(ctx context.Context, user urn.URN) error {
	return c.rdb.Del(ctx, devicesKey(user)).Err()
}

func (c *RedisDeviceCache) Close() error {
	return c.rdb.Close()
}

func devicesKey(user urn.URN) string {
	return "apns:users/" + user.String() + "/devices"
}
