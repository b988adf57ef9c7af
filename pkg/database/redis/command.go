package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Get 获取字符串值，键不存在返回 ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNil
		}
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// GetInt64 获取整数值，键不存在返回 ErrNil
func (c *Client) GetInt64(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNil
		}
		return 0, fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// Set 设置字符串值，expiration 为 0 表示不过期
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Del 删除键，返回实际删除的数量
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del failed: %w", err)
	}
	return n, nil
}

// IncrBy 自增，键不存在时从 0 开始
func (c *Client) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, key, value).Result()
	if err != nil {
		return 0, fmt.Errorf("incrby failed: %w", err)
	}
	return n, nil
}

// TTL 获取剩余过期时间，键不存在返回 ErrNil
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl failed: %w", err)
	}
	if ttl == -2 {
		return 0, ErrNil
	}
	return ttl, nil
}
