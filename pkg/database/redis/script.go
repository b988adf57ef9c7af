package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Script Lua 脚本，优先 EVALSHA，脚本未缓存时自动回退到 EVAL
type Script struct {
	s *redis.Script
}

// NewScript 创建脚本
func NewScript(src string) *Script {
	return &Script{s: redis.NewScript(src)}
}

// RunInt64 执行返回整数的脚本，脚本返回 nil 时得到 ErrNil
func (c *Client) RunInt64(ctx context.Context, script *Script, keys []string, args ...interface{}) (int64, error) {
	n, err := script.s.Run(ctx, c.rdb, keys, args...).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNil
		}
		return 0, fmt.Errorf("script failed: %w", err)
	}
	return n, nil
}

// KEYS[1] 存在且 KEYS[2..] 均不存在时自增 ARGV[1] 并续期 ARGV[2] 毫秒，否则返回 nil 且不创建键
var incrByIfExistsScript = NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
for i = 2, #KEYS do
  if redis.call('EXISTS', KEYS[i]) == 1 then
    return false
  end
end
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// KEYS[1] 取 max(当前值, ARGV[1])，返回最终值
// 给出 KEYS[2] 时以 NX 方式写入守卫键，过期时间 ARGV[3] 毫秒，已存在的守卫不续期
var setMaxScript = NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]))
local v = tonumber(ARGV[1])
if cur ~= nil and cur > v then
  v = cur
end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], v, 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], v)
end
if #KEYS > 1 then
  redis.call('SET', KEYS[2], 1, 'PX', ARGV[3], 'NX')
end
return v
`)

// IncrByIfExists 原子地对已存在的计数器自增，键不存在（过期或被淘汰）时返回 ErrNil
// guards 中任一键存在时同样返回 ErrNil
func (c *Client) IncrByIfExists(ctx context.Context, key string, delta int64, ttl time.Duration, guards ...string) (int64, error) {
	return c.RunInt64(ctx, incrByIfExistsScript, append([]string{key}, guards...), delta, ttl.Milliseconds())
}

// SetMax 原子地把计数器设置为 max(当前值, value)，不会调低并发写入的更大值
//
// guard 非空时在同一脚本内写入守卫键（NX，过期时间 guardTTL），
// 守卫存在期间 IncrByIfExists(key, ..., guard) 一律返回 ErrNil。
func (c *Client) SetMax(ctx context.Context, key string, value int64, ttl time.Duration, guard string, guardTTL time.Duration) (int64, error) {
	if guard == "" {
		return c.RunInt64(ctx, setMaxScript, []string{key}, value, ttl.Milliseconds())
	}
	if guardTTL <= 0 {
		return 0, fmt.Errorf("script failed: guard ttl must be positive")
	}
	return c.RunInt64(ctx, setMaxScript, []string{key, guard}, value, ttl.Milliseconds(), guardTTL.Milliseconds())
}
