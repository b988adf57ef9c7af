package dao

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacheDAO(t *testing.T) (*CacheDAO, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	client, err := redis.NewClient(&redis.Config{Standalone: &redis.NodeConfig{Host: mr.Host(), Port: port}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheDAO(client, &CacheConfig{CounterTTL: time.Hour}, logger.NewNoop(), nil), mr
}

func TestPullCounter(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestCacheDAO(t)

	_, err := d.IncrPullCounter(ctx, 7, 10)
	assert.ErrorIs(t, err, redis.ErrNil)
	assert.False(t, mr.Exists("gacha:pulls:7"), "increment must not create the key")

	_, err = d.GetPullCounter(ctx, 7)
	assert.ErrorIs(t, err, redis.ErrNil)

	v, err := d.PrimePullCounter(ctx, 7, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)
	assert.True(t, mr.Exists("gacha:pulls:7:recount"))

	// 重算窗口内拒绝自增
	_, err = d.IncrPullCounter(ctx, 7, 10)
	assert.ErrorIs(t, err, redis.ErrNil)
	v, err = d.GetPullCounter(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	mr.FastForward(2 * time.Minute)
	v, err = d.IncrPullCounter(ctx, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)
	assert.Equal(t, time.Hour, mr.TTL("gacha:pulls:7"))

	// 重建不会调低更大的值
	v, err = d.PrimePullCounter(ctx, 7, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)
}

func TestCounterExpiry(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestCacheDAO(t)

	_, err := d.PrimePullCounter(ctx, 1, 5)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = d.IncrPullCounter(ctx, 1, 1)
	assert.ErrorIs(t, err, redis.ErrNil)
}

func TestPoolInvalidationBroadcast(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestCacheDAO(t)

	sub, err := d.SubscribePoolInvalidation(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, d.PublishPoolInvalidation(ctx, 42))
	require.NoError(t, d.PublishPoolInvalidation(ctx, 0))

	var got []int64
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-sub.Channel():
			id, ok := ParsePoolInvalidation(msg)
			require.True(t, ok)
			got = append(got, id)
		case <-timeout:
			t.Fatal("timed out waiting for invalidation messages")
		}
	}
	assert.Equal(t, []int64{42, 0}, got)
}

func TestParsePoolInvalidation(t *testing.T) {
	_, ok := ParsePoolInvalidation(redis.Message{Channel: "other:1"})
	assert.False(t, ok)
	_, ok = ParsePoolInvalidation(redis.Message{Channel: poolChannelPrefix + "abc"})
	assert.False(t, ok)
	id, ok := ParsePoolInvalidation(redis.Message{Channel: poolChannelPrefix + "9"})
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}
