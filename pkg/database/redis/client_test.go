package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(&Config{Standalone: &NodeConfig{Host: mr.Host(), Port: port}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestConfigValidate(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
	assert.ErrorIs(t, (&Config{}).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{Standalone: &NodeConfig{}, Cluster: &ClusterConfig{Addrs: []string{"a:1"}}}).Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{Cluster: &ClusterConfig{}}).Validate(), ErrInvalidConfig)
	assert.NoError(t, (&Config{Cluster: &ClusterConfig{Addrs: []string{"a:1"}}}).Validate())
}

func TestStringCommands(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNil)
	_, err = c.GetInt64(ctx, "missing")
	assert.ErrorIs(t, err, ErrNil)

	require.NoError(t, c.Set(ctx, "k", 41, time.Minute))
	n, err := c.IncrBy(ctx, "k", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	v, err := c.GetInt64(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	ttl, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	deleted, err := c.Del(ctx, "k", "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	_, err = c.TTL(ctx, "k")
	assert.ErrorIs(t, err, ErrNil)
}

func TestIncrByIfExists(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.IncrByIfExists(ctx, "counter", 10, time.Hour)
	assert.ErrorIs(t, err, ErrNil)
	assert.False(t, mr.Exists("counter"))

	require.NoError(t, c.Set(ctx, "counter", 5, 0))
	n, err := c.IncrByIfExists(ctx, "counter", 10, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 15, n)
	assert.Greater(t, mr.TTL("counter"), time.Duration(0))
}

func TestSetMax(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	n, err := c.SetMax(ctx, "counter", 7, time.Hour, "", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	n, err = c.SetMax(ctx, "counter", 3, time.Hour, "", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n, "smaller value never lowers the counter")

	n, err = c.SetMax(ctx, "counter", 12, 0, "", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
}

func TestSetMaxGuard(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	n, err := c.SetMax(ctx, "counter", 20, time.Hour, "counter:guard", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 20, n)
	assert.True(t, mr.Exists("counter:guard"))

	_, err = c.IncrByIfExists(ctx, "counter", 10, time.Hour, "counter:guard")
	assert.ErrorIs(t, err, ErrNil, "guard blocks the increment")
	v, err := c.GetInt64(ctx, "counter")
	require.NoError(t, err)
	assert.EqualValues(t, 20, v)

	// 已存在的守卫不续期
	mr.FastForward(40 * time.Second)
	_, err = c.SetMax(ctx, "counter", 25, time.Hour, "counter:guard", time.Minute)
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)
	assert.False(t, mr.Exists("counter:guard"))

	n, err = c.IncrByIfExists(ctx, "counter", 10, time.Hour, "counter:guard")
	require.NoError(t, err)
	assert.EqualValues(t, 35, n)

	_, err = c.SetMax(ctx, "counter", 1, time.Hour, "counter:guard", 0)
	assert.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := c.PSubscribe(ctx, "gacha:events:*")
	require.NoError(t, err)
	defer sub.Close()

	receivers, err := c.Publish(ctx, "gacha:events:banner", "3")
	require.NoError(t, err)
	assert.EqualValues(t, 1, receivers)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "gacha:events:banner", msg.Channel)
		assert.Equal(t, "gacha:events:*", msg.Pattern)
		assert.Equal(t, "3", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
