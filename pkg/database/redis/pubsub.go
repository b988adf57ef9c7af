package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publish 发布消息到频道，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	n, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, fmt.Errorf("publish failed: %w", err)
	}
	return n, nil
}

// Subscription 模式订阅句柄
type Subscription struct {
	ps *redis.PubSub
	ch chan Message
}

// PSubscribe 订阅匹配模式的频道，返回前确认订阅已生效
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	ps := c.rdb.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe failed: %w", err)
	}

	sub := &Subscription{ps: ps, ch: make(chan Message, 64)}
	go sub.forward()
	return sub, nil
}

func (s *Subscription) forward() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		s.ch <- Message{Channel: msg.Channel, Pattern: msg.Pattern, Payload: msg.Payload}
	}
}

// Channel 返回消息通道，Close 后通道关闭
func (s *Subscription) Channel() <-chan Message {
	return s.ch
}

// Close 取消订阅
func (s *Subscription) Close() error {
	return s.ps.Close()
}
