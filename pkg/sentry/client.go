package sentry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
)

// Client Sentry 客户端，实现 app.Closer
//
// 未配置 DSN 时所有上报方法都是空操作，调用方不需要判断是否启用。
type Client struct {
	hub    *sentry.Hub // 隔离的 Hub，不污染全局
	config *Config
	closed atomic.Bool

	stats struct {
		captured atomic.Uint64
		dropped  atomic.Uint64
	}
}

// Stats 上报统计
type Stats struct {
	EventsCaptured uint64
	EventsDropped  uint64
}

// Option 调整底层 SDK 选项
type Option func(*sentry.ClientOptions)

// WithBeforeSend 事件发送前的回调，返回 nil 时丢弃事件
func WithBeforeSend(fn func(*sentry.Event) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return fn(e)
		}
	}
}

// New 创建 Sentry 客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: merged}
	if !merged.Enabled() {
		return c, nil
	}

	clientOpts := merged.toClientOptions()
	for _, opt := range opts {
		opt(&clientOpts)
	}
	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	c.hub = sentry.NewHub(client, sentry.NewScope())
	c.hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range merged.Tags {
			scope.SetTag(k, v)
		}
	})
	return c, nil
}

// Enabled 是否会真正上报
func (c *Client) Enabled() bool {
	return c != nil && c.hub != nil && !c.closed.Load()
}

// CaptureError 上报错误
//
// 报告由 cockroachdb/errors 构建：包含错误链上的类型、位置与安全细节，
// 消息中的用户数据按 redact 规则脱敏。
func (c *Client) CaptureError(ctx context.Context, err error, tags map[string]string) *sentry.EventID {
	if !c.Enabled() || err == nil {
		return nil
	}

	event, extra := errors.BuildSentryReport(err)
	for k, v := range extra {
		if event.Extra == nil {
			event.Extra = make(map[string]interface{}, len(extra))
		}
		event.Extra[k] = v
	}

	hub := c.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	return c.count(hub.Client().CaptureEvent(event, &sentry.EventHint{Context: ctx, OriginalException: err}, hub.Scope()))
}

// Report 上报错误，忽略事件 ID
func (c *Client) Report(ctx context.Context, err error, tags map[string]string) {
	c.CaptureError(ctx, err, tags)
}

// CapturePanic 上报 recover 得到的 panic
func (c *Client) CapturePanic(ctx context.Context, recovered any, tags map[string]string) *sentry.EventID {
	if !c.Enabled() || recovered == nil {
		return nil
	}

	hub := c.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	return c.count(hub.RecoverWithContext(ctx, recovered))
}

func (c *Client) count(id *sentry.EventID) *sentry.EventID {
	if id != nil && *id != "" {
		c.stats.captured.Add(1)
	} else {
		c.stats.dropped.Add(1)
	}
	return id
}

// Flush 等待事件发送完成
func (c *Client) Flush(timeout time.Duration) bool {
	if c == nil || c.hub == nil {
		return true
	}
	return c.hub.Flush(timeout)
}

// Close 刷新并关闭客户端
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	if c.hub != nil {
		c.hub.Flush(c.config.ShutdownTimeout)
	}
	return nil
}

// Stats 上报统计
func (c *Client) Stats() Stats {
	return Stats{
		EventsCaptured: c.stats.captured.Load(),
		EventsDropped:  c.stats.dropped.Load(),
	}
}
