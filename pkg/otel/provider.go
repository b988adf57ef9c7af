package otel

import (
	"context"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider 追踪提供者，实现 app.Closer
//
// 启用时会替换全局 TracerProvider 与传播器，业务代码通过 Tracer 获取的 tracer
// 会自动指向它。
type TracerProvider struct {
	config     *Config
	provider   *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
	closed     atomic.Bool
}

// Option 追踪提供者选项
type Option func(*options)

type options struct {
	processors []sdktrace.SpanProcessor
}

// WithSpanProcessor 额外挂载 SpanProcessor，导出器为 noop 时也会创建 SDK provider
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.processors = append(o.processors, sp)
	}
}

// New 创建追踪提供者
func New(cfg *Config, opts ...Option) (*TracerProvider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// 合并配置
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}

	// 处理 Enabled 字段
	if cfg != nil && !cfg.Enabled {
		newCfg.Enabled = false
	}

	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	propagator := NewCompositeTextMapPropagator()

	// 如果未启用，返回 noop provider
	if !newCfg.Enabled {
		return &TracerProvider{
			config:     newCfg,
			propagator: propagator,
		}, nil
	}

	// 创建导出器
	exporter, err := createExporter(context.Background(), newCfg)
	if err != nil {
		return nil, err
	}

	// 如果是 noop 导出器且没有额外的 processor，返回 noop provider
	if exporter == nil && len(o.processors) == 0 {
		return &TracerProvider{
			config:     newCfg,
			propagator: propagator,
		}, nil
	}

	// 创建资源
	res, err := createResource(newCfg)
	if err != nil {
		return nil, err
	}

	// 创建采样器
	sampler := createSampler(newCfg.Sampler)

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(newCfg.BatchExport.BatchTimeout),
			sdktrace.WithExportTimeout(newCfg.BatchExport.ExportTimeout),
			sdktrace.WithMaxExportBatchSize(newCfg.BatchExport.BatchSize),
			sdktrace.WithMaxQueueSize(newCfg.BatchExport.MaxQueueSize),
		))
	}
	for _, sp := range o.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(sp))
	}
	provider := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagator)

	return &TracerProvider{
		config:     newCfg,
		provider:   provider,
		propagator: propagator,
	}, nil
}

// createResource 创建资源
func createResource(cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	// 添加自定义属性
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		attrs...,
	), nil
}

// createSampler 创建采样器
func createSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerTypeAlways:
		return sdktrace.AlwaysSample()
	case SamplerTypeNever:
		return sdktrace.NeverSample()
	case SamplerTypeRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	case SamplerTypeParent:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// Tracer 获取指定名称的 Tracer
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return p.Provider().Tracer(name, opts...)
}

// Provider 获取底层 TracerProvider，未启用时为 noop
func (p *TracerProvider) Provider() trace.TracerProvider {
	if p.provider == nil {
		return noop.NewTracerProvider()
	}
	return p.provider
}

// Propagator 上下文传播器
func (p *TracerProvider) Propagator() propagation.TextMapPropagator {
	return p.propagator
}

// Start 开始一个新的 Span
func (p *TracerProvider) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer(p.config.ServiceName).Start(ctx, spanName, opts...)
}

// Shutdown 关闭提供者
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return ErrProviderClosed
	}

	if p.provider == nil {
		return nil
	}

	return p.provider.Shutdown(ctx)
}

// Close 关闭提供者（使用默认超时）
func (p *TracerProvider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
	defer cancel()

	return p.Shutdown(ctx)
}

// ForceFlush 强制刷新
func (p *TracerProvider) ForceFlush(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.ForceFlush(ctx)
}

// IsClosed 是否已关闭
func (p *TracerProvider) IsClosed() bool {
	return p.closed.Load()
}

// IsEnabled 是否启用
func (p *TracerProvider) IsEnabled() bool {
	return p.config.Enabled && p.provider != nil
}

// Config 获取配置
func (p *TracerProvider) Config() *Config {
	return p.config
}
