package otel

import (
	"errors"
	"time"
)

var (
	ErrInvalidServiceName  = errors.New("otel: service name is required")
	ErrInvalidSamplerRatio = errors.New("otel: sampler ratio must be between 0 and 1")
	ErrUnsupportedExporter = errors.New("otel: unsupported exporter type")
	ErrExporterFailed      = errors.New("otel: failed to create exporter")
	ErrProviderClosed      = errors.New("otel: provider is closed")
)

// Config 追踪配置
//
// 合并默认配置时 false 不会覆盖默认值，所以 Enabled 以调用方传入的为准：
// 配置文件里不写 enabled 就是关闭。
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`

	// Endpoint 导出器端点，OTLP HTTP 默认 localhost:4318，gRPC 为 localhost:4317
	Endpoint     string       `mapstructure:"endpoint"`
	ExporterType ExporterType `mapstructure:"exporter_type"`
	Insecure     bool         `mapstructure:"insecure"`
	// Headers 导出请求附带的头，例如采集端的鉴权 token
	Headers map[string]string `mapstructure:"headers"`

	Sampler     SamplerConfig     `mapstructure:"sampler"`
	BatchExport BatchExportConfig `mapstructure:"batch_export"`

	// Attributes 附加的资源属性
	Attributes map[string]string `mapstructure:"attributes"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeStdout   ExporterType = "stdout" // 调试用
	ExporterTypeNoop     ExporterType = "noop"
)

// SamplerConfig 采样配置
type SamplerConfig struct {
	Type SamplerType `mapstructure:"type"`
	// Ratio 仅 Type 为 ratio 时有效
	Ratio float64 `mapstructure:"ratio"`
}

// SamplerType 采样类型
type SamplerType string

const (
	SamplerTypeAlways SamplerType = "always"
	SamplerTypeNever  SamplerType = "never"
	SamplerTypeRatio  SamplerType = "ratio"
	SamplerTypeParent SamplerType = "parent" // 跟随上游决策，根 span 总是采样
)

// BatchExportConfig 批量导出配置
type BatchExportConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
	MaxQueueSize  int           `mapstructure:"max_queue_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		ServiceName:  "gacha",
		Endpoint:     "localhost:4318",
		ExporterType: ExporterTypeOTLPHTTP,
		Insecure:     true,
		Sampler: SamplerConfig{
			Type:  SamplerTypeParent,
			Ratio: 1.0,
		},
		BatchExport: BatchExportConfig{
			BatchSize:     512,
			ExportTimeout: 30 * time.Second,
			MaxQueueSize:  2048,
			BatchTimeout:  5 * time.Second,
		},
		Attributes:      make(map[string]string),
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrInvalidServiceName
	}
	if c.Sampler.Type == SamplerTypeRatio && (c.Sampler.Ratio < 0 || c.Sampler.Ratio > 1) {
		return ErrInvalidSamplerRatio
	}
	switch c.ExporterType {
	case ExporterTypeOTLPHTTP, ExporterTypeOTLPGRPC, ExporterTypeStdout, ExporterTypeNoop:
		return nil
	default:
		return ErrUnsupportedExporter
	}
}
