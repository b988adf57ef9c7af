package prometheus

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client 持有独立的 Registry，业务指标都注册在这里
type Client struct {
	config     *Config
	registry   *prometheus.Registry
	logger     logger.Logger
	httpServer *http.Server
	closed     atomic.Bool
}

// New 创建 Prometheus 客户端
func New(cfg *Config, l logger.Logger) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNoop()
	}

	c := &Client{
		config:   merged,
		registry: prometheus.NewRegistry(),
		logger:   l.Named("prometheus"),
	}
	if merged.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if merged.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c, nil
}

// Registry 返回底层 Registry
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回指标 HTTP Handler，可以挂到业务 HTTP 服务上
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// NewCounterVec 创建并注册 CounterVec
func (c *Client) NewCounterVec(name, help string, labels []string) (*prometheus.CounterVec, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	if err := c.registry.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewHistogramVec 创建并注册 HistogramVec，buckets 为空时使用默认桶
func (c *Client) NewHistogramVec(name, help string, labels []string, buckets []float64) (*prometheus.HistogramVec, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	if err := c.registry.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewGaugeVec 创建并注册 GaugeVec
func (c *Client) NewGaugeVec(name, help string, labels []string) (*prometheus.GaugeVec, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	if err := c.registry.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Start 启动独立指标端口，实现 app.Server；未启用时直接返回
func (c *Client) Start() error {
	if !c.config.HTTPServer.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.HTTPServer.Path, c.Handler())
	c.httpServer = &http.Server{
		Addr:         c.config.HTTPServer.Addr,
		Handler:      mux,
		ReadTimeout:  c.config.HTTPServer.Timeout,
		WriteTimeout: c.config.HTTPServer.Timeout,
	}

	srv := c.httpServer
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics http server stopped", "addr", srv.Addr, "error", err)
		}
	}()
	c.logger.Info("metrics http server started", "addr", srv.Addr, "path", c.config.HTTPServer.Path)
	return nil
}

// Stop 关闭指标端口，实现 app.Server
func (c *Client) Stop() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	if c.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.httpServer.Shutdown(ctx)
}
