package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/validator"
)

// Server Web 服务，实现 app.Server
type Server struct {
	engine  *gin.Engine
	config  *Config
	logger  logger.Logger
	server  *http.Server
	limiter *middleware.RateLimiter
	started atomic.Bool
}

// ServerOption Web 服务选项
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics *metrics.HTTPMetrics
	keyFunc middleware.KeyFunc
}

// WithMetrics 挂载 HTTP 指标中间件
func WithMetrics(m *metrics.HTTPMetrics) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

// WithRateLimitKey 自定义限流键，默认按客户端 IP
func WithRateLimitKey(fn middleware.KeyFunc) ServerOption {
	return func(o *serverOptions) { o.keyFunc = fn }
}

// NewServer 创建 Web 服务并挂载基础中间件
func NewServer(cfg *Config, l logger.Logger, opts ...ServerOption) (*Server, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if merged.Port <= 0 || merged.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, merged.Port)
	}
	if l == nil {
		l = logger.Default()
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	gin.SetMode(merged.Mode)
	validator.Init()

	s := &Server{
		engine: gin.New(),
		config: merged,
		logger: l.Named("web.server"),
	}

	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger(l.Named("web.access")))
	s.engine.Use(middleware.Recovery(s.logger))
	if o.metrics != nil {
		s.engine.Use(middleware.Metrics(o.metrics))
	}
	if merged.EnableCORS {
		s.engine.Use(middleware.CORS())
	}
	if merged.RateLimit.RequestsPerSecond > 0 {
		s.limiter = middleware.NewRateLimiter(s.logger, merged.RateLimit)
		s.engine.Use(middleware.RateLimit(s.limiter, o.keyFunc))
	}

	return s, nil
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 异步启动监听
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerAlreadyStarted
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv := s.server
	go func() {
		s.logger.Info("starting http server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop 立即关闭
func (s *Server) Stop() error {
	if s.limiter != nil {
		_ = s.limiter.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// GracefulStop 等待进行中的请求完成，超过 StopTimeout 后强制关闭
func (s *Server) GracefulStop() error {
	if s.limiter != nil {
		_ = s.limiter.Close()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.StopTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("http server exited")
	return nil
}
