package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/engine"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gameconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/handler"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/app"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/otel"
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	"github.com/lk2023060901/xdooria-gacha/pkg/sentry"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
	webmetrics "github.com/lk2023060901/xdooria-gacha/pkg/web/metrics"
)

const appName = "gacha"

func provideBaseApp(cfg *Config, l logger.Logger) *app.BaseApp {
	return app.NewBaseApp(
		app.WithName(appName),
		app.WithLogger(l),
		app.WithStopTimeout(cfg.HTTP.StopTimeout),
	)
}

// providePostgres 连接数据库，按配置建表
func providePostgres(cfg *Config, l logger.Logger) (*postgres.Client, func(), error) {
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			l.Warn("failed to close postgres", "error", err)
		}
	}

	if cfg.Gacha.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dao.EnsureSchema(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		l.Info("database schema ensured")
	}
	return db, cleanup, nil
}

func provideRedis(cfg *Config, l logger.Logger) (*redis.Client, func(), error) {
	rdb, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return rdb, func() {
		if err := rdb.Close(); err != nil {
			l.Warn("failed to close redis", "error", err)
		}
	}, nil
}

func providePrometheus(cfg *Config, l logger.Logger) (*prometheus.Client, error) {
	return prometheus.New(&cfg.Prometheus, l)
}

// provideTracer 启用时替换全局 TracerProvider，退出前刷出未导出的 span
func provideTracer(cfg *Config, l logger.Logger) (*otel.TracerProvider, func(), error) {
	tp, err := otel.New(&cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}
	if tp.IsEnabled() {
		l.Info("tracing enabled", "exporter", tp.Config().ExporterType, "endpoint", tp.Config().Endpoint)
	}
	return tp, func() {
		if err := tp.Close(); err != nil {
			l.Warn("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

func provideSentry(cfg *Config, l logger.Logger) (*sentry.Client, func(), error) {
	client, err := sentry.New(&cfg.Sentry)
	if err != nil {
		return nil, nil, err
	}
	if client.Enabled() {
		l.Info("sentry reporting enabled", "environment", cfg.Sentry.Environment)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("failed to close sentry client", "error", err)
		}
	}, nil
}

// reportTags panic 上报时附带的请求标签
func reportTags(c *gin.Context) map[string]string {
	tags := map[string]string{
		"request_id": middleware.GetRequestID(c),
	}
	if id := c.GetHeader(handler.HeaderUserID); id != "" {
		tags["user_id"] = id
	}
	return tags
}

func providePoolConfig(cfg *Config) *service.PoolConfig {
	return &cfg.Gacha.Pool
}

func provideCacheConfig(cfg *Config) *dao.CacheConfig {
	return &cfg.Gacha.Cache
}

func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.NewSonyflake(cfg.Gacha.IDGen)
}

func provideDefinitions(cfg *Config, l logger.Logger) (*model.Definitions, error) {
	return gameconfig.LoadAchievements(&cfg.Gacha.Achievements, l)
}

// provideRandomSource 默认使用密码学随机源
func provideRandomSource(cfg *Config, l logger.Logger) engine.Source {
	if cfg.Gacha.RandomSeed > 0 {
		l.Warn("using seeded random source, draws are reproducible", "seed", cfg.Gacha.RandomSeed)
		return engine.NewSeededSource(cfg.Gacha.RandomSeed)
	}
	return engine.CryptoSource{}
}

// rateLimitKey 已登录用户按用户限流，匿名请求按 IP
func rateLimitKey(c *gin.Context) string {
	if id := c.GetHeader(handler.HeaderUserID); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

func provideWebServer(
	cfg *Config,
	l logger.Logger,
	hm *webmetrics.HTTPMetrics,
	h *handler.GachaHandler,
	prom *prometheus.Client,
	tp *otel.TracerProvider,
	reporter *sentry.Client,
) (*web.Server, error) {
	srv, err := web.NewServer(&cfg.HTTP, l, web.WithMetrics(hm), web.WithRateLimitKey(rateLimitKey))
	if err != nil {
		return nil, err
	}

	r := srv.Router()
	r.Use(otel.Middleware(tp), sentry.Middleware(reporter, reportTags))
	h.Register(r)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	// 没有独立指标端口时挂在业务端口上
	if !cfg.Prometheus.HTTPServer.Enabled {
		r.GET("/metrics", gin.WrapH(prom.Handler()))
	}
	return srv, nil
}

func provideComponents(
	webServer *web.Server,
	pools *service.PoolService,
	prom *prometheus.Client,
) app.Components {
	return app.Components{
		Servers: []app.Server{
			prom,
			pools, // 订阅卡池失效广播
			webServer,
		},
	}
}
