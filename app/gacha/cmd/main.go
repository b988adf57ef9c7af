package main

import (
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gameconfig"
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
)

// Config 抽卡服务的完整配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// PostgreSQL 配置
	Database postgres.Config `mapstructure:"database"`

	// Redis 配置（累计抽数缓存、卡池失效广播）
	Redis redis.Config `mapstructure:"redis"`

	// HTTP 服务配置
	HTTP web.Config `mapstructure:"http"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 链路追踪，不配置时关闭
	Tracing otel.Config `mapstructure:"tracing"`

	// 错误上报，DSN 为空时关闭
	Sentry sentry.Config `mapstructure:"sentry"`

	// 业务配置
	Gacha GachaConfig `mapstructure:"gacha"`
}

// GachaConfig 抽卡业务配置
type GachaConfig struct {
	Pool         service.PoolConfig           `mapstructure:"pool"`
	Cache        dao.CacheConfig              `mapstructure:"cache"`
	Achievements gameconfig.AchievementConfig `mapstructure:"achievements"`
	IDGen        idgen.Config                 `mapstructure:"idgen"`

	// RandomSeed 大于 0 时使用固定种子的随机源，用于压测和复现，线上保持 0
	RandomSeed uint64 `mapstructure:"random_seed"`

	// AutoMigrate 启动时创建缺失的表
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

func main() {
	var cfg Config

	// 1. 加载配置
	if err := app.LoadConfig(&cfg); err != nil {
		panic(err)
	}

	// 2. 初始化主日志
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}

	// 3. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 4. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
