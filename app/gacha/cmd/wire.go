//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/handler"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/app"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/sentry"
	webmetrics "github.com/lk2023060901/xdooria-gacha/pkg/web/metrics"
)

func InitApp(cfg *Config, l logger.Logger) (app.Application, func(), error) {
	panic(wire.Build(
		// 1. 基础框架
		provideBaseApp,
		provideComponents,
		app.Bind,

		// 2. 基础设施
		providePostgres,
		provideRedis,
		providePrometheus,
		provideIDGenerator,
		provideRandomSource,
		provideTracer,
		provideSentry,

		// 3. 指标
		metrics.New,
		webmetrics.New,

		// 4. 数据层
		provideCacheConfig,
		dao.NewItemDAO,
		dao.NewBannerDAO,
		dao.NewPullDAO,
		dao.NewOwnershipDAO,
		dao.NewUnlockDAO,
		dao.NewCacheDAO,

		// 5. 仓储
		repository.NewCatalogRepository,
		repository.NewPullRepository,
		repository.NewAchievementRepository,
		repository.NewPullCounterCache,
		repository.NewPoolEventBus,

		// 6. 成就定义
		provideDefinitions,

		// 7. 业务层
		providePoolConfig,
		service.NewPoolService,
		service.NewPullRecorder,
		service.NewAchievementService,
		service.NewGachaService,

		// 8. 接口层
		handler.NewGachaHandler,
		wire.Bind(new(handler.GachaService), new(*service.GachaService)),
		wire.Bind(new(handler.ErrorReporter), new(*sentry.Client)),
		provideWebServer,
	))
}
