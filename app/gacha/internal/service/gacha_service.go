package service

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/engine"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/otel"
)

var tracer = otel.Tracer("github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service")

// 允许的单次抽取数量
const (
	SingleDraw = 1
	MultiDraw  = 10
)

// GachaService 抽卡入口：解析卡池、抽取、落库、评估成就
type GachaService struct {
	pools        *PoolService
	recorder     *PullRecorder
	achievements *AchievementService
	catalog      repository.CatalogRepository
	rng          engine.Source
	logger       logger.Logger
	metrics      *metrics.GachaMetrics
}

// NewGachaService 创建抽卡服务
func NewGachaService(
	pools *PoolService,
	recorder *PullRecorder,
	achievements *AchievementService,
	catalog repository.CatalogRepository,
	rng engine.Source,
	l logger.Logger,
	m *metrics.GachaMetrics,
) *GachaService {
	return &GachaService{
		pools:        pools,
		recorder:     recorder,
		achievements: achievements,
		catalog:      catalog,
		rng:          rng,
		logger:       l.Named("service.gacha"),
		metrics:      m,
	}
}

// PerformDraw 执行一次抽卡
//
// count 只能是 1 或 10。匿名用户只返回抽取结果，不写流水、持有与成就。
// 卡池配置错误、卡池耗尽、落库失败会作为错误返回且没有任何部分写入；
// 成就评估在落库之后进行，评估失败只记录日志，不影响已经成功的抽卡。
func (s *GachaService) PerformDraw(ctx context.Context, actor model.Actor, bannerID int64, count int) (result *model.DrawResult, err error) {
	ctx = logger.WithContextFields(ctx, logger.FieldBannerID, bannerID)
	if actor.Authenticated() {
		ctx = logger.WithContextFields(ctx, logger.FieldUserID, actor.UserID)
	}
	defer func() { s.metrics.RecordDraw(strconv.FormatInt(bannerID, 10), drawResultLabel(err)) }()

	ctx, span := tracer.Start(ctx, "gacha.PerformDraw", otel.WithAttributes(
		otel.Int64("gacha.banner_id", bannerID),
		otel.Int("gacha.count", count),
		otel.Bool("gacha.authenticated", actor.Authenticated()),
	))
	defer func() { otel.End(span, err) }()

	if count != SingleDraw && count != MultiDraw {
		return nil, errors.Wrapf(model.ErrInvalidCount, "count %d", count)
	}

	w, err := s.pools.Weights(ctx, bannerID)
	if err != nil {
		return nil, err
	}
	items, err := engine.DrawMany(count, w, s.rng)
	if err != nil {
		s.logger.WarnContext(ctx, "draw failed", "count", count, "error", err)
		return nil, err
	}

	pool := w.Pool()
	outcome, err := s.recorder.Record(ctx, actor, bannerID, items)
	if err != nil {
		return nil, err
	}

	result = &model.DrawResult{
		BannerID:     bannerID,
		BatchID:      outcome.BatchID,
		Items:        make([]model.DrawnItem, len(items)),
		Achievements: []*model.Achievement{},
	}
	for i, it := range items {
		result.Items[i] = model.DrawnItem{
			Item:         it,
			IsNewlyOwned: outcome.NewlyOwned[i],
			IsPickup:     pool.IsPickup(it.ID),
		}
		s.metrics.RecordItem(it.Tier.String(), count > 1 && i == len(items)-1)
	}

	if actor.Authenticated() {
		result.Achievements = s.evaluate(ctx, actor.UserID, items, outcome)
	}

	s.logger.InfoContext(ctx, "draw completed",
		"count", count,
		"batch_id", outcome.BatchID,
		"achievements", len(result.Achievements),
	)
	return result, nil
}

// evaluate 按运气、里程碑、收集的顺序评估成就，返回本次新解锁的定义
func (s *GachaService) evaluate(ctx context.Context, userID int64, items []*model.Item, outcome *model.BatchOutcome) []*model.Achievement {
	awarded := []*model.Achievement{}

	e, err := s.achievements.NewEvaluator(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "achievement evaluation skipped", "error", err)
		return awarded
	}

	luck, err := e.CheckLuck(ctx, items)
	awarded = append(awarded, luck...)
	if err != nil {
		s.logger.ErrorContext(ctx, "luck achievement check failed", "error", err)
	}

	milestones, err := e.CheckMilestones(ctx, outcome.Total)
	awarded = append(awarded, milestones...)
	if err != nil {
		s.logger.ErrorContext(ctx, "milestone achievement check failed", "error", err)
	}

	if outcome.AnyNewlyOwned() {
		collections, err := e.CheckCollections(ctx)
		awarded = append(awarded, collections...)
		if err != nil {
			s.logger.ErrorContext(ctx, "collection achievement check failed", "error", err)
		}
	}
	return awarded
}

func drawResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrInvalidCount):
		return "invalid_count"
	case errors.Is(err, model.ErrBannerNotFound):
		return "banner_not_found"
	case errors.Is(err, model.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, model.ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, model.ErrPersistence):
		return "persistence_failure"
	default:
		return "error"
	}
}

// PoolInfo 卡池概况，供页面展示
type PoolInfo struct {
	BannerID int64                   `json:"banner_id"`
	Rates    RateInfo                `json:"rates"`
	Floor    RateInfo                `json:"floor_rates"`
	Pools    map[string]CategoryInfo `json:"pools"`
	Err      string                  `json:"error,omitempty"`
}

// RateInfo 各稀有度概率（百分比，十进制字符串）
type RateInfo struct {
	PickupTop string `json:"pickup_top"`
	Top       string `json:"top"`
	Mid       string `json:"mid"`
	Low       string `json:"low"`
}

// CategoryInfo 单个分类的物品与单品权重
type CategoryInfo struct {
	ItemIDs    []int64 `json:"item_ids"`
	ItemWeight float64 `json:"item_weight"`
}

// PoolInfo 返回卡池解析结果与概率
func (s *GachaService) PoolInfo(ctx context.Context, bannerID int64) (*PoolInfo, error) {
	w, err := s.pools.Weights(ctx, bannerID)
	if err != nil {
		return nil, err
	}
	pool := w.Pool()
	std, floor := pool.Rates.Standard(), pool.Rates.Floor()

	info := &PoolInfo{
		BannerID: bannerID,
		Rates: RateInfo{
			PickupTop: pool.Rates.PickupTop().String(),
			Top:       std.Top.String(),
			Mid:       std.Mid.String(),
			Low:       std.Low.String(),
		},
		Floor: RateInfo{
			PickupTop: pool.Rates.PickupTop().String(),
			Top:       floor.Top.String(),
			Mid:       floor.Mid.String(),
			Low:       floor.Low.String(),
		},
		Pools: make(map[string]CategoryInfo, len(model.Categories)),
	}
	for _, c := range model.Categories {
		items := pool.Items(c)
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		info.Pools[c.String()] = CategoryInfo{ItemIDs: ids, ItemWeight: w.ItemWeight(c)}
	}
	if err := w.Err(); err != nil {
		info.Err = err.Error()
	}
	return info, nil
}

// GetItem 查询物品
func (s *GachaService) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	return s.catalog.GetItem(ctx, itemID)
}

// ListItemsByTier 按稀有度列出物品
func (s *GachaService) ListItemsByTier(ctx context.Context, tier model.Tier) ([]*model.Item, error) {
	return s.catalog.ListItemsByTier(ctx, tier)
}

// RecentPulls 用户最近的抽卡流水
func (s *GachaService) RecentPulls(ctx context.Context, userID int64, limit int) ([]*model.PullRecord, error) {
	return s.recorder.RecentPulls(ctx, userID, limit)
}

// LifetimePulls 用户累计抽数
func (s *GachaService) LifetimePulls(ctx context.Context, userID int64) (int64, error) {
	return s.recorder.LifetimePulls(ctx, userID)
}

// ReconcileItem 物品属性变化后的卡池对账，见 PoolService.ReconcileItem
func (s *GachaService) ReconcileItem(ctx context.Context, itemID int64) ([]int64, error) {
	return s.pools.ReconcileItem(ctx, itemID)
}

// OnOwnershipChanged 持有变化后检查收集类成就
func (s *GachaService) OnOwnershipChanged(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	return s.achievements.OnOwnershipChanged(ctx, userID)
}

// InvalidateBanner 卡池配置变化后由目录服务调用
func (s *GachaService) InvalidateBanner(ctx context.Context, bannerID int64) {
	s.pools.InvalidateBanner(ctx, bannerID)
}
