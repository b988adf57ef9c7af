package service

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/engine"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/otel"
	"golang.org/x/sync/singleflight"
)

// PoolConfig 卡池缓存配置
type PoolConfig struct {
	Cache lru.Config `mapstructure:"cache"`
}

// DefaultPoolConfig 默认配置
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Cache: lru.Config{
			MaxSize:         256,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
		},
	}
}

// PoolService 解析并缓存卡池权重
//
// 同一卡池的并发解析合并为一次（singleflight）；卡池或目录变化时通过 InvalidateBanner /
// InvalidateAll 清除本地缓存并经 Redis 广播给其他实例。
type PoolService struct {
	catalog repository.CatalogRepository
	events  repository.PoolEventBus
	cache   *lru.LRU[int64, *engine.Weights]
	group   singleflight.Group
	logger  logger.Logger
	metrics *metrics.GachaMetrics

	// generation 每次失效递增，解析期间发生失效时丢弃解析结果，避免把旧数据写回缓存
	generation atomic.Uint64

	sub    repository.InvalidationSubscription
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewPoolService 创建卡池服务，events 为 nil 时只做本地失效
func NewPoolService(
	cfg *PoolConfig,
	catalog repository.CatalogRepository,
	events repository.PoolEventBus,
	l logger.Logger,
	m *metrics.GachaMetrics,
) *PoolService {
	def := DefaultPoolConfig()
	if cfg == nil {
		cfg = def
	}
	cacheCfg := cfg.Cache
	if cacheCfg.MaxSize <= 0 {
		cacheCfg.MaxSize = def.Cache.MaxSize
	}
	if cacheCfg.DefaultTTL <= 0 {
		cacheCfg.DefaultTTL = def.Cache.DefaultTTL
	}
	return &PoolService{
		catalog: catalog,
		events:  events,
		cache:   lru.New[int64, *engine.Weights](cacheCfg),
		logger:  l.Named("service.pool"),
		metrics: m,
	}
}

// Weights 返回卡池的抽取权重，未命中缓存时从目录解析
func (s *PoolService) Weights(ctx context.Context, bannerID int64) (*engine.Weights, error) {
	if w, ok := s.cache.Get(bannerID); ok {
		s.metrics.RecordPoolCache("hit")
		return w, nil
	}

	// 解析与发起者的取消解耦，等待同一卡池的其他请求不受其影响
	resolveCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatInt(bannerID, 10), func() (any, error) {
		gen := s.generation.Load()
		if w, ok := s.cache.Get(bannerID); ok {
			return w, nil
		}
		w, err := s.resolve(resolveCtx, bannerID)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.cache.Set(bannerID, w)
		}
		return w, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		s.metrics.RecordPoolCache("shared")
	} else {
		s.metrics.RecordPoolCache("miss")
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*engine.Weights), nil
}

func (s *PoolService) resolve(ctx context.Context, bannerID int64) (_ *engine.Weights, err error) {
	ctx, span := tracer.Start(ctx, "gacha.ResolvePool", otel.WithAttributes(otel.Int64("gacha.banner_id", bannerID)))
	defer func() { otel.End(span, err) }()

	banner, err := s.catalog.GetBanner(ctx, bannerID)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.ListItemsByVersions(ctx, banner.Versions)
	if err != nil {
		return nil, errors.Wrapf(err, "load catalog for banner %d", bannerID)
	}

	pool, err := engine.ResolvePool(banner, items)
	if err != nil {
		s.logger.ErrorContext(ctx, "banner configuration rejected", "banner_id", bannerID, "error", err)
		return nil, err
	}

	w := engine.ComputeWeights(pool)
	if err := w.Err(); err != nil {
		s.logger.WarnContext(ctx, "banner pool is exhausted", "banner_id", bannerID, "error", err)
	}
	s.logger.DebugContext(ctx, "banner pool resolved",
		"banner_id", bannerID,
		"pickup", len(pool.Pickup),
		"regular_top", len(pool.RegularTop),
		"mid", len(pool.Mid),
		"low", len(pool.Low),
	)
	return w, nil
}

// InvalidateBanner 清除卡池缓存并通知其他实例
func (s *PoolService) InvalidateBanner(ctx context.Context, bannerID int64) {
	s.invalidateLocal(bannerID)
	s.broadcast(ctx, bannerID)
}

// InvalidateAll 清除全部卡池缓存并通知其他实例
func (s *PoolService) InvalidateAll(ctx context.Context) {
	s.invalidateLocal(0)
	s.broadcast(ctx, 0)
}

func (s *PoolService) invalidateLocal(bannerID int64) {
	s.generation.Add(1)
	if bannerID == 0 {
		s.cache.Clear()
		return
	}
	s.cache.Delete(bannerID)
}

func (s *PoolService) broadcast(ctx context.Context, bannerID int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishInvalidation(ctx, bannerID); err != nil {
		// 其他实例的缓存会在 TTL 后自然过期
		s.logger.WarnContext(ctx, "failed to broadcast pool invalidation", "banner_id", bannerID, "error", err)
	}
}

// ReconcileItem 物品的版本或限定属性变化后由目录服务调用
//
// 对引用该物品的卡池：不再满足版本/限定规则时从排除列表移除；不再满足 UP 条件
// （不是最高稀有度或不在基础池）时从 UP 列表移除。物品已被删除时从两个列表都移除。
// 返回被修改的卡池 ID。物品属性会影响所有卡池的解析结果，因此最后清除全部缓存。
func (s *PoolService) ReconcileItem(ctx context.Context, itemID int64) ([]int64, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil && !errors.Is(err, model.ErrItemNotFound) {
		return nil, err
	}

	banners, err := s.catalog.ListBannersReferencingItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var changed []int64
	for _, b := range banners {
		keepExclude, keepPickup := false, false
		if item != nil {
			keepExclude = b.IsCandidate(item)
			keepPickup = keepExclude && item.Tier == model.TierTop
		}

		dirty := false
		if !keepExclude && slices.Contains(b.ExcludeIDs, itemID) {
			b.ExcludeIDs = removeID(b.ExcludeIDs, itemID)
			dirty = true
		}
		if !keepPickup && slices.Contains(b.PickupIDs, itemID) {
			b.PickupIDs = removeID(b.PickupIDs, itemID)
			dirty = true
		}
		if !dirty {
			continue
		}

		if err := s.catalog.SaveBannerPoolRules(ctx, b); err != nil {
			return changed, errors.Wrapf(err, "save banner %d", b.ID)
		}
		changed = append(changed, b.ID)
		s.logger.InfoContext(ctx, "banner pool rules reconciled",
			"banner_id", b.ID,
			"item_id", itemID,
			"pickup_ids", b.PickupIDs,
			"exclude_ids", b.ExcludeIDs,
		)
	}

	s.InvalidateAll(ctx)
	return changed, nil
}

func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Start 订阅其他实例的失效广播，实现 app.Server
func (s *PoolService) Start() error {
	if s.events == nil {
		return nil
	}
	sub, err := s.events.SubscribeInvalidation(context.Background())
	if err != nil {
		return errors.Wrap(err, "subscribe pool invalidation")
	}
	s.sub = sub

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for id := range sub.C() {
			s.invalidateLocal(id)
			s.logger.Debug("pool invalidated by broadcast", "banner_id", id)
		}
	}()
	s.logger.Info("pool invalidation listener started")
	return nil
}

// Stop 停止订阅并释放缓存，实现 app.Server
func (s *PoolService) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if s.sub != nil {
		err = s.sub.Close()
		s.wg.Wait()
	}
	_ = s.cache.Close()
	return err
}
