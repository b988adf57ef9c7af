package repository

import (
	"context"
	"errors"

	cerrors "github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// PullCounterCache 用户累计抽数缓存，流水是权威来源，缓存只是加速
//
// 计数器不存在（过期或被淘汰）时 Incr / Get 返回标记为 model.ErrCacheInconsistency 的错误。
type PullCounterCache interface {
	// Incr 只对已存在的计数器自增，计数器不存在或处于重算窗口内时返回 model.ErrCacheInconsistency
	Incr(ctx context.Context, userID int64, delta int64) (int64, error)
	Get(ctx context.Context, userID int64) (int64, error)
	// Prime 用流水计数重建，只调高不调低，返回写入后的值，同时开启重算窗口
	Prime(ctx context.Context, userID int64, value int64) (int64, error)
}

// InvalidationSubscription 卡池失效订阅，C 中的 0 表示全部卡池
type InvalidationSubscription interface {
	C() <-chan int64
	Close() error
}

// PoolEventBus 跨实例广播卡池缓存失效
type PoolEventBus interface {
	PublishInvalidation(ctx context.Context, bannerID int64) error
	SubscribeInvalidation(ctx context.Context) (InvalidationSubscription, error)
}

type cacheRepositoryImpl struct {
	cacheDAO *dao.CacheDAO
	logger   logger.Logger
}

// NewPullCounterCache 创建基于 Redis 的累计抽数缓存
func NewPullCounterCache(cacheDAO *dao.CacheDAO, l logger.Logger) PullCounterCache {
	return &cacheRepositoryImpl{cacheDAO: cacheDAO, logger: l.Named("repository.counter")}
}

// NewPoolEventBus 创建基于 Redis pub/sub 的卡池事件总线
func NewPoolEventBus(cacheDAO *dao.CacheDAO, l logger.Logger) PoolEventBus {
	return &cacheRepositoryImpl{cacheDAO: cacheDAO, logger: l.Named("repository.pool_events")}
}

func counterErr(err error, userID int64) error {
	if errors.Is(err, redis.ErrNil) {
		return cerrors.Wrapf(model.ErrCacheInconsistency, "pull counter for user %d is missing or recounting", userID)
	}
	return err
}

func (r *cacheRepositoryImpl) Incr(ctx context.Context, userID int64, delta int64) (int64, error) {
	v, err := r.cacheDAO.IncrPullCounter(ctx, userID, delta)
	if err != nil {
		return 0, counterErr(err, userID)
	}
	return v, nil
}

func (r *cacheRepositoryImpl) Get(ctx context.Context, userID int64) (int64, error) {
	v, err := r.cacheDAO.GetPullCounter(ctx, userID)
	if err != nil {
		return 0, counterErr(err, userID)
	}
	return v, nil
}

func (r *cacheRepositoryImpl) Prime(ctx context.Context, userID int64, value int64) (int64, error) {
	return r.cacheDAO.PrimePullCounter(ctx, userID, value)
}

func (r *cacheRepositoryImpl) PublishInvalidation(ctx context.Context, bannerID int64) error {
	return r.cacheDAO.PublishPoolInvalidation(ctx, bannerID)
}

func (r *cacheRepositoryImpl) SubscribeInvalidation(ctx context.Context) (InvalidationSubscription, error) {
	sub, err := r.cacheDAO.SubscribePoolInvalidation(ctx)
	if err != nil {
		return nil, err
	}
	s := &invalidationSubscription{sub: sub, ch: make(chan int64, 16)}
	go s.forward(r.logger)
	return s, nil
}

type invalidationSubscription struct {
	sub *redis.Subscription
	ch  chan int64
}

func (s *invalidationSubscription) forward(l logger.Logger) {
	defer close(s.ch)
	for msg := range s.sub.Channel() {
		id, ok := dao.ParsePoolInvalidation(msg)
		if !ok {
			l.Warn("ignoring malformed pool invalidation", "channel", msg.Channel)
			continue
		}
		s.ch <- id
	}
}

func (s *invalidationSubscription) C() <-chan int64 { return s.ch }

func (s *invalidationSubscription) Close() error { return s.sub.Close() }
