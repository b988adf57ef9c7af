package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/otel"
)

// PullRecorder 把一批抽卡结果落库并维护累计抽数缓存
//
// 流水与持有记录在同一个事务内写入，提交后才更新缓存。缓存缺失时从流水统计重建，
// 重建后的重算窗口内自增被拒绝、一律改为重新统计，避免提交早于统计的批次再被自增一次。
// 缓存可能暂时偏小（自增尚未完成或丢失）；需要精确值时用 VerifiedLifetimePulls 以流水为准校正。
type PullRecorder struct {
	pulls   repository.PullRepository
	counter repository.PullCounterCache
	ids     idgen.Generator
	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewPullRecorder 创建抽卡记录器
func NewPullRecorder(
	pulls repository.PullRepository,
	counter repository.PullCounterCache,
	ids idgen.Generator,
	l logger.Logger,
	m *metrics.GachaMetrics,
) *PullRecorder {
	return &PullRecorder{
		pulls:   pulls,
		counter: counter,
		ids:     ids,
		now:     time.Now,
		logger:  l.Named("service.pull_recorder"),
		metrics: m,
	}
}

// Record 持久化一批抽卡结果
//
// 匿名用户不产生任何持久化副作用。事务失败时返回标记为 model.ErrPersistence 的错误，
// 此时计数缓存不变。
func (r *PullRecorder) Record(ctx context.Context, actor model.Actor, bannerID int64, items []*model.Item) (_ *model.BatchOutcome, err error) {
	if !actor.Authenticated() {
		return &model.BatchOutcome{NewlyOwned: make([]bool, len(items)), Total: -1}, nil
	}

	ctx, span := tracer.Start(ctx, "gacha.RecordBatch", otel.WithAttributes(otel.Int("gacha.batch_size", len(items))))
	defer func() { otel.End(span, err) }()

	batchID, err := r.ids.NextID()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "allocate batch id"), model.ErrPersistence)
	}

	batch := &model.Batch{
		ID:       batchID,
		UserID:   actor.UserID,
		BannerID: bannerID,
		Items:    items,
		PulledAt: r.now().UTC(),
	}
	newlyOwned, err := r.pulls.RecordBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	total := r.bump(ctx, actor.UserID, int64(len(items)))
	r.logger.DebugContext(ctx, "pull batch recorded",
		"batch_id", batchID,
		"size", len(items),
		"lifetime_pulls", total,
	)
	return &model.BatchOutcome{BatchID: batchID, NewlyOwned: newlyOwned, Total: total}, nil
}

// bump 提交后给缓存加上本批数量；缓存缺失、处于重算窗口或自增失败时从流水重算并重建
func (r *PullRecorder) bump(ctx context.Context, userID, delta int64) int64 {
	v, err := r.counter.Incr(ctx, userID, delta)
	if err == nil {
		return v
	}
	r.noteInconsistency(ctx, userID, err)

	total, err := r.repair(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "pull counter repair failed", "user_id", userID, "error", err)
		return -1
	}
	return total
}

// LifetimePulls 返回累计抽数，优先读缓存，缓存缺失时从流水重算并重建
func (r *PullRecorder) LifetimePulls(ctx context.Context, userID int64) (int64, error) {
	v, err := r.counter.Get(ctx, userID)
	if err == nil {
		return v, nil
	}
	r.noteInconsistency(ctx, userID, err)
	return r.repair(ctx, userID)
}

// VerifiedLifetimePulls 以流水为准返回累计抽数，缓存与之不一致时校正缓存
//
// 先读缓存再统计流水：缓存值里的每一次自增都发生在对应事务提交之后，因而都已计入统计结果。
// 缓存偏大说明重复计数，用差值自增调低，期间并发的自增不会丢失；
// 缓存偏小可能只是自增尚未完成，只做只增的重建，由重算窗口吸收那些迟到的自增。
func (r *PullRecorder) VerifiedLifetimePulls(ctx context.Context, userID int64) (int64, error) {
	cached, cacheErr := r.counter.Get(ctx, userID)

	n, err := r.pulls.CountPulls(ctx, userID)
	if err != nil {
		return 0, err
	}

	switch {
	case cacheErr != nil:
		r.noteInconsistency(ctx, userID, cacheErr)
		if _, err := r.counter.Prime(ctx, userID, n); err != nil {
			r.logger.WarnContext(ctx, "failed to prime pull counter", "user_id", userID, "error", err)
		}
	case cached > n:
		r.metrics.RecordCounterRepair("drift")
		r.logger.WarnContext(ctx, "pull counter drifted from log",
			"user_id", userID,
			"cached", cached,
			"log", n,
		)
		if _, err := r.counter.Incr(ctx, userID, n-cached); err != nil {
			r.logger.WarnContext(ctx, "failed to correct pull counter", "user_id", userID, "error", err)
		}
	case cached < n:
		r.metrics.RecordCounterRepair("behind")
		r.logger.DebugContext(ctx, "pull counter behind log",
			"user_id", userID,
			"cached", cached,
			"log", n,
		)
		if _, err := r.counter.Prime(ctx, userID, n); err != nil {
			r.logger.WarnContext(ctx, "failed to prime pull counter", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

// repair 从流水统计并以只增方式重建缓存，幂等
func (r *PullRecorder) repair(ctx context.Context, userID int64) (int64, error) {
	n, err := r.pulls.CountPulls(ctx, userID)
	if err != nil {
		return 0, err
	}
	v, err := r.counter.Prime(ctx, userID, n)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to prime pull counter", "user_id", userID, "error", err)
		return n, nil
	}
	return v, nil
}

func (r *PullRecorder) noteInconsistency(ctx context.Context, userID int64, err error) {
	reason := "error"
	if errors.Is(err, model.ErrCacheInconsistency) {
		reason = "missing"
	}
	r.metrics.RecordCounterRepair(reason)
	r.logger.InfoContext(ctx, "pull counter unavailable, recomputing from log",
		"user_id", userID,
		"reason", reason,
		"error", err,
	)
}

// RecentPulls 最近的抽卡流水
func (r *PullRecorder) RecentPulls(ctx context.Context, userID int64, limit int) ([]*model.PullRecord, error) {
	return r.pulls.RecentPulls(ctx, userID, limit)
}
