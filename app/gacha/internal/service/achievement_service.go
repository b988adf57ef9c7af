package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// AchievementService 成就规则引擎
type AchievementService struct {
	defs     *model.Definitions
	unlocks  repository.AchievementRepository
	pulls    repository.PullRepository
	recorder *PullRecorder
	now      func() time.Time
	logger   logger.Logger
	metrics  *metrics.GachaMetrics
}

// NewAchievementService 创建成就服务，defs 为启动时加载的只读定义
func NewAchievementService(
	defs *model.Definitions,
	unlocks repository.AchievementRepository,
	pulls repository.PullRepository,
	recorder *PullRecorder,
	l logger.Logger,
	m *metrics.GachaMetrics,
) *AchievementService {
	return &AchievementService{
		defs:     defs,
		unlocks:  unlocks,
		pulls:    pulls,
		recorder: recorder,
		now:      time.Now,
		logger:   l.Named("service.achievement"),
		metrics:  m,
	}
}

// Evaluator 针对单个用户的一次成就评估
//
// 创建时读取一次已解锁集合，之后的判断都基于这个快照，新解锁的 key 会加入快照，
// 同一次评估中不会重复发放。
type Evaluator struct {
	svc      *AchievementService
	userID   int64
	unlocked map[string]struct{}
	verified *int64 // 已按流水校验过的累计抽数
}

// NewEvaluator 为用户创建评估器
func (s *AchievementService) NewEvaluator(ctx context.Context, userID int64) (*Evaluator, error) {
	keys, err := s.unlocks.UnlockedKeys(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "load unlocked achievements for user %d", userID)
	}
	unlocked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		unlocked[k] = struct{}{}
	}
	return &Evaluator{svc: s, userID: userID, unlocked: unlocked}, nil
}

// Has 快照中是否已解锁
func (e *Evaluator) Has(key string) bool {
	_, ok := e.unlocked[key]
	return ok
}

// award 发放成就；已持有、定义缺失或并发请求已写入时返回 nil
func (e *Evaluator) award(ctx context.Context, key string) (*model.Achievement, error) {
	if e.Has(key) {
		return nil, nil
	}

	def, ok := e.svc.defs.Get(key)
	if !ok {
		e.svc.logger.ErrorContext(ctx, "achievement rule references unknown definition",
			"key", key,
			"user_id", e.userID,
			"error", errors.Wrapf(model.ErrUnknownAchievement, "key %q", key),
		)
		return nil, nil
	}

	created, err := e.svc.unlocks.CreateUnlock(ctx, &model.Unlock{
		UserID:         e.userID,
		AchievementKey: key,
		UnlockedAt:     e.svc.now().UTC(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unlock %s", key)
	}
	e.unlocked[key] = struct{}{}
	if !created {
		return nil, nil
	}

	e.svc.metrics.RecordAchievement(string(def.Category))
	e.svc.logger.InfoContext(ctx, "achievement unlocked", "user_id", e.userID, "key", key, "name", def.Name)
	return def, nil
}

// CheckLuck 运气类：统计本批最高稀有度数量，每条规则独立判断
func (e *Evaluator) CheckLuck(ctx context.Context, items []*model.Item) ([]*model.Achievement, error) {
	top := 0
	for _, it := range items {
		if it.Tier == model.TierTop {
			top++
		}
	}

	var awarded []*model.Achievement
	for _, rule := range e.svc.defs.LuckRules() {
		if top < rule.MinTopTier {
			continue
		}
		def, err := e.award(ctx, rule.Key)
		if err != nil {
			return awarded, err
		}
		if def != nil {
			awarded = append(awarded, def)
		}
	}
	return awarded, nil
}

// CheckMilestones 里程碑类：按阈值从低到高判断
//
// total 是缓存给出的累计抽数（可能偏大），达到阈值时先按流水校验再发放；
// total < 0 表示缓存不可用，直接以流水为准。校验之后的阈值都以校验值判断。
func (e *Evaluator) CheckMilestones(ctx context.Context, total int64) ([]*model.Achievement, error) {
	var awarded []*model.Achievement
	for _, rule := range e.svc.defs.MilestoneRules() {
		if e.Has(rule.Key) {
			continue
		}
		if total >= 0 && total < rule.Pulls {
			break
		}
		verified, err := e.verifiedPulls(ctx)
		if err != nil {
			return awarded, err
		}
		total = verified
		if verified < rule.Pulls {
			break
		}
		def, err := e.award(ctx, rule.Key)
		if err != nil {
			return awarded, err
		}
		if def != nil {
			awarded = append(awarded, def)
		}
	}
	return awarded, nil
}

func (e *Evaluator) verifiedPulls(ctx context.Context) (int64, error) {
	if e.verified != nil {
		return *e.verified, nil
	}
	n, err := e.svc.recorder.VerifiedLifetimePulls(ctx, e.userID)
	if err != nil {
		return 0, err
	}
	e.verified = &n
	return n, nil
}

// CheckCollections 收集类：所需物品全部持有时发放，已解锁的不会因持有变化而撤销
func (e *Evaluator) CheckCollections(ctx context.Context) ([]*model.Achievement, error) {
	var pending []*model.Achievement
	for _, def := range e.svc.defs.Collections() {
		if !e.Has(def.Key) {
			pending = append(pending, def)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	owned, err := e.svc.pulls.OwnedItems(ctx, e.userID)
	if err != nil {
		return nil, errors.Wrapf(err, "load ownership for user %d", e.userID)
	}

	var awarded []*model.Achievement
	for _, def := range pending {
		if !ownsAll(owned, def.RequiredItems) {
			continue
		}
		got, err := e.award(ctx, def.Key)
		if err != nil {
			return awarded, err
		}
		if got != nil {
			awarded = append(awarded, got)
		}
	}
	return awarded, nil
}

func ownsAll(owned map[int64]struct{}, required []int64) bool {
	for _, id := range required {
		if _, ok := owned[id]; !ok {
			return false
		}
	}
	return true
}

// OnOwnershipChanged 用户持有集合变化（外部事件）时检查收集类成就
func (s *AchievementService) OnOwnershipChanged(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	if userID <= 0 {
		return nil, nil
	}
	e, err := s.NewEvaluator(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.CheckCollections(ctx)
}
