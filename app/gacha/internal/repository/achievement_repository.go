package repository

import (
	"context"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// AchievementRepository 成就解锁记录
type AchievementRepository interface {
	// UnlockedKeys 用户已解锁的成就 key
	UnlockedKeys(ctx context.Context, userID int64) ([]string, error)
	// CreateUnlock 不存在时创建，已存在（并发请求抢先写入）时返回 false
	CreateUnlock(ctx context.Context, u *model.Unlock) (bool, error)
}

type achievementRepositoryImpl struct {
	unlockDAO *dao.UnlockDAO
	logger    logger.Logger
}

// NewAchievementRepository 创建成就仓储
func NewAchievementRepository(unlockDAO *dao.UnlockDAO, l logger.Logger) AchievementRepository {
	return &achievementRepositoryImpl{
		unlockDAO: unlockDAO,
		logger:    l.Named("repository.achievement"),
	}
}

func (r *achievementRepositoryImpl) UnlockedKeys(ctx context.Context, userID int64) ([]string, error) {
	list, err := r.unlockDAO.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(list))
	for _, u := range list {
		keys = append(keys, u.AchievementKey)
	}
	return keys, nil
}

func (r *achievementRepositoryImpl) CreateUnlock(ctx context.Context, u *model.Unlock) (bool, error) {
	return r.unlockDAO.CreateIfAbsent(ctx, u)
}
