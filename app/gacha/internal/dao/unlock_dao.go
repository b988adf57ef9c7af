package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// UnlockDAO 成就解锁记录
type UnlockDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewUnlockDAO 创建成就解锁 DAO
func NewUnlockDAO(db *postgres.Client, l logger.Logger, m *metrics.GachaMetrics) *UnlockDAO {
	return &UnlockDAO{
		db:      db,
		logger:  l.Named("dao.unlock"),
		metrics: m,
	}
}

// ListByUser 查询用户已解锁的成就
func (d *UnlockDAO) ListByUser(ctx context.Context, userID int64) (list []*model.Unlock, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_unlocks", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select("user_id", "achievement_key", "unlocked_at").
		From("achievement_unlocks").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	list, err = postgres.QueryAll[model.Unlock](ctx, d.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	return list, nil
}

// CreateIfAbsent 创建解锁记录，已存在时不做任何修改并返回 false
func (d *UnlockDAO) CreateIfAbsent(ctx context.Context, u *model.Unlock) (created bool, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("insert_unlock", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Insert("achievement_unlocks").
		Columns("user_id", "achievement_key", "unlocked_at").
		Values(u.UserID, u.AchievementKey, u.UnlockedAt).
		Suffix("ON CONFLICT (user_id, achievement_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to create unlock: %w", err)
	}
	return n == 1, nil
}
