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

// PullDAO 抽卡流水，只追加
type PullDAO struct {
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewPullDAO 创建抽卡流水 DAO
func NewPullDAO(l logger.Logger, m *metrics.GachaMetrics) *PullDAO {
	return &PullDAO{
		logger:  l.Named("dao.pull"),
		metrics: m,
	}
}

// InsertBatch 在事务中一次写入整批流水，seq 保持抽取顺序，批次内共享 pulled_at
func (d *PullDAO) InsertBatch(ctx context.Context, q postgres.Querier, batch *model.Batch) (err error) {
	if len(batch.Items) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("insert_pulls", err == nil, time.Since(start)) }()

	builder := postgres.QueryBuilder.
		Insert("pull_records").
		Columns("batch_id", "seq", "user_id", "banner_id", "item_id", "pulled_at")
	for i, it := range batch.Items {
		builder = builder.Values(batch.ID, int16(i), batch.UserID, batch.BannerID, it.ID, batch.PulledAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	n, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert pull records: %w", err)
	}
	if n != int64(len(batch.Items)) {
		return fmt.Errorf("inserted %d pull records, want %d", n, len(batch.Items))
	}
	return nil
}

// CountByUser 统计用户的累计抽数，作为计数缓存的权威来源
func (d *PullDAO) CountByUser(ctx context.Context, q postgres.Querier, userID int64) (n int64, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("count_pulls", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select("COUNT(*)").
		From("pull_records").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	n, err = postgres.QueryScalar[int64](ctx, q, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count pulls: %w", err)
	}
	return n, nil
}

// ListByUser 按时间倒序查询用户最近的抽卡流水
func (d *PullDAO) ListByUser(ctx context.Context, q postgres.Querier, userID int64, limit uint64) (records []*model.PullRecord, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_pulls", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select("id", "batch_id", "seq", "user_id", "banner_id", "item_id", "pulled_at").
		From("pull_records").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("pulled_at DESC", "batch_id DESC", "seq ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	records, err = postgres.QueryAll[model.PullRecord](ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pulls: %w", err)
	}
	return records, nil
}
