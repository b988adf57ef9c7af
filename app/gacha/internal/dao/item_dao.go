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

var itemColumns = []string{"id", "name", "tier", "limited", "version"}

// ItemDAO 物品目录（只读）
type ItemDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewItemDAO 创建物品 DAO
func NewItemDAO(db *postgres.Client, l logger.Logger, m *metrics.GachaMetrics) *ItemDAO {
	return &ItemDAO{
		db:      db,
		logger:  l.Named("dao.item"),
		metrics: m,
	}
}

// GetByID 按 ID 查询物品，不存在时返回 postgres.ErrNoRows
func (d *ItemDAO) GetByID(ctx context.Context, id int64) (item *model.Item, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_item", err == nil || postgres.IsNoRows(err), time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return postgres.QueryOne[model.Item](ctx, d.db, query, args...)
}

// ListByVersions 查询属于指定版本的全部物品，按 ID 升序
func (d *ItemDAO) ListByVersions(ctx context.Context, versions []string) (items []*model.Item, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_items", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"version": versions}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	items, err = postgres.QueryAll[model.Item](ctx, d.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items by versions: %w", err)
	}
	return items, nil
}

// ListByTier 查询指定稀有度的物品，按 ID 升序
func (d *ItemDAO) ListByTier(ctx context.Context, tier model.Tier) (items []*model.Item, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_items", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"tier": int16(tier)}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	items, err = postgres.QueryAll[model.Item](ctx, d.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items by tier: %w", err)
	}
	return items, nil
}
