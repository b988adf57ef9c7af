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

// bannerRow banners 表的一行，numeric 概率列以文本读出后交给 model.ParseRateTable 精确解析
type bannerRow struct {
	ID             int64    `db:"id"`
	Name           string   `db:"name"`
	PickupTopRate  string   `db:"pickup_top_rate"`
	TotalTopRate   string   `db:"total_top_rate"`
	MidRate        string   `db:"mid_rate"`
	LowRate        string   `db:"low_rate"`
	Versions       []string `db:"versions"`
	IncludeLimited bool     `db:"include_limited"`
	PickupIDs      []int64  `db:"pickup_ids"`
	ExcludeIDs     []int64  `db:"exclude_ids"`
}

var bannerColumns = []string{
	"id", "name",
	"pickup_top_rate::text AS pickup_top_rate",
	"total_top_rate::text AS total_top_rate",
	"mid_rate::text AS mid_rate",
	"low_rate::text AS low_rate",
	"versions", "include_limited", "pickup_ids", "exclude_ids",
}

func (r *bannerRow) toModel() (*model.Banner, error) {
	rates, err := model.ParseRateTable(r.PickupTopRate, r.TotalTopRate, r.MidRate, r.LowRate)
	if err != nil {
		return nil, fmt.Errorf("banner %d: %w", r.ID, err)
	}
	return &model.Banner{
		ID:             r.ID,
		Name:           r.Name,
		Rates:          rates,
		Versions:       r.Versions,
		IncludeLimited: r.IncludeLimited,
		PickupIDs:      r.PickupIDs,
		ExcludeIDs:     r.ExcludeIDs,
	}, nil
}

// BannerDAO 卡池配置
type BannerDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewBannerDAO 创建卡池 DAO
func NewBannerDAO(db *postgres.Client, l logger.Logger, m *metrics.GachaMetrics) *BannerDAO {
	return &BannerDAO{
		db:      db,
		logger:  l.Named("dao.banner"),
		metrics: m,
	}
}

// GetByID 查询卡池，不存在时返回 postgres.ErrNoRows；概率表非法时返回 model.ErrConfiguration
func (d *BannerDAO) GetByID(ctx context.Context, id int64) (banner *model.Banner, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_banner", err == nil || postgres.IsNoRows(err), time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select(bannerColumns...).
		From("banners").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	row, err := postgres.QueryOne[bannerRow](ctx, d.db, query, args...)
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListReferencingItem 查询 UP 列表或排除列表中包含指定物品的卡池
func (d *BannerDAO) ListReferencingItem(ctx context.Context, itemID int64) (banners []*model.Banner, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_banners", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select(bannerColumns...).
		From("banners").
		Where(squirrel.Or{
			squirrel.Expr("? = ANY(pickup_ids)", itemID),
			squirrel.Expr("? = ANY(exclude_ids)", itemID),
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := postgres.QueryAll[bannerRow](ctx, d.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list banners: %w", err)
	}

	banners = make([]*model.Banner, 0, len(rows))
	for _, r := range rows {
		b, err := r.toModel()
		if err != nil {
			// 配置错误的卡池仍需参与对账，概率表留空
			d.logger.Warn("banner has invalid rate table", "banner_id", r.ID, "error", err)
			b = &model.Banner{ID: r.ID, Name: r.Name, Versions: r.Versions, IncludeLimited: r.IncludeLimited,
				PickupIDs: r.PickupIDs, ExcludeIDs: r.ExcludeIDs}
		}
		banners = append(banners, b)
	}
	return banners, nil
}

// UpdatePoolRules 更新卡池的 UP 列表与排除列表
func (d *BannerDAO) UpdatePoolRules(ctx context.Context, b *model.Banner) (err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("update_banner", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Update("banners").
		Set("pickup_ids", nonNil(b.PickupIDs)).
		Set("exclude_ids", nonNil(b.ExcludeIDs)).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update banner %d: %w", b.ID, err)
	}
	if n == 0 {
		return postgres.ErrNoRows
	}
	return nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
