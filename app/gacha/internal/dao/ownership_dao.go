package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// OwnershipDAO 用户物品持有
type OwnershipDAO struct {
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

// NewOwnershipDAO 创建持有 DAO
func NewOwnershipDAO(l logger.Logger, m *metrics.GachaMetrics) *OwnershipDAO {
	return &OwnershipDAO{
		logger:  l.Named("dao.ownership"),
		metrics: m,
	}
}

// UpsertBatch 按抽取顺序逐个 upsert 持有记录：不存在时以 count=1 创建，存在时 count+1
//
// 返回值与 itemIDs 下标对应，表示该次 upsert 是否新建了记录。同一批次内重复抽到的物品
// 只有第一次为 true。多行 INSERT ... ON CONFLICT 不能在一条语句里更新同一行两次，
// 因此用 pipeline 逐行执行。
func (d *OwnershipDAO) UpsertBatch(ctx context.Context, tx postgres.Tx, userID int64, itemIDs []int64, at time.Time) (inserted []bool, err error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("upsert_ownership", err == nil, time.Since(start)) }()

	query, _, err := postgres.QueryBuilder.
		Insert("ownerships").
		Columns("user_id", "item_id", "count", "first_obtained_at").
		Values(userID, itemIDs[0], 1, at).
		Suffix("ON CONFLICT (user_id, item_id) DO UPDATE SET count = ownerships.count + 1 RETURNING (xmax = 0) AS inserted").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	argsList := make([][]any, len(itemIDs))
	for i, id := range itemIDs {
		argsList[i] = []any{userID, id, 1, at}
	}

	inserted = make([]bool, len(itemIDs))
	err = tx.QueryRowBatch(ctx, query, argsList, func(i int, row pgx.Row) error {
		return row.Scan(&inserted[i])
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ownership: %w", err)
	}
	return inserted, nil
}

// ListByUser 查询用户的全部持有记录
func (d *OwnershipDAO) ListByUser(ctx context.Context, q postgres.Querier, userID int64) (list []*model.Ownership, err error) {
	start := time.Now()
	defer func() { d.metrics.RecordDBQuery("select_ownership", err == nil, time.Since(start)) }()

	query, args, err := postgres.QueryBuilder.
		Select("user_id", "item_id", "count", "first_obtained_at").
		From("ownerships").
		Where(squirrel.And{squirrel.Eq{"user_id": userID}, squirrel.Gt{"count": 0}}).
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	list, err = postgres.QueryAll[model.Ownership](ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ownership: %w", err)
	}
	return list, nil
}
