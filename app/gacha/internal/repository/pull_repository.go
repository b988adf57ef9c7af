package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// PullRepository 抽卡流水与物品持有
type PullRepository interface {
	// RecordBatch 在一个事务内写入整批流水并 upsert 持有记录，返回每个物品是否首次获得；
	// 失败时整批回滚，错误标记为 model.ErrPersistence
	RecordBatch(ctx context.Context, batch *model.Batch) ([]bool, error)
	// CountPulls 从流水统计累计抽数
	CountPulls(ctx context.Context, userID int64) (int64, error)
	// OwnedItems 用户当前持有的物品集合
	OwnedItems(ctx context.Context, userID int64) (map[int64]struct{}, error)
	// RecentPulls 最近的抽卡流水
	RecentPulls(ctx context.Context, userID int64, limit int) ([]*model.PullRecord, error)
}

type pullRepositoryImpl struct {
	db           *postgres.Client
	pullDAO      *dao.PullDAO
	ownershipDAO *dao.OwnershipDAO
	logger       logger.Logger
}

// NewPullRepository 创建抽卡流水仓储
func NewPullRepository(
	db *postgres.Client,
	pullDAO *dao.PullDAO,
	ownershipDAO *dao.OwnershipDAO,
	l logger.Logger,
) PullRepository {
	return &pullRepositoryImpl{
		db:           db,
		pullDAO:      pullDAO,
		ownershipDAO: ownershipDAO,
		logger:       l.Named("repository.pull"),
	}
}

func (r *pullRepositoryImpl) RecordBatch(ctx context.Context, batch *model.Batch) ([]bool, error) {
	itemIDs := make([]int64, len(batch.Items))
	for i, it := range batch.Items {
		itemIDs[i] = it.ID
	}

	var newlyOwned []bool
	err := r.db.WithTxOptions(ctx, postgres.TxOptions{IsoLevel: postgres.TxIsolationLevelReadCommitted}, func(tx postgres.Tx) error {
		if err := r.pullDAO.InsertBatch(ctx, tx, batch); err != nil {
			return err
		}
		inserted, err := r.ownershipDAO.UpsertBatch(ctx, tx, batch.UserID, itemIDs, batch.PulledAt)
		if err != nil {
			return err
		}
		newlyOwned = inserted
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record pull batch",
			"batch_id", batch.ID,
			"user_id", batch.UserID,
			"size", len(batch.Items),
			"error", err,
		)
		return nil, errors.Mark(errors.Wrapf(err, "record batch %d", batch.ID), model.ErrPersistence)
	}
	return newlyOwned, nil
}

func (r *pullRepositoryImpl) CountPulls(ctx context.Context, userID int64) (int64, error) {
	return r.pullDAO.CountByUser(ctx, r.db, userID)
}

func (r *pullRepositoryImpl) OwnedItems(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	list, err := r.ownershipDAO.ListByUser(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]struct{}, len(list))
	for _, o := range list {
		owned[o.ItemID] = struct{}{}
	}
	return owned, nil
}

func (r *pullRepositoryImpl) RecentPulls(ctx context.Context, userID int64, limit int) ([]*model.PullRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.pullDAO.ListByUser(ctx, r.db, userID, uint64(limit))
}
