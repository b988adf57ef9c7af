package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// CatalogRepository 物品与卡池目录
//
// 目录由外部服务维护，这里只读；SaveBannerPoolRules 仅供物品对账回写 UP / 排除列表。
type CatalogRepository interface {
	// GetItem 不存在时返回 model.ErrItemNotFound
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItemsByVersions(ctx context.Context, versions []string) ([]*model.Item, error)
	ListItemsByTier(ctx context.Context, tier model.Tier) ([]*model.Item, error)

	// GetBanner 不存在时返回 model.ErrBannerNotFound，概率表非法时返回 model.ErrConfiguration
	GetBanner(ctx context.Context, id int64) (*model.Banner, error)
	ListBannersReferencingItem(ctx context.Context, itemID int64) ([]*model.Banner, error)
	SaveBannerPoolRules(ctx context.Context, banner *model.Banner) error
}

type catalogRepositoryImpl struct {
	itemDAO   *dao.ItemDAO
	bannerDAO *dao.BannerDAO
	logger    logger.Logger
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(itemDAO *dao.ItemDAO, bannerDAO *dao.BannerDAO, l logger.Logger) CatalogRepository {
	return &catalogRepositoryImpl{
		itemDAO:   itemDAO,
		bannerDAO: bannerDAO,
		logger:    l.Named("repository.catalog"),
	}
}

func (r *catalogRepositoryImpl) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	it, err := r.itemDAO.GetByID(ctx, id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, errors.Wrapf(model.ErrItemNotFound, "item %d", id)
		}
		return nil, err
	}
	return it, nil
}

func (r *catalogRepositoryImpl) ListItemsByVersions(ctx context.Context, versions []string) ([]*model.Item, error) {
	if len(versions) == 0 {
		return nil, nil
	}
	return r.itemDAO.ListByVersions(ctx, versions)
}

func (r *catalogRepositoryImpl) ListItemsByTier(ctx context.Context, tier model.Tier) ([]*model.Item, error) {
	return r.itemDAO.ListByTier(ctx, tier)
}

func (r *catalogRepositoryImpl) GetBanner(ctx context.Context, id int64) (*model.Banner, error) {
	b, err := r.bannerDAO.GetByID(ctx, id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, errors.Wrapf(model.ErrBannerNotFound, "banner %d", id)
		}
		return nil, err
	}
	return b, nil
}

func (r *catalogRepositoryImpl) ListBannersReferencingItem(ctx context.Context, itemID int64) ([]*model.Banner, error) {
	return r.bannerDAO.ListReferencingItem(ctx, itemID)
}

func (r *catalogRepositoryImpl) SaveBannerPoolRules(ctx context.Context, banner *model.Banner) error {
	if err := r.bannerDAO.UpdatePoolRules(ctx, banner); err != nil {
		if postgres.IsNoRows(err) {
			return errors.Wrapf(model.ErrBannerNotFound, "banner %d", banner.ID)
		}
		return err
	}
	return nil
}
