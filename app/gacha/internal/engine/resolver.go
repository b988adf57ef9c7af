package engine

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// ResolvePool 根据卡池配置与物品目录快照解析出四个互不相交的物品列表
//
// 基础池 = 版本命中且（允许限定或非限定）且不在排除列表中的物品。
// UP 列表中的物品必须是基础池里的最高稀有度物品，否则返回 ErrConfiguration。
// 各列表按物品 ID 升序，保证同样的输入得到同样的顺序。
func ResolvePool(banner *model.Banner, catalog []*model.Item) (*model.ResolvedPool, error) {
	excluded := make(map[int64]struct{}, len(banner.ExcludeIDs))
	for _, id := range banner.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	base := make(map[int64]*model.Item)
	for _, it := range catalog {
		if it == nil || !it.Tier.Valid() || !banner.IsCandidate(it) {
			continue
		}
		if _, ok := excluded[it.ID]; ok {
			continue
		}
		base[it.ID] = it
	}

	pickup := make(map[int64]struct{}, len(banner.PickupIDs))
	pool := &model.ResolvedPool{BannerID: banner.ID, Rates: banner.Rates}
	for _, id := range banner.PickupIDs {
		if _, dup := pickup[id]; dup {
			continue
		}
		it, ok := base[id]
		if !ok {
			return nil, errors.Wrapf(model.ErrConfiguration,
				"banner %d: pickup item %d is not in the pool", banner.ID, id)
		}
		if it.Tier != model.TierTop {
			return nil, errors.Wrapf(model.ErrConfiguration,
				"banner %d: pickup item %d has tier %s", banner.ID, id, it.Tier)
		}
		pickup[id] = struct{}{}
		pool.Pickup = append(pool.Pickup, it)
	}

	for _, it := range base {
		switch it.Tier {
		case model.TierTop:
			if _, ok := pickup[it.ID]; !ok {
				pool.RegularTop = append(pool.RegularTop, it)
			}
		case model.TierMid:
			pool.Mid = append(pool.Mid, it)
		case model.TierLow:
			pool.Low = append(pool.Low, it)
		}
	}

	byID := func(a, b *model.Item) int { return cmp.Compare(a.ID, b.ID) }
	slices.SortFunc(pool.Pickup, byID)
	slices.SortFunc(pool.RegularTop, byID)
	slices.SortFunc(pool.Mid, byID)
	slices.SortFunc(pool.Low, byID)

	return pool, nil
}
