package model

import (
	"fmt"
	"slices"
)

// Banner 卡池配置
type Banner struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Rates          RateTable `json:"-"`
	Versions       []string  `json:"versions"`        // 参与抽取的版本
	IncludeLimited bool      `json:"include_limited"` // 是否包含限定物品
	PickupIDs      []int64   `json:"pickup_ids"`      // UP 物品，只能是最高稀有度
	ExcludeIDs     []int64   `json:"exclude_ids"`     // 显式排除的物品
}

// IncludesVersion 版本是否参与该卡池
func (b *Banner) IncludesVersion(version string) bool {
	return slices.Contains(b.Versions, version)
}

// IsCandidate 物品是否满足版本与限定规则（不考虑排除列表）
func (b *Banner) IsCandidate(it *Item) bool {
	if !b.IncludesVersion(it.Version) {
		return false
	}
	return b.IncludeLimited || !it.Limited
}

// Category 卡池内的抽取分类
type Category int

const (
	CategoryPickup Category = iota
	CategoryRegularTop
	CategoryMid
	CategoryLow

	categoryCount
)

// Categories 按抽取顺序排列的全部分类
var Categories = [categoryCount]Category{CategoryPickup, CategoryRegularTop, CategoryMid, CategoryLow}

func (c Category) String() string {
	switch c {
	case CategoryPickup:
		return "pickup"
	case CategoryRegularTop:
		return "regular_top"
	case CategoryMid:
		return "mid"
	case CategoryLow:
		return "low"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Tier 分类对应的稀有度
func (c Category) Tier() Tier {
	switch c {
	case CategoryPickup, CategoryRegularTop:
		return TierTop
	case CategoryMid:
		return TierMid
	default:
		return TierLow
	}
}

// ResolvedPool 从卡池配置与物品目录解析出的四个互不相交的物品列表，只读
type ResolvedPool struct {
	BannerID   int64
	Rates      RateTable
	Pickup     []*Item
	RegularTop []*Item
	Mid        []*Item
	Low        []*Item
}

// Items 返回分类下的物品
func (p *ResolvedPool) Items(c Category) []*Item {
	switch c {
	case CategoryPickup:
		return p.Pickup
	case CategoryRegularTop:
		return p.RegularTop
	case CategoryMid:
		return p.Mid
	case CategoryLow:
		return p.Low
	}
	return nil
}

// IsPickup 物品是否为该卡池的 UP 物品
func (p *ResolvedPool) IsPickup(itemID int64) bool {
	for _, it := range p.Pickup {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

// Size 卡池内物品总数
func (p *ResolvedPool) Size() int {
	return len(p.Pickup) + len(p.RegularTop) + len(p.Mid) + len(p.Low)
}
