package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/shopspring/decimal"
)

// drawTiers 第一阶段的抽取顺序
var drawTiers = [...]model.Tier{model.TierTop, model.TierMid, model.TierLow}

// table 一套概率（普通或保底）折算后的浮点权重
type table struct {
	tier [len(drawTiers)]float64
	item [len(model.Categories)]float64 // 各分类中单个物品的权重
	err  error                          // 非空表示该套概率不可用（卡池耗尽）
}

// Weights 某个卡池的抽取权重，由 ResolvedPool 与概率表计算得出，只读
type Weights struct {
	pool     *model.ResolvedPool
	standard table
	floor    table
}

// ComputeWeights 计算普通与保底两套权重
//
// 分类内单个物品权重 = 分类概率 / 分类物品数。最高稀有度的 UP 与常驻合并为同一组候选，
// 其中一类为空时它的概率并入另一类；概率不为 0 但候选为空的稀有度
// 使对应的一套概率不可用，抽取时返回 ErrPoolExhausted，不会回退到其他稀有度。
func ComputeWeights(pool *model.ResolvedPool) *Weights {
	w := &Weights{pool: pool}
	rates := pool.Rates
	w.standard = buildTable(pool, rates.Standard(), rates.PickupTop())
	w.floor = buildTable(pool, rates.Floor(), rates.PickupTop())
	return w
}

func buildTable(pool *model.ResolvedPool, tiers model.TierRates, pickupRate decimal.Decimal) table {
	var t table
	for i, tier := range drawTiers {
		t.tier[i] = tiers.Of(tier).InexactFloat64()
	}

	mass := [len(model.Categories)]decimal.Decimal{
		model.CategoryPickup:     pickupRate,
		model.CategoryRegularTop: tiers.Top.Sub(pickupRate),
		model.CategoryMid:        tiers.Mid,
		model.CategoryLow:        tiers.Low,
	}
	switch {
	case len(pool.Pickup) == 0 && len(pool.RegularTop) > 0:
		mass[model.CategoryRegularTop] = tiers.Top
		mass[model.CategoryPickup] = decimal.Zero
	case len(pool.RegularTop) == 0 && len(pool.Pickup) > 0:
		mass[model.CategoryPickup] = tiers.Top
		mass[model.CategoryRegularTop] = decimal.Zero
	}

	for _, c := range model.Categories {
		n := len(pool.Items(c))
		if !mass[c].IsPositive() {
			continue
		}
		if n == 0 {
			if t.err == nil {
				t.err = errors.Wrapf(model.ErrPoolExhausted,
					"banner %d: tier %s (%s) has rate %s but no items", pool.BannerID, c.Tier(), c, mass[c])
			}
			continue
		}
		t.item[c] = mass[c].Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	}
	return t
}

// Pool 权重对应的卡池
func (w *Weights) Pool() *model.ResolvedPool {
	return w.pool
}

// Err 普通抽取是否可用
func (w *Weights) Err() error {
	return w.standard.err
}

// FloorErr 保底抽取是否可用
func (w *Weights) FloorErr() error {
	return w.floor.err
}

// ItemWeight 普通抽取时分类内单个物品的权重（百分比）
func (w *Weights) ItemWeight(c model.Category) float64 {
	return w.standard.item[c]
}

// TierRate 普通（floor=false）或保底（floor=true）时稀有度的概率
func (w *Weights) TierRate(tier model.Tier, floor bool) float64 {
	t := &w.standard
	if floor {
		t = &w.floor
	}
	for i, dt := range drawTiers {
		if dt == tier {
			return t.tier[i]
		}
	}
	return 0
}
