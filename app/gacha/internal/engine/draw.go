package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// DrawOne 两阶段加权抽取一个物品
//
// 第一阶段按稀有度概率选出稀有度（floor 为 true 时使用保底概率，最低稀有度不会出现），
// 第二阶段在该稀有度的候选中按物品权重抽取；最高稀有度的候选为 UP 物品在前、
// 常驻物品在后，各自使用自己的权重。每次抽取恰好消耗两个随机数。
func DrawOne(w *Weights, floor bool, rng Source) (*model.Item, error) {
	t := &w.standard
	if floor {
		t = &w.floor
	}
	if t.err != nil {
		return nil, t.err
	}

	tierIdx := pick(rng.Float64(), t.tier[:])
	if tierIdx < 0 {
		return nil, errors.Wrapf(model.ErrPoolExhausted, "banner %d: all tier rates are zero", w.pool.BannerID)
	}
	tier := drawTiers[tierIdx]

	var cats []model.Category
	switch tier {
	case model.TierTop:
		cats = []model.Category{model.CategoryPickup, model.CategoryRegularTop}
	case model.TierMid:
		cats = []model.Category{model.CategoryMid}
	default:
		cats = []model.Category{model.CategoryLow}
	}

	var (
		candidates []*model.Item
		weights    []float64
	)
	for _, c := range cats {
		for _, it := range w.pool.Items(c) {
			candidates = append(candidates, it)
			weights = append(weights, t.item[c])
		}
	}

	idx := pick(rng.Float64(), weights)
	if idx < 0 {
		return nil, errors.Wrapf(model.ErrPoolExhausted, "banner %d: no candidates for tier %s", w.pool.BannerID, tier)
	}
	return candidates[idx], nil
}

// DrawMany 连续抽取 n 个物品：前 n-1 次普通抽取，最后 1 次保底抽取，结果按抽取顺序返回
//
// n == 1 时只做一次普通抽取，不触发保底。任何一次失败都不返回部分结果。
func DrawMany(n int, w *Weights, rng Source) ([]*model.Item, error) {
	if n < 1 {
		return nil, errors.Wrapf(model.ErrInvalidCount, "draw count %d", n)
	}
	if err := w.standard.err; err != nil {
		return nil, err
	}
	if n > 1 {
		if err := w.floor.err; err != nil {
			return nil, err
		}
	}

	items := make([]*model.Item, 0, n)
	for i := 0; i < n; i++ {
		floor := n > 1 && i == n-1
		it, err := DrawOne(w, floor, rng)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// pick 按权重做一次类别抽样：r = u * Σw，返回第一个累计权重超过 r 的下标，权重为 0 的项不会被选中
func pick(u float64, weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	r := u * total
	var acc float64
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if r < acc {
			return i
		}
	}
	// 浮点累加误差导致 r 落在末尾时取最后一个有效项
	return last
}
