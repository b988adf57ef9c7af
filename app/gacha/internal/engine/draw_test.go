package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id int64, name string, tier model.Tier) *model.Item {
	return &model.Item{ID: id, Name: name, Tier: tier, Version: "v1"}
}

// referencePool 概率 {UP=3, 最高=3, 中=18, 低=79}，UP=[A]，常驻最高=[B,C]，中=[D]，低=[E,F]
func referencePool() *model.ResolvedPool {
	return &model.ResolvedPool{
		BannerID:   1,
		Rates:      model.MustRateTable("3.0", "3.0", "18.0", "79.0"),
		Pickup:     []*model.Item{item(1, "A", model.TierTop)},
		RegularTop: []*model.Item{item(2, "B", model.TierTop), item(3, "C", model.TierTop)},
		Mid:        []*model.Item{item(4, "D", model.TierMid)},
		Low:        []*model.Item{item(5, "E", model.TierLow), item(6, "F", model.TierLow)},
	}
}

func names(items []*model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestDrawManyReferenceSequence(t *testing.T) {
	rng := NewSequenceSource(
		0.50, 0.10, // 低 -> E
		0.95, 0.90, // 低 -> F
		0.01, 0.50, // 最高 -> A
		0.10, 0.30, // 中 -> D
		0.30, 0.49, // 低 -> E
		0.99, 0.51, // 低 -> F
		0.02, 0.00, // 最高 -> A
		0.20, 0.00, // 中 -> D
		0.75, 0.25, // 低 -> E
		0.99, 0.50, // 保底：低稀有度并入中 -> D
	)

	items, err := DrawMany(10, ComputeWeights(referencePool()), rng)
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "F", "A", "D", "E", "F", "A", "D", "E", "D"}, names(items))
	assert.Equal(t, 20, rng.Consumed())
	assert.NotEqual(t, model.TierLow, items[9].Tier)
}

func TestDrawManyGuaranteedSlotNeverLow(t *testing.T) {
	w := ComputeWeights(referencePool())
	rng := NewSeededSource(42)

	for round := 0; round < 500; round++ {
		items, err := DrawMany(10, w, rng)
		require.NoError(t, err)
		require.Len(t, items, 10)
		assert.NotEqual(t, model.TierLow, items[9].Tier, "round %d", round)
	}
}

func TestDrawManySingleHasNoFloor(t *testing.T) {
	w := ComputeWeights(referencePool())

	// u=0.99 落在低稀有度，单抽不做保底调整
	one, err := DrawMany(1, w, NewSequenceSource(0.99, 0.10))
	require.NoError(t, err)
	require.Len(t, one, 1)

	direct, err := DrawOne(w, false, NewSequenceSource(0.99, 0.10))
	require.NoError(t, err)
	assert.Equal(t, direct, one[0])
	assert.Equal(t, "E", one[0].Name)
}

func TestDrawDeterministic(t *testing.T) {
	w := ComputeWeights(referencePool())

	a, err := DrawMany(10, w, NewSeededSource(7))
	require.NoError(t, err)
	b, err := DrawMany(10, w, NewSeededSource(7))
	require.NoError(t, err)
	assert.Equal(t, names(a), names(b))
}

func TestDrawOneZeroWeightNeverChosen(t *testing.T) {
	// 常驻最高稀有度概率为 0，最高稀有度只会出 UP
	w := ComputeWeights(referencePool())
	for _, u := range []float64{0, 0.3, 0.6, 0.999999} {
		it, err := DrawOne(w, false, NewSequenceSource(0.0, u))
		require.NoError(t, err)
		assert.Equal(t, "A", it.Name)
	}
}

func TestDrawOnePickupWeights(t *testing.T) {
	pool := referencePool()
	pool.Rates = model.MustRateTable("0.7", "3.0", "18.0", "79.0")
	w := ComputeWeights(pool)

	assert.InDelta(t, 0.7, w.ItemWeight(model.CategoryPickup), 1e-12)
	assert.InDelta(t, 1.15, w.ItemWeight(model.CategoryRegularTop), 1e-12)
	assert.InDelta(t, 39.5, w.ItemWeight(model.CategoryLow), 1e-12)

	// 最高稀有度候选 [A:0.7, B:1.15, C:1.15]，总和 3.0
	cases := map[float64]string{0.1: "A", 0.3: "B", 0.9: "C"}
	for u, want := range cases {
		it, err := DrawOne(w, false, NewSequenceSource(0.0, u))
		require.NoError(t, err)
		assert.Equal(t, want, it.Name, "u=%v", u)
	}
}

func TestTopTierMassFoldsIntoNonEmptyCategory(t *testing.T) {
	t.Run("no pickup items", func(t *testing.T) {
		pool := referencePool()
		pool.Pickup = nil
		w := ComputeWeights(pool)

		require.NoError(t, w.Err())
		require.NoError(t, w.FloorErr())
		assert.Zero(t, w.ItemWeight(model.CategoryPickup))
		assert.InDelta(t, 1.5, w.ItemWeight(model.CategoryRegularTop), 1e-12)

		it, err := DrawOne(w, false, NewSequenceSource(0.01, 0.9))
		require.NoError(t, err)
		assert.Equal(t, "C", it.Name)
	})

	t.Run("no regular top items", func(t *testing.T) {
		pool := referencePool()
		pool.Rates = model.MustRateTable("0.7", "3.0", "18.0", "79.0")
		pool.RegularTop = nil
		w := ComputeWeights(pool)

		require.NoError(t, w.Err())
		assert.InDelta(t, 3.0, w.ItemWeight(model.CategoryPickup), 1e-12)
		assert.Zero(t, w.ItemWeight(model.CategoryRegularTop))

		it, err := DrawOne(w, false, NewSequenceSource(0.01, 0.9))
		require.NoError(t, err)
		assert.Equal(t, "A", it.Name)
	})
}

func TestFloorTierRates(t *testing.T) {
	w := ComputeWeights(referencePool())
	assert.InDelta(t, 3.0, w.TierRate(model.TierTop, true), 1e-12)
	assert.InDelta(t, 97.0, w.TierRate(model.TierMid, true), 1e-12)
	assert.Zero(t, w.TierRate(model.TierLow, true))
	assert.InDelta(t, 79.0, w.TierRate(model.TierLow, false), 1e-12)
}

func TestPoolExhausted(t *testing.T) {
	t.Run("standard", func(t *testing.T) {
		pool := referencePool()
		pool.Low = nil
		w := ComputeWeights(pool)

		require.Error(t, w.Err())
		_, err := DrawOne(w, false, NewSequenceSource(0.1))
		assert.True(t, errors.Is(err, model.ErrPoolExhausted))
		_, err = DrawMany(10, w, NewSequenceSource(0.1))
		assert.True(t, errors.Is(err, model.ErrPoolExhausted))
	})

	t.Run("floor only", func(t *testing.T) {
		pool := referencePool()
		pool.Rates = model.MustRateTable("3.0", "3.0", "0", "97.0")
		pool.Mid = nil
		w := ComputeWeights(pool)

		require.NoError(t, w.Err())
		require.Error(t, w.FloorErr())

		_, err := DrawMany(1, w, NewSequenceSource(0.5))
		require.NoError(t, err)
		_, err = DrawMany(10, w, NewSequenceSource(0.5))
		assert.True(t, errors.Is(err, model.ErrPoolExhausted))
	})

	t.Run("top tier with both categories empty", func(t *testing.T) {
		pool := referencePool()
		pool.Pickup = nil
		pool.RegularTop = nil
		w := ComputeWeights(pool)

		_, err := DrawOne(w, false, NewSequenceSource(0.01, 0.5))
		assert.True(t, errors.Is(err, model.ErrPoolExhausted))
	})

	t.Run("empty pool with zero rate is fine", func(t *testing.T) {
		pool := referencePool()
		pool.RegularTop = nil
		w := ComputeWeights(pool)
		assert.NoError(t, w.Err())
		assert.NoError(t, w.FloorErr())
	})
}

func TestDrawManyInvalidCount(t *testing.T) {
	_, err := DrawMany(0, ComputeWeights(referencePool()), NewSequenceSource(0.1))
	assert.True(t, errors.Is(err, model.ErrInvalidCount))
}

func TestPick(t *testing.T) {
	assert.Equal(t, -1, pick(0.5, nil))
	assert.Equal(t, -1, pick(0.5, []float64{0, 0}))
	assert.Equal(t, 1, pick(0.0, []float64{0, 2, 2}))
	assert.Equal(t, 2, pick(0.5, []float64{0, 2, 2}))
	assert.Equal(t, 2, pick(0.9999999999, []float64{1, 1, 1, 0}))
}

func TestSources(t *testing.T) {
	for _, src := range []Source{CryptoSource{}, NewSeededSource(1)} {
		for i := 0; i < 1000; i++ {
			v := src.Float64()
			require.GreaterOrEqual(t, v, 0.0)
			require.Less(t, v, 1.0)
		}
	}

	seq := NewSequenceSource(0.1, 0.2)
	assert.Equal(t, []float64{0.1, 0.2, 0.1}, []float64{seq.Float64(), seq.Float64(), seq.Float64()})
	assert.Panics(t, func() { NewSequenceSource() })
	assert.Panics(t, func() { NewSequenceSource(1.0) })
}
