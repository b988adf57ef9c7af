package model

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RateTable 卡池概率表（百分比），构造后不可变
//
// 约束：TotalTop + Mid + Low == 100（精确十进制相等），0 <= PickupTop <= TotalTop。
type RateTable struct {
	pickupTop decimal.Decimal
	totalTop  decimal.Decimal
	mid       decimal.Decimal
	low       decimal.Decimal
}

// TierRates 三个稀有度各自的概率
type TierRates struct {
	Top decimal.Decimal
	Mid decimal.Decimal
	Low decimal.Decimal
}

// Of 返回指定稀有度的概率
func (r TierRates) Of(t Tier) decimal.Decimal {
	switch t {
	case TierTop:
		return r.Top
	case TierMid:
		return r.Mid
	case TierLow:
		return r.Low
	}
	return decimal.Zero
}

// NewRateTable 校验并创建概率表，非法时返回 ErrConfiguration
func NewRateTable(pickupTop, totalTop, mid, low decimal.Decimal) (RateTable, error) {
	names := [...]string{"pickup_top", "total_top", "mid", "low"}
	for i, v := range [...]decimal.Decimal{pickupTop, totalTop, mid, low} {
		if v.IsNegative() {
			return RateTable{}, errors.Wrapf(ErrConfiguration, "rate %s is negative: %s", names[i], v)
		}
	}
	if sum := totalTop.Add(mid).Add(low); !sum.Equal(hundred) {
		return RateTable{}, errors.Wrapf(ErrConfiguration, "tier rates sum to %s, want 100", sum)
	}
	if pickupTop.GreaterThan(totalTop) {
		return RateTable{}, errors.Wrapf(ErrConfiguration,
			"pickup rate %s exceeds top tier rate %s", pickupTop, totalTop)
	}
	return RateTable{pickupTop: pickupTop, totalTop: totalTop, mid: mid, low: low}, nil
}

// ParseRateTable 从十进制字符串创建概率表（数据库 numeric 列以文本读出）
func ParseRateTable(pickupTop, totalTop, mid, low string) (RateTable, error) {
	vals := make([]decimal.Decimal, 0, 4)
	for _, s := range []string{pickupTop, totalTop, mid, low} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return RateTable{}, errors.Mark(errors.Wrapf(err, "parse rate %q", s), ErrConfiguration)
		}
		vals = append(vals, d)
	}
	return NewRateTable(vals[0], vals[1], vals[2], vals[3])
}

// MustRateTable 用于常量配置和测试，非法时 panic
func MustRateTable(pickupTop, totalTop, mid, low string) RateTable {
	t, err := ParseRateTable(pickupTop, totalTop, mid, low)
	if err != nil {
		panic(err)
	}
	return t
}

func (t RateTable) PickupTop() decimal.Decimal { return t.pickupTop }
func (t RateTable) TotalTop() decimal.Decimal  { return t.totalTop }
func (t RateTable) Mid() decimal.Decimal       { return t.mid }
func (t RateTable) Low() decimal.Decimal       { return t.low }

// NonPickupTop 非 UP 的最高稀有度概率
func (t RateTable) NonPickupTop() decimal.Decimal {
	return t.totalTop.Sub(t.pickupTop)
}

// IsZero 未初始化的概率表
func (t RateTable) IsZero() bool {
	return t.totalTop.IsZero() && t.mid.IsZero() && t.low.IsZero()
}

// Standard 普通抽取使用的稀有度概率
func (t RateTable) Standard() TierRates {
	return TierRates{Top: t.totalTop, Mid: t.mid, Low: t.low}
}

// Floor 保底位使用的稀有度概率：最低稀有度的概率并入中间稀有度
func (t RateTable) Floor() TierRates {
	return TierRates{Top: t.totalTop, Mid: t.mid.Add(t.low), Low: decimal.Zero}
}
