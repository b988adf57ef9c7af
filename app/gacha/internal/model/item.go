package model

import "fmt"

// Tier 稀有度，数值越大越稀有
type Tier int16

const (
	TierLow Tier = 1
	TierMid Tier = 2
	TierTop Tier = 3
)

// Valid 是否为已知稀有度
func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierTop
}

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierTop:
		return "top"
	default:
		return fmt.Sprintf("tier(%d)", int16(t))
	}
}

// Item 可抽取的物品，由外部目录服务维护
type Item struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Tier    Tier   `db:"tier" json:"tier"`
	Limited bool   `db:"limited" json:"limited"`
	Version string `db:"version" json:"version"` // 所属版本（发布批次）
}
