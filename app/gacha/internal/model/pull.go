package model

import "time"

// Actor 发起抽卡的用户，UserID 为 0 表示匿名
type Actor struct {
	UserID int64
}

// Anonymous 匿名用户
var Anonymous = Actor{}

// Authenticated 是否为已登录用户
func (a Actor) Authenticated() bool {
	return a.UserID > 0
}

// PullRecord 抽卡流水，只追加
type PullRecord struct {
	ID       int64     `db:"id" json:"id"`
	BatchID  int64     `db:"batch_id" json:"batch_id,string"`
	Seq      int16     `db:"seq" json:"seq"` // 在批次中的位置，保持抽取顺序
	UserID   int64     `db:"user_id" json:"user_id"`
	BannerID int64     `db:"banner_id" json:"banner_id"`
	ItemID   int64     `db:"item_id" json:"item_id"`
	PulledAt time.Time `db:"pulled_at" json:"pulled_at"` // 同一批次共享服务器时间
}

// Ownership 用户持有的物品，(user_id, item_id) 唯一
type Ownership struct {
	UserID          int64     `db:"user_id"`
	ItemID          int64     `db:"item_id"`
	Count           int32     `db:"count"`
	FirstObtainedAt time.Time `db:"first_obtained_at"`
}

// DrawnItem 单次抽取的结果
type DrawnItem struct {
	Item         *Item `json:"item"`
	IsNewlyOwned bool  `json:"is_newly_owned"`
	IsPickup     bool  `json:"is_pickup"`
}

// DrawResult 一次抽卡操作的完整结果
type DrawResult struct {
	BannerID     int64          `json:"banner_id"`
	BatchID      int64          `json:"batch_id,omitempty"`
	Items        []DrawnItem    `json:"items"`
	Achievements []*Achievement `json:"achievements"`
}

// Batch 待持久化的一批抽卡结果
type Batch struct {
	ID       int64
	UserID   int64
	BannerID int64
	Items    []*Item
	PulledAt time.Time
}

// BatchOutcome 持久化结果，NewlyOwned 与 Items 下标一一对应
type BatchOutcome struct {
	BatchID    int64
	NewlyOwned []bool
	// Total 提交后的累计抽数，缓存不可用时为 -1
	Total int64
}

// AnyNewlyOwned 是否有首次获得的物品
func (o *BatchOutcome) AnyNewlyOwned() bool {
	for _, n := range o.NewlyOwned {
		if n {
			return true
		}
	}
	return false
}
