package model

import "github.com/cockroachdb/errors"

// 抽卡领域错误，具体错误通过 errors.Wrap / errors.Mark 关联到这些哨兵，调用方用 errors.Is 判断
var (
	// ErrConfiguration 卡池配置错误（概率表或 UP 列表非法），修正配置前该卡池不可抽
	ErrConfiguration = errors.New("gacha: invalid banner configuration")
	// ErrPoolExhausted 某个分类概率不为 0 但解析出的卡池为空
	ErrPoolExhausted = errors.New("gacha: pool exhausted")
	// ErrPersistence 抽卡结果落库失败，整批回滚
	ErrPersistence = errors.New("gacha: persistence failure")
	// ErrCacheInconsistency 累计抽数缓存缺失或不一致，内部自愈，不对外暴露
	ErrCacheInconsistency = errors.New("gacha: pull counter cache inconsistent")
	// ErrUnknownAchievement 规则引用了不存在的成就定义，只记日志
	ErrUnknownAchievement = errors.New("gacha: unknown achievement definition")

	ErrBannerNotFound = errors.New("gacha: banner not found")
	ErrItemNotFound   = errors.New("gacha: item not found")
	ErrInvalidCount   = errors.New("gacha: draw count must be 1 or 10")
)
