package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
)

// AchievementCategory 成就类别
type AchievementCategory string

const (
	AchievementLuck       AchievementCategory = "luck"
	AchievementMilestone  AchievementCategory = "milestone"
	AchievementCollection AchievementCategory = "collection"
)

// Achievement 成就定义
type Achievement struct {
	Key           string              `mapstructure:"key" json:"key"`
	Category      AchievementCategory `mapstructure:"category" json:"category"`
	Name          string              `mapstructure:"name" json:"name"`
	Description   string              `mapstructure:"description" json:"description,omitempty"`
	RequiredItems []int64             `mapstructure:"required_items" json:"required_items,omitempty"` // 仅收集类
}

// Unlock 成就解锁记录，(user_id, achievement_key) 唯一且不会撤销
type Unlock struct {
	UserID         int64     `db:"user_id"`
	AchievementKey string    `db:"achievement_key"`
	UnlockedAt     time.Time `db:"unlocked_at"`
}

// LuckRule 单批次最高稀有度数量达到 MinTopTier 时解锁
type LuckRule struct {
	Key        string `mapstructure:"key" json:"key"`
	MinTopTier int    `mapstructure:"min_top_tier" json:"min_top_tier"`
}

// MilestoneRule 累计抽数达到 Pulls 时解锁
type MilestoneRule struct {
	Key   string `mapstructure:"key" json:"key"`
	Pulls int64  `mapstructure:"pulls" json:"pulls"`
}

// DefaultLuckRules 默认运气类规则
func DefaultLuckRules() []LuckRule {
	return []LuckRule{
		{Key: "LUCK_DOUBLE_R3", MinTopTier: 2},
		{Key: "LUCK_TRIPLE_R3", MinTopTier: 3},
	}
}

// DefaultMilestoneRules 默认里程碑规则
func DefaultMilestoneRules() []MilestoneRule {
	return []MilestoneRule{
		{Key: "MILESTONE_PULLS_10", Pulls: 10},
		{Key: "MILESTONE_PULLS_100", Pulls: 100},
		{Key: "MILESTONE_PULLS_1000", Pulls: 1000},
	}
}

// Definitions 启动时构建的成就定义集合，之后只读
type Definitions struct {
	byKey       map[string]*Achievement
	collections []*Achievement
	luck        []LuckRule
	milestones  []MilestoneRule
}

// NewDefinitions 校验并创建成就定义集合，里程碑规则按阈值从低到高排序
func NewDefinitions(defs []Achievement, luck []LuckRule, milestones []MilestoneRule) (*Definitions, error) {
	d := &Definitions{
		byKey:      make(map[string]*Achievement, len(defs)),
		luck:       slices.Clone(luck),
		milestones: slices.Clone(milestones),
	}

	for i := range defs {
		def := defs[i]
		if def.Key == "" {
			return nil, errors.Newf("achievement #%d has empty key", i)
		}
		if _, dup := d.byKey[def.Key]; dup {
			return nil, errors.Newf("duplicate achievement key %q", def.Key)
		}
		switch def.Category {
		case AchievementLuck, AchievementMilestone:
		case AchievementCollection:
			if len(def.RequiredItems) == 0 {
				return nil, errors.Newf("collection achievement %q has no required items", def.Key)
			}
			def.RequiredItems = slices.Clone(def.RequiredItems)
		default:
			return nil, errors.Newf("achievement %q has unknown category %q", def.Key, def.Category)
		}
		d.byKey[def.Key] = &def
		if def.Category == AchievementCollection {
			d.collections = append(d.collections, &def)
		}
	}

	for _, r := range d.luck {
		if r.Key == "" || r.MinTopTier < 1 {
			return nil, errors.Newf("invalid luck rule %+v", r)
		}
	}
	for _, r := range d.milestones {
		if r.Key == "" || r.Pulls < 1 {
			return nil, errors.Newf("invalid milestone rule %+v", r)
		}
	}
	slices.SortStableFunc(d.milestones, func(a, b MilestoneRule) int {
		return cmp.Compare(a.Pulls, b.Pulls)
	})

	return d, nil
}

// Get 按 key 查找定义
func (d *Definitions) Get(key string) (*Achievement, bool) {
	a, ok := d.byKey[key]
	return a, ok
}

// Len 定义数量
func (d *Definitions) Len() int { return len(d.byKey) }

// Collections 全部收集类定义
func (d *Definitions) Collections() []*Achievement { return d.collections }

// LuckRules 运气类规则
func (d *Definitions) LuckRules() []LuckRule { return d.luck }

// MilestoneRules 里程碑规则，阈值升序
func (d *Definitions) MilestoneRules() []MilestoneRule { return d.milestones }
