package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefinitions(t *testing.T) {
	defs := []Achievement{
		{Key: "LUCK_DOUBLE_R3", Category: AchievementLuck, Name: "Double"},
		{Key: "MILESTONE_PULLS_10", Category: AchievementMilestone, Name: "Ten"},
		{Key: "SET_A", Category: AchievementCollection, Name: "Set A", RequiredItems: []int64{1, 2}},
	}
	milestones := []MilestoneRule{{Key: "M1000", Pulls: 1000}, {Key: "M10", Pulls: 10}, {Key: "M100", Pulls: 100}}

	d, err := NewDefinitions(defs, DefaultLuckRules(), milestones)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Len())
	got, ok := d.Get("SET_A")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, got.RequiredItems)
	_, ok = d.Get("missing")
	assert.False(t, ok)

	require.Len(t, d.Collections(), 1)
	assert.Equal(t, "SET_A", d.Collections()[0].Key)

	var thresholds []int64
	for _, r := range d.MilestoneRules() {
		thresholds = append(thresholds, r.Pulls)
	}
	assert.Equal(t, []int64{10, 100, 1000}, thresholds)

	// 输入切片被复制，外部修改不影响定义
	defs[2].RequiredItems[0] = 99
	got, _ = d.Get("SET_A")
	assert.Equal(t, int64(1), got.RequiredItems[0])
}

func TestNewDefinitionsRejects(t *testing.T) {
	tests := []struct {
		name       string
		defs       []Achievement
		luck       []LuckRule
		milestones []MilestoneRule
	}{
		{name: "empty key", defs: []Achievement{{Category: AchievementLuck}}},
		{name: "duplicate key", defs: []Achievement{
			{Key: "A", Category: AchievementLuck},
			{Key: "A", Category: AchievementMilestone},
		}},
		{name: "unknown category", defs: []Achievement{{Key: "A", Category: "weird"}}},
		{name: "collection without items", defs: []Achievement{{Key: "A", Category: AchievementCollection}}},
		{name: "luck rule zero", luck: []LuckRule{{Key: "A", MinTopTier: 0}}},
		{name: "milestone without key", milestones: []MilestoneRule{{Pulls: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinitions(tt.defs, tt.luck, tt.milestones)
			assert.Error(t, err)
		})
	}
}

func TestBannerCandidate(t *testing.T) {
	b := &Banner{Versions: []string{"v1", "v2"}}
	assert.True(t, b.IsCandidate(&Item{Version: "v1"}))
	assert.False(t, b.IsCandidate(&Item{Version: "v3"}))
	assert.False(t, b.IsCandidate(&Item{Version: "v2", Limited: true}))

	b.IncludeLimited = true
	assert.True(t, b.IsCandidate(&Item{Version: "v2", Limited: true}))
}

func TestActor(t *testing.T) {
	assert.False(t, Anonymous.Authenticated())
	assert.True(t, Actor{UserID: 7}.Authenticated())
}
