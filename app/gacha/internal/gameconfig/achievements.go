package gameconfig

import (
	"fmt"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// AchievementConfig 成就定义文件与规则配置
type AchievementConfig struct {
	// File 成就定义文件（YAML / JSON），顶层键为 achievements
	File string `mapstructure:"file"`
	// LuckRules 为空时使用默认规则
	LuckRules []model.LuckRule `mapstructure:"luck_rules"`
	// MilestoneRules 为空时使用默认规则
	MilestoneRules []model.MilestoneRule `mapstructure:"milestone_rules"`
}

// LoadAchievements 启动时加载成就定义，返回之后只读的定义集合
func LoadAchievements(cfg *AchievementConfig, l logger.Logger) (*model.Definitions, error) {
	if cfg == nil || cfg.File == "" {
		return nil, fmt.Errorf("achievement definitions file is required")
	}

	mgr := config.NewManager()
	if err := mgr.LoadFile(cfg.File); err != nil {
		return nil, err
	}

	var defs []model.Achievement
	if err := mgr.UnmarshalKey("achievements", &defs); err != nil {
		return nil, err
	}

	luck := cfg.LuckRules
	if len(luck) == 0 {
		luck = model.DefaultLuckRules()
	}
	milestones := cfg.MilestoneRules
	if len(milestones) == 0 {
		milestones = model.DefaultMilestoneRules()
	}

	d, err := model.NewDefinitions(defs, luck, milestones)
	if err != nil {
		return nil, fmt.Errorf("invalid achievement definitions in %s: %w", cfg.File, err)
	}

	// 规则引用的 key 没有定义时照常启动，运行时命中会记录 UnknownAchievementDefinition
	for _, r := range luck {
		if _, ok := d.Get(r.Key); !ok {
			l.Warn("luck rule references unknown achievement", "key", r.Key)
		}
	}
	for _, r := range milestones {
		if _, ok := d.Get(r.Key); !ok {
			l.Warn("milestone rule references unknown achievement", "key", r.Key)
		}
	}

	l.Info("achievement definitions loaded",
		"path", cfg.File,
		"definitions", d.Len(),
		"collections", len(d.Collections()),
	)
	return d, nil
}
