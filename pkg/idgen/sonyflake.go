package idgen

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// Config Sonyflake 配置
type Config struct {
	// MachineID 同一集群内每个实例唯一 (0-65535)
	MachineID uint16 `mapstructure:"machine_id"`
	// StartTime 纪元起点，RFC3339，为空时使用 2025-01-01
	StartTime string `mapstructure:"start_time"`
}

var defaultStartTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake 创建基于 Sonyflake 的ID生成器
func NewSonyflake(cfg Config) (Generator, error) {
	start := defaultStartTime
	if cfg.StartTime != "" {
		t, err := time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sonyflake start time %q", cfg.StartTime)
		}
		start = t
	}

	machineID := cfg.MachineID
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: start,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sonyflake generator")
	}
	return &sonyflakeGenerator{sf: sf}, nil
}

func (g *sonyflakeGenerator) NextID() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate id")
	}
	return int64(id), nil
}
