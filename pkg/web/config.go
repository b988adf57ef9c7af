package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
)

// Config Web 服务配置
type Config struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`

	EnableCORS bool                       `mapstructure:"enable_cors"`
	RateLimit  middleware.RateLimitConfig `mapstructure:"rate_limit"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		StopTimeout:  5 * time.Second,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			MaxLimiters:       10000,
			LimiterTTL:        10 * time.Minute,
			CleanupInterval:   time.Minute,
		},
	}
}
