package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig 限流配置，RequestsPerSecond 为 0 表示不限流
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxLimiters       int           `mapstructure:"max_limiters"`
	LimiterTTL        time.Duration `mapstructure:"limiter_ttl"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// KeyFunc 生成限流键
type KeyFunc func(*gin.Context) string

// RateLimiter 按键（用户或 IP）分别限流
type RateLimiter struct {
	cfg      RateLimitConfig
	limiters *lru.LRU[string, *rate.Limiter]
	logger   logger.Logger
}

// NewRateLimiter 创建限流器
func NewRateLimiter(l logger.Logger, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg: cfg,
		limiters: lru.New[string, *rate.Limiter](lru.Config{
			MaxSize:         cfg.MaxLimiters,
			DefaultTTL:      cfg.LimiterTTL,
			CleanupInterval: cfg.CleanupInterval,
		}),
		logger: l,
	}
}

// Allow 检查 key 是否还有令牌
func (rl *RateLimiter) Allow(key string) bool {
	if rl.cfg.RequestsPerSecond <= 0 {
		return true
	}
	limiter := rl.limiters.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
	})
	return limiter.Allow()
}

// Close 停止后台清理
func (rl *RateLimiter) Close() error {
	return rl.limiters.Close()
}

// RateLimit 限流中间件，超限返回 429
func RateLimit(rl *RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = func(c *gin.Context) string { return "ip:" + c.ClientIP() }
	}
	return func(c *gin.Context) {
		key := keyFn(c)
		if !rl.Allow(key) {
			rl.logger.WarnContext(c.Request.Context(), "rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    weberrors.CodeRateLimited,
				"message": "too many requests",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}
