package dao

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

const (
	// Redis key 前缀
	pullCounterKeyPrefix = "gacha:pulls:"
	poolChannelPrefix    = "gacha:pool:invalidate:"

	// pullCounterGuardSuffix 重算窗口守卫键
	pullCounterGuardSuffix = ":recount"

	// poolChannelAll 通知所有实例清空全部卡池缓存
	poolChannelAll = "all"

	defaultCounterTTL    = 24 * time.Hour
	defaultRecountWindow = time.Minute
)

// CacheConfig 缓存配置
type CacheConfig struct {
	// CounterTTL 累计抽数缓存的过期时间，每次自增都会续期
	CounterTTL time.Duration `mapstructure:"counter_ttl"`
	// RecountWindow 计数器重建后拒绝自增的时长，需大于事务提交到缓存自增之间的最大延迟
	RecountWindow time.Duration `mapstructure:"recount_window"`
}

// CacheDAO Redis 缓存：累计抽数计数器与卡池失效广播
type CacheDAO struct {
	redis         *redis.Client
	counterTTL    time.Duration
	recountWindow time.Duration
	logger        logger.Logger
	metrics       *metrics.GachaMetrics
}

// NewCacheDAO 创建缓存 DAO
func NewCacheDAO(rdb *redis.Client, cfg *CacheConfig, l logger.Logger, m *metrics.GachaMetrics) *CacheDAO {
	ttl, window := defaultCounterTTL, defaultRecountWindow
	if cfg != nil && cfg.CounterTTL > 0 {
		ttl = cfg.CounterTTL
	}
	if cfg != nil && cfg.RecountWindow > 0 {
		window = cfg.RecountWindow
	}
	return &CacheDAO{
		redis:         rdb,
		counterTTL:    ttl,
		recountWindow: window,
		logger:        l.Named("dao.cache"),
		metrics:       m,
	}
}

func pullCounterKey(userID int64) string {
	return pullCounterKeyPrefix + strconv.FormatInt(userID, 10)
}

func pullCounterGuardKey(userID int64) string {
	return pullCounterKey(userID) + pullCounterGuardSuffix
}

// IncrPullCounter 原子地给已存在的计数器加 delta
//
// 计数器不存在或处于重算窗口内时返回 redis.ErrNil 且不修改计数器。
func (d *CacheDAO) IncrPullCounter(ctx context.Context, userID int64, delta int64) (int64, error) {
	start := time.Now()
	defer func() { d.metrics.RecordCacheOp("incr_counter", time.Since(start)) }()

	return d.redis.IncrByIfExists(ctx, pullCounterKey(userID), delta, d.counterTTL, pullCounterGuardKey(userID))
}

// GetPullCounter 读取计数器，不存在时返回 redis.ErrNil
func (d *CacheDAO) GetPullCounter(ctx context.Context, userID int64) (int64, error) {
	start := time.Now()
	defer func() { d.metrics.RecordCacheOp("get_counter", time.Since(start)) }()

	return d.redis.GetInt64(ctx, pullCounterKey(userID))
}

// PrimePullCounter 用流水计数重建计数器，只会调高不会调低，返回写入后的值
//
// 重建同时开启重算窗口（已开启的不延长）：窗口内的自增被拒绝，调用方改为重新统计流水后再次重建。
func (d *CacheDAO) PrimePullCounter(ctx context.Context, userID int64, value int64) (int64, error) {
	start := time.Now()
	defer func() { d.metrics.RecordCacheOp("prime_counter", time.Since(start)) }()

	return d.redis.SetMax(ctx, pullCounterKey(userID), value, d.counterTTL, pullCounterGuardKey(userID), d.recountWindow)
}

// PublishPoolInvalidation 广播卡池缓存失效，bannerID 为 0 表示全部卡池
func (d *CacheDAO) PublishPoolInvalidation(ctx context.Context, bannerID int64) error {
	channel := poolChannelPrefix + poolChannelAll
	if bannerID > 0 {
		channel = poolChannelPrefix + strconv.FormatInt(bannerID, 10)
	}
	if _, err := d.redis.Publish(ctx, channel, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to publish pool invalidation: %w", err)
	}
	return nil
}

// SubscribePoolInvalidation 订阅卡池缓存失效广播
func (d *CacheDAO) SubscribePoolInvalidation(ctx context.Context) (*redis.Subscription, error) {
	return d.redis.PSubscribe(ctx, poolChannelPrefix+"*")
}

// ParsePoolInvalidation 解析广播消息，返回卡池 ID（0 表示全部）
func ParsePoolInvalidation(msg redis.Message) (int64, bool) {
	suffix, ok := strings.CutPrefix(msg.Channel, poolChannelPrefix)
	if !ok {
		return 0, false
	}
	if suffix == poolChannelAll {
		return 0, true
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
