package metrics

import (
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

// GachaMetrics 抽卡服务指标，nil 接收者上的方法都是空操作，方便测试
type GachaMetrics struct {
	DrawTotal       *prom.CounterVec   // 抽卡请求（按卡池、结果）
	ItemsTotal      *prom.CounterVec   // 抽出物品（按稀有度、是否保底位）
	AchievementsNew *prom.CounterVec   // 新解锁成就（按类别）
	CounterRepairs  *prom.CounterVec   // 累计抽数缓存修复（按原因）
	PoolCacheTotal  *prom.CounterVec   // 卡池缓存（按结果）
	DBQueryTotal    *prom.CounterVec   // 数据库操作（按操作、结果）
	DBQueryDuration *prom.HistogramVec // 数据库操作延迟
	CacheOpDuration *prom.HistogramVec // Redis 操作延迟
}

// New 在 Prometheus 客户端上注册抽卡指标
func New(client *prometheus.Client) (*GachaMetrics, error) {
	var (
		m   GachaMetrics
		err error
	)
	if m.DrawTotal, err = client.NewCounterVec("draws_total", "Total number of draw operations.", []string{"banner", "result"}); err != nil {
		return nil, err
	}
	if m.ItemsTotal, err = client.NewCounterVec("items_drawn_total", "Total number of drawn items.", []string{"tier", "guaranteed"}); err != nil {
		return nil, err
	}
	if m.AchievementsNew, err = client.NewCounterVec("achievements_unlocked_total", "Total number of unlocked achievements.", []string{"category"}); err != nil {
		return nil, err
	}
	if m.CounterRepairs, err = client.NewCounterVec("pull_counter_repairs_total", "Total number of pull counter cache repairs.", []string{"reason"}); err != nil {
		return nil, err
	}
	if m.PoolCacheTotal, err = client.NewCounterVec("pool_cache_total", "Resolved pool cache lookups.", []string{"result"}); err != nil {
		return nil, err
	}
	if m.DBQueryTotal, err = client.NewCounterVec("db_queries_total", "Total number of database operations.", []string{"operation", "status"}); err != nil {
		return nil, err
	}
	if m.DBQueryDuration, err = client.NewHistogramVec("db_query_duration_seconds", "Database operation latency in seconds.",
		[]string{"operation"}, []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}); err != nil {
		return nil, err
	}
	if m.CacheOpDuration, err = client.NewHistogramVec("cache_op_duration_seconds", "Redis operation latency in seconds.",
		[]string{"operation"}, []float64{.0005, .001, .0025, .005, .01, .025, .05, .1}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordDraw 记录一次抽卡请求的结果
func (m *GachaMetrics) RecordDraw(banner, result string) {
	if m == nil {
		return
	}
	m.DrawTotal.WithLabelValues(banner, result).Inc()
}

// RecordItem 记录一个抽出的物品
func (m *GachaMetrics) RecordItem(tier string, guaranteed bool) {
	if m == nil {
		return
	}
	g := "false"
	if guaranteed {
		g = "true"
	}
	m.ItemsTotal.WithLabelValues(tier, g).Inc()
}

// RecordAchievement 记录一次成就解锁
func (m *GachaMetrics) RecordAchievement(category string) {
	if m == nil {
		return
	}
	m.AchievementsNew.WithLabelValues(category).Inc()
}

// RecordCounterRepair 记录一次累计抽数缓存修复
func (m *GachaMetrics) RecordCounterRepair(reason string) {
	if m == nil {
		return
	}
	m.CounterRepairs.WithLabelValues(reason).Inc()
}

// RecordPoolCache 记录卡池缓存命中情况（hit/miss/shared）
func (m *GachaMetrics) RecordPoolCache(result string) {
	if m == nil {
		return
	}
	m.PoolCacheTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery 记录数据库操作
func (m *GachaMetrics) RecordDBQuery(operation string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.DBQueryTotal.WithLabelValues(operation, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCacheOp 记录 Redis 操作延迟
func (m *GachaMetrics) RecordCacheOp(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.CacheOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}
