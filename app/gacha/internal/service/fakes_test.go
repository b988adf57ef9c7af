package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/engine"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// ---- catalog ----

type fakeCatalog struct {
	mu      sync.Mutex
	items   map[int64]*model.Item
	banners map[int64]*model.Banner
	saved   []int64

	bannerCalls atomic.Int32
	entered     chan struct{} // 非 nil 时 GetBanner 进入后发送信号
	release     chan struct{} // 非 nil 时 GetBanner 等待放行
}

var _ repository.CatalogRepository = (*fakeCatalog)(nil)

func newFakeCatalog(items ...*model.Item) *fakeCatalog {
	c := &fakeCatalog{items: map[int64]*model.Item{}, banners: map[int64]*model.Banner{}}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func cloneBanner(b *model.Banner) *model.Banner {
	cp := *b
	cp.Versions = slices.Clone(b.Versions)
	cp.PickupIDs = slices.Clone(b.PickupIDs)
	cp.ExcludeIDs = slices.Clone(b.ExcludeIDs)
	return &cp
}

func (c *fakeCatalog) putBanner(b *model.Banner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banners[b.ID] = cloneBanner(b)
}

func (c *fakeCatalog) putItem(it *model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.ID] = it
}

func (c *fakeCatalog) deleteItem(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *fakeCatalog) banner(id int64) *model.Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneBanner(c.banners[id])
}

func (c *fakeCatalog) GetItem(_ context.Context, id int64) (*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrItemNotFound, "item %d", id)
	}
	cp := *it
	return &cp, nil
}

func (c *fakeCatalog) ListItemsByVersions(_ context.Context, versions []string) ([]*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Item
	for _, it := range c.items {
		if slices.Contains(versions, it.Version) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListItemsByTier(_ context.Context, tier model.Tier) ([]*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Item
	for _, it := range c.items {
		if it.Tier == tier {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b *model.Item) int { return int(a.ID - b.ID) })
	return out, nil
}

func (c *fakeCatalog) GetBanner(ctx context.Context, id int64) (*model.Banner, error) {
	c.bannerCalls.Add(1)
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.banners[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrBannerNotFound, "banner %d", id)
	}
	return cloneBanner(b), nil
}

func (c *fakeCatalog) ListBannersReferencingItem(_ context.Context, itemID int64) ([]*model.Banner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Banner
	for _, b := range c.banners {
		if slices.Contains(b.PickupIDs, itemID) || slices.Contains(b.ExcludeIDs, itemID) {
			out = append(out, cloneBanner(b))
		}
	}
	slices.SortFunc(out, func(a, b *model.Banner) int { return int(a.ID - b.ID) })
	return out, nil
}

func (c *fakeCatalog) SaveBannerPoolRules(_ context.Context, b *model.Banner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.banners[b.ID]; !ok {
		return errors.Wrapf(model.ErrBannerNotFound, "banner %d", b.ID)
	}
	c.banners[b.ID] = cloneBanner(b)
	c.saved = append(c.saved, b.ID)
	return nil
}

// ---- pull log + ownership ----

type fakePulls struct {
	mu       sync.Mutex
	records  []*model.PullRecord
	owned    map[int64]map[int64]int64
	failNext error
	countErr error
}

var _ repository.PullRepository = (*fakePulls)(nil)

func newFakePulls() *fakePulls {
	return &fakePulls{owned: map[int64]map[int64]int64{}}
}

// seed 模拟历史流水
func (p *fakePulls) seed(userID int64, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.records = append(p.records, &model.PullRecord{UserID: userID, ItemID: 0, Seq: int16(i)})
	}
}

func (p *fakePulls) own(userID int64, itemIDs ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owned[userID] == nil {
		p.owned[userID] = map[int64]int64{}
	}
	for _, id := range itemIDs {
		p.owned[userID][id]++
	}
}

func (p *fakePulls) disown(userID int64, itemIDs ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range itemIDs {
		delete(p.owned[userID], id)
	}
}

func (p *fakePulls) userRecords(userID int64) []*model.PullRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*model.PullRecord
	for _, r := range p.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (p *fakePulls) RecordBatch(_ context.Context, b *model.Batch) ([]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return nil, errors.Mark(errors.Wrap(err, "record pull batch"), model.ErrPersistence)
	}

	if p.owned[b.UserID] == nil {
		p.owned[b.UserID] = map[int64]int64{}
	}
	newly := make([]bool, len(b.Items))
	for i, it := range b.Items {
		p.records = append(p.records, &model.PullRecord{
			ID:       int64(len(p.records) + 1),
			BatchID:  b.ID,
			Seq:      int16(i),
			UserID:   b.UserID,
			BannerID: b.BannerID,
			ItemID:   it.ID,
			PulledAt: b.PulledAt,
		})
		newly[i] = p.owned[b.UserID][it.ID] == 0
		p.owned[b.UserID][it.ID]++
	}
	return newly, nil
}

func (p *fakePulls) CountPulls(_ context.Context, userID int64) (int64, error) {
	if p.countErr != nil {
		return 0, p.countErr
	}
	return int64(len(p.userRecords(userID))), nil
}

func (p *fakePulls) OwnedItems(_ context.Context, userID int64) (map[int64]struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[int64]struct{}{}
	for id, n := range p.owned[userID] {
		if n > 0 {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (p *fakePulls) RecentPulls(_ context.Context, userID int64, limit int) ([]*model.PullRecord, error) {
	recs := p.userRecords(userID)
	slices.Reverse(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// ---- unlocks ----

type fakeUnlocks struct {
	mu       sync.Mutex
	unlocked map[int64]map[string]struct{}
	// lost 中的 key 模拟被并发请求抢先写入
	lost    map[string]bool
	creates int
}

var _ repository.AchievementRepository = (*fakeUnlocks)(nil)

func newFakeUnlocks() *fakeUnlocks {
	return &fakeUnlocks{unlocked: map[int64]map[string]struct{}{}, lost: map[string]bool{}}
}

func (u *fakeUnlocks) keys(userID int64) []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []string
	for k := range u.unlocked[userID] {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (u *fakeUnlocks) UnlockedKeys(_ context.Context, userID int64) ([]string, error) {
	return u.keys(userID), nil
}

func (u *fakeUnlocks) CreateUnlock(_ context.Context, un *model.Unlock) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.creates++
	if u.unlocked[un.UserID] == nil {
		u.unlocked[un.UserID] = map[string]struct{}{}
	}
	if _, ok := u.unlocked[un.UserID][un.AchievementKey]; ok {
		return false, nil
	}
	u.unlocked[un.UserID][un.AchievementKey] = struct{}{}
	if u.lost[un.AchievementKey] {
		return false, nil
	}
	return true, nil
}

// ---- counter cache ----

type fakeCounter struct {
	mu       sync.Mutex
	values   map[int64]int64
	guarded  map[int64]bool
	incrErr  error
	refusals int
}

var _ repository.PullCounterCache = (*fakeCounter)(nil)

func newFakeCounter() *fakeCounter {
	return &fakeCounter{values: map[int64]int64{}, guarded: map[int64]bool{}}
}

func (c *fakeCounter) value(userID int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[userID]
	return v, ok
}

func (c *fakeCounter) Incr(_ context.Context, userID, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	v, ok := c.values[userID]
	if !ok || c.guarded[userID] {
		c.refusals++
		return 0, errors.Wrapf(model.ErrCacheInconsistency, "pull counter for user %d is missing or recounting", userID)
	}
	c.values[userID] = v + delta
	return v + delta, nil
}

func (c *fakeCounter) Get(_ context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[userID]
	if !ok {
		return 0, errors.Wrapf(model.ErrCacheInconsistency, "pull counter for user %d is missing", userID)
	}
	return v, nil
}

func (c *fakeCounter) Prime(_ context.Context, userID, value int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guarded[userID] = true
	if v, ok := c.values[userID]; ok && v > value {
		return v, nil
	}
	c.values[userID] = value
	return value, nil
}

// set 直接写入计数器，不开启重算窗口
func (c *fakeCounter) set(userID, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[userID] = value
}

// closeWindow 结束重算窗口
func (c *fakeCounter) closeWindow(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.guarded, userID)
}

// ---- invalidation bus ----

type fakeSubscription struct {
	ch   chan int64
	once sync.Once
}

func (s *fakeSubscription) C() <-chan int64 { return s.ch }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []int64
	sub       *fakeSubscription
}

var _ repository.PoolEventBus = (*fakeBus)(nil)

func (b *fakeBus) PublishInvalidation(_ context.Context, bannerID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, bannerID)
	return nil
}

func (b *fakeBus) SubscribeInvalidation(context.Context) (repository.InvalidationSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub = &fakeSubscription{ch: make(chan int64, 8)}
	return b.sub, nil
}

func (b *fakeBus) publishedIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}

// ---- logger ----

type logEntry struct {
	level string
	msg   string
}

// recordingLogger 记录 Warn/Error 级别的日志
type recordingLogger struct {
	logger.NoopLogger
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.add("error", msg) }
func (l *recordingLogger) WarnContext(_ context.Context, msg string, _ ...interface{}) {
	l.add("warn", msg)
}
func (l *recordingLogger) ErrorContext(_ context.Context, msg string, _ ...interface{}) {
	l.add("error", msg)
}
func (l *recordingLogger) Named(string) logger.Logger             { return l }
func (l *recordingLogger) WithFields(...interface{}) logger.Logger { return l }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

// ---- fixtures ----

const (
	itemA int64 = iota + 1
	itemB
	itemC
	itemD
	itemE
	itemF
)

const refBanner int64 = 1

func catalogItem(id int64, name string, tier model.Tier) *model.Item {
	return &model.Item{ID: id, Name: name, Tier: tier, Version: "v1"}
}

// referenceCatalog 概率 {UP=3, 最高=3, 中=18, 低=79}，UP=[A]，常驻最高=[B,C]，中=[D]，低=[E,F]
func referenceCatalog() *fakeCatalog {
	c := newFakeCatalog(
		catalogItem(itemA, "A", model.TierTop),
		catalogItem(itemB, "B", model.TierTop),
		catalogItem(itemC, "C", model.TierTop),
		catalogItem(itemD, "D", model.TierMid),
		catalogItem(itemE, "E", model.TierLow),
		catalogItem(itemF, "F", model.TierLow),
	)
	c.putBanner(&model.Banner{
		ID:        refBanner,
		Name:      "reference",
		Rates:     model.MustRateTable("3.0", "3.0", "18.0", "79.0"),
		Versions:  []string{"v1"},
		PickupIDs: []int64{itemA},
	})
	return c
}

// referenceScript 十连依次得到 E F A D E F A D E D
func referenceScript() engine.Source {
	return engine.NewSequenceSource(
		0.50, 0.10,
		0.95, 0.90,
		0.01, 0.50,
		0.10, 0.30,
		0.30, 0.49,
		0.99, 0.51,
		0.02, 0.00,
		0.20, 0.00,
		0.75, 0.25,
		0.99, 0.50,
	)
}

// tripleTopScript 十连中三个 A，其余为低稀有度，保底位为 D
func tripleTopScript() engine.Source {
	vals := []float64{0.01, 0.0, 0.01, 0.0, 0.01, 0.0}
	for i := 0; i < 6; i++ {
		vals = append(vals, 0.50, 0.10)
	}
	vals = append(vals, 0.50, 0.00)
	return engine.NewSequenceSource(vals...)
}

func defaultDefinitions() []model.Achievement {
	return []model.Achievement{
		{Key: "LUCK_DOUBLE_R3", Category: model.AchievementLuck, Name: "Double"},
		{Key: "LUCK_TRIPLE_R3", Category: model.AchievementLuck, Name: "Triple"},
		{Key: "MILESTONE_PULLS_10", Category: model.AchievementMilestone, Name: "10 pulls"},
		{Key: "MILESTONE_PULLS_100", Category: model.AchievementMilestone, Name: "100 pulls"},
		{Key: "MILESTONE_PULLS_1000", Category: model.AchievementMilestone, Name: "1000 pulls"},
		{Key: "COLLECT_AD", Category: model.AchievementCollection, Name: "A and D", RequiredItems: []int64{itemA, itemD}},
	}
}

type harness struct {
	catalog  *fakeCatalog
	pulls    *fakePulls
	unlocks  *fakeUnlocks
	counter  *fakeCounter
	bus      *fakeBus
	log      *recordingLogger
	pools    *PoolService
	recorder *PullRecorder
	achieve  *AchievementService
	svc      *GachaService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	defs  []model.Achievement
	luck  []model.LuckRule
	miles []model.MilestoneRule
	rng   engine.Source
}

func withLuckRules(rules ...model.LuckRule) harnessOption {
	return func(c *harnessConfig) { c.luck = rules }
}

func withRNG(rng engine.Source) harnessOption {
	return func(c *harnessConfig) { c.rng = rng }
}

func newHarness(opts ...harnessOption) *harness {
	cfg := &harnessConfig{
		defs:  defaultDefinitions(),
		luck:  model.DefaultLuckRules(),
		miles: model.DefaultMilestoneRules(),
		rng:   referenceScript(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	defs, err := model.NewDefinitions(cfg.defs, cfg.luck, cfg.miles)
	if err != nil {
		panic(fmt.Sprintf("definitions: %v", err))
	}

	h := &harness{
		catalog: referenceCatalog(),
		pulls:   newFakePulls(),
		unlocks: newFakeUnlocks(),
		counter: newFakeCounter(),
		bus:     &fakeBus{},
		log:     &recordingLogger{},
	}
	h.pools = NewPoolService(nil, h.catalog, h.bus, h.log, nil)
	h.recorder = NewPullRecorder(h.pulls, h.counter, idgen.NewSequence(1000), h.log, nil)
	h.achieve = NewAchievementService(defs, h.unlocks, h.pulls, h.recorder, h.log, nil)
	h.svc = NewGachaService(h.pools, h.recorder, h.achieve, h.catalog, cfg.rng, h.log, nil)
	return h
}

func (h *harness) close() {
	_ = h.pools.Stop()
}

func achievementKeys(list []*model.Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Key)
	}
	return out
}

func drawnNames(r *model.DrawResult) []string {
	out := make([]string, 0, len(r.Items))
	for _, d := range r.Items {
		out = append(out, d.Item.Name)
	}
	return out
}
