package handler

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// HeaderUserID 上游鉴权网关写入的用户 ID，缺省为匿名
const HeaderUserID = "X-User-ID"

const (
	defaultPullHistory = 20
	maxPullHistory     = 200
)

// GachaService 处理器依赖的抽卡服务
type GachaService interface {
	PerformDraw(ctx context.Context, actor model.Actor, bannerID int64, count int) (*model.DrawResult, error)
	PoolInfo(ctx context.Context, bannerID int64) (*service.PoolInfo, error)
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	ListItemsByTier(ctx context.Context, tier model.Tier) ([]*model.Item, error)
	RecentPulls(ctx context.Context, userID int64, limit int) ([]*model.PullRecord, error)
	LifetimePulls(ctx context.Context, userID int64) (int64, error)
	ReconcileItem(ctx context.Context, itemID int64) ([]int64, error)
	OnOwnershipChanged(ctx context.Context, userID int64) ([]*model.Achievement, error)
	InvalidateBanner(ctx context.Context, bannerID int64)
}

// ErrorReporter 上报未预期的错误，可以为 nil
type ErrorReporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// GachaHandler 抽卡 HTTP 处理器
type GachaHandler struct {
	svc      GachaService
	reporter ErrorReporter
	logger   logger.Logger
}

// NewGachaHandler 创建抽卡处理器
func NewGachaHandler(svc GachaService, reporter ErrorReporter, l logger.Logger) *GachaHandler {
	return &GachaHandler{
		svc:      svc,
		reporter: reporter,
		logger:   l.Named("handler.gacha"),
	}
}

// DrawRequest 抽卡请求
type DrawRequest struct {
	Count int `json:"count" binding:"required,oneof=1 10"`
}

// DrawnItemView 单个抽卡结果
type DrawnItemView struct {
	ItemID       int64  `json:"item_id"`
	Name         string `json:"name"`
	Tier         int16  `json:"tier"`
	IsNewlyOwned bool   `json:"is_newly_owned"`
	IsPickup     bool   `json:"is_pickup"`
}

// AchievementView 新解锁的成就
type AchievementView struct {
	Key      string `json:"achievement_key"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// DrawResponse 抽卡响应
type DrawResponse struct {
	BannerID     int64             `json:"banner_id"`
	BatchID      int64             `json:"batch_id,string,omitempty"`
	Items        []DrawnItemView   `json:"items"`
	Achievements []AchievementView `json:"achievements"`
}

// PullHistoryResponse 抽卡记录
type PullHistoryResponse struct {
	LifetimePulls int64               `json:"lifetime_pulls"`
	Records       []*model.PullRecord `json:"records"`
}

// Register 注册路由
func (h *GachaHandler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/banners/:banner_id/draw", h.Draw)
		api.GET("/banners/:banner_id/pool", h.Pool)
		api.GET("/items", h.ListItems)
		api.GET("/items/:item_id", h.GetItem)
		api.GET("/users/me/pulls", h.MyPulls)
	}

	// 仅供内网的目录服务调用
	internal := r.Group("/internal/v1")
	{
		internal.POST("/items/:item_id/reconcile", h.ReconcileItem)
		internal.POST("/users/:user_id/ownership-changed", h.OwnershipChanged)
		internal.POST("/banners/:banner_id/invalidate", h.InvalidateBanner)
	}
}

// Draw 抽卡
// @Summary 单抽或十连
// @Tags gacha
// @Accept json
// @Produce json
// @Param banner_id path int true "卡池 ID"
// @Param request body DrawRequest true "抽卡请求"
// @Success 200 {object} web.Response{data=DrawResponse}
// @Failure 400 {object} web.Response
// @Failure 404 {object} web.Response
// @Failure 409 {object} web.Response
// @Failure 503 {object} web.Response
// @Router /api/v1/banners/{banner_id}/draw [post]
func (h *GachaHandler) Draw(c *gin.Context) {
	bannerID, ok := pathID(c, "banner_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req DrawRequest
	if !web.BindJSON(c, &req) {
		return
	}

	res, err := h.svc.PerformDraw(c.Request.Context(), actor, bannerID, req.Count)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := DrawResponse{
		BannerID:     res.BannerID,
		BatchID:      res.BatchID,
		Items:        make([]DrawnItemView, 0, len(res.Items)),
		Achievements: achievementViews(res.Achievements),
	}
	for _, d := range res.Items {
		resp.Items = append(resp.Items, DrawnItemView{
			ItemID:       d.Item.ID,
			Name:         d.Item.Name,
			Tier:         int16(d.Item.Tier),
			IsNewlyOwned: d.IsNewlyOwned,
			IsPickup:     d.IsPickup,
		})
	}
	web.Success(c, resp)
}

// Pool 卡池概率与物品
func (h *GachaHandler) Pool(c *gin.Context) {
	bannerID, ok := pathID(c, "banner_id")
	if !ok {
		return
	}
	info, err := h.svc.PoolInfo(c.Request.Context(), bannerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Success(c, info)
}

// ListItems 按稀有度列出物品，?tier=1|2|3
func (h *GachaHandler) ListItems(c *gin.Context) {
	n, err := strconv.Atoi(c.Query("tier"))
	tier := model.Tier(n)
	if err != nil || !tier.Valid() {
		web.Error(c, weberrors.CodeInvalidParams, "tier must be 1, 2 or 3")
		return
	}
	items, err := h.svc.ListItemsByTier(c.Request.Context(), tier)
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []*model.Item{}
	}
	web.Success(c, items)
}

// GetItem 查询单个物品
func (h *GachaHandler) GetItem(c *gin.Context) {
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	item, err := h.svc.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Success(c, item)
}

// MyPulls 当前用户的累计抽数与最近记录，?limit=N
func (h *GachaHandler) MyPulls(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if !actor.Authenticated() {
		web.Error(c, weberrors.CodeUnauthorized, HeaderUserID+" header is required")
		return
	}

	limit := defaultPullHistory
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			web.Error(c, weberrors.CodeInvalidParams, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPullHistory)
	}

	ctx := c.Request.Context()
	total, err := h.svc.LifetimePulls(ctx, actor.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	records, err := h.svc.RecentPulls(ctx, actor.UserID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []*model.PullRecord{}
	}
	web.Success(c, PullHistoryResponse{LifetimePulls: total, Records: records})
}

// ReconcileItem 物品属性变化后修正引用它的卡池
func (h *GachaHandler) ReconcileItem(c *gin.Context) {
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	changed, err := h.svc.ReconcileItem(c.Request.Context(), itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if changed == nil {
		changed = []int64{}
	}
	web.Success(c, gin.H{"banner_ids": changed})
}

// OwnershipChanged 持有变化后检查收集类成就
func (h *GachaHandler) OwnershipChanged(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	unlocked, err := h.svc.OnOwnershipChanged(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	web.Success(c, gin.H{"achievements": achievementViews(unlocked)})
}

// InvalidateBanner 卡池配置变化后清除缓存
func (h *GachaHandler) InvalidateBanner(c *gin.Context) {
	bannerID, ok := pathID(c, "banner_id")
	if !ok {
		return
	}
	h.svc.InvalidateBanner(c.Request.Context(), bannerID)
	web.Success(c, nil)
}

// fail 把领域错误映射为业务错误码
func (h *GachaHandler) fail(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, model.ErrInvalidCount):
		web.Error(c, weberrors.CodeInvalidParams, err.Error())
	case errors.Is(err, model.ErrBannerNotFound), errors.Is(err, model.ErrItemNotFound):
		web.Error(c, weberrors.CodeNotFound, err.Error())
	case errors.Is(err, model.ErrConfiguration), errors.Is(err, model.ErrPoolExhausted):
		h.logger.WarnContext(ctx, "banner cannot be drawn", "path", c.FullPath(), "error", err)
		web.Error(c, weberrors.CodeConflict, err.Error())
	case errors.Is(err, model.ErrPersistence):
		h.logger.ErrorContext(ctx, "persistence failure", "path", c.FullPath(), "error", err)
		h.report(c, err)
		web.Error(c, weberrors.CodeUnavailable, "pull could not be recorded, please retry")
	default:
		h.logger.ErrorContext(ctx, "request failed", "path", c.FullPath(), "error", err)
		h.report(c, err)
		web.Error(c, weberrors.CodeInternalError, "internal error")
	}
}

func (h *GachaHandler) report(c *gin.Context, err error) {
	if h.reporter == nil {
		return
	}
	tags := map[string]string{"route": c.FullPath()}
	if id := c.Param("banner_id"); id != "" {
		tags["banner_id"] = id
	}
	h.reporter.Report(c.Request.Context(), err, tags)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		web.Error(c, weberrors.CodeInvalidParams, "invalid "+name)
		return 0, false
	}
	return id, true
}

// actorFrom 从网关头部解析用户，没有头部时为匿名
func actorFrom(c *gin.Context) (model.Actor, bool) {
	raw := c.GetHeader(HeaderUserID)
	if raw == "" {
		return model.Anonymous, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		web.Error(c, weberrors.CodeInvalidParams, "invalid "+HeaderUserID+" header")
		return model.Actor{}, false
	}
	c.Request = c.Request.WithContext(logger.WithContextFields(c.Request.Context(), logger.FieldUserID, id))
	return model.Actor{UserID: id}, true
}

func achievementViews(list []*model.Achievement) []AchievementView {
	out := make([]AchievementView, 0, len(list))
	for _, a := range list {
		out = append(out, AchievementView{Key: a.Key, Name: a.Name, Category: string(a.Category)})
	}
	return out
}
