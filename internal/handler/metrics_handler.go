package handler

import (
	"strconv"
	"time"

	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/service"
	"go.uber.org/zap"
)

// MetricsHandler 面板数据查询接口
// 查询接口在存储不可用时降级为空结果，只记录日志不向前端报错
type MetricsHandler struct {
	logger          *zap.Logger
	snapshotService *service.SnapshotService
	rollupService   *service.RollupService
}

func NewMetricsHandler(logger *zap.Logger, snapshotService *service.SnapshotService, rollupService *service.RollupService) *MetricsHandler {
	return &MetricsHandler{
		logger:          logger,
		snapshotService: snapshotService,
		rollupService:   rollupService,
	}
}

// Latest 最新一次快照
func (h *MetricsHandler) Latest(c echo.Context) error {
	ctx := c.Request().Context()
	snapshot, err := h.snapshotService.Latest(ctx)
	if err != nil {
		h.logger.Error("查询最新快照失败", zap.Error(err))
		return orz.Ok(c, nil)
	}
	return orz.Ok(c, snapshot)
}

// ListSnapshots 按时间范围查询原始快照，默认返回最近一小时
func (h *MetricsHandler) ListSnapshots(c echo.Context) error {
	now := time.Now().UnixMilli()
	start := queryInt64(c, "start", now-int64(time.Hour/time.Millisecond))
	end := queryInt64(c, "end", now)

	ctx := c.Request().Context()
	snapshots, err := h.snapshotService.FindByRange(ctx, start, end)
	if err != nil {
		h.logger.Error("查询快照失败", zap.Error(err))
		return orz.Ok(c, []models.Snapshot{})
	}
	return orz.Ok(c, snapshots)
}

// ListHourly 按时间范围查询小时聚合，默认返回最近 24 小时
func (h *MetricsHandler) ListHourly(c echo.Context) error {
	now := time.Now().UnixMilli()
	start := queryInt64(c, "start", now-24*int64(time.Hour/time.Millisecond))
	end := queryInt64(c, "end", now)

	ctx := c.Request().Context()
	rollups, err := h.rollupService.FindHourlyByRange(ctx, start, end)
	if err != nil {
		h.logger.Error("查询小时聚合失败", zap.Error(err))
		return orz.Ok(c, []models.HourlyRollup{})
	}
	return orz.Ok(c, rollups)
}

// ListDaily 按日期范围查询天级聚合，默认返回最近 30 天
func (h *MetricsHandler) ListDaily(c echo.Context) error {
	now := time.Now().UTC()
	startDate := c.QueryParam("startDate")
	if startDate == "" {
		startDate = now.AddDate(0, 0, -30).Format("2006-01-02")
	}
	endDate := c.QueryParam("endDate")
	if endDate == "" {
		endDate = now.Format("2006-01-02")
	}

	ctx := c.Request().Context()
	rollups, err := h.rollupService.FindDailyByRange(ctx, startDate, endDate)
	if err != nil {
		h.logger.Error("查询天级聚合失败", zap.Error(err))
		return orz.Ok(c, []models.DailyRollup{})
	}
	return orz.Ok(c, rollups)
}

func queryInt64(c echo.Context, name string, defaultValue int64) int64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
