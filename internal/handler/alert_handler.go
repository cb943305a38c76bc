package handler

import (
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"github.com/vendops/vendwatch/internal/service"
	"go.uber.org/zap"
)

type AlertHandler struct {
	logger              *zap.Logger
	alertService        *service.AlertService
	notificationService *service.NotificationService
}

func NewAlertHandler(logger *zap.Logger, alertService *service.AlertService, notificationService *service.NotificationService) *AlertHandler {
	return &AlertHandler{
		logger:              logger,
		alertService:        alertService,
		notificationService: notificationService,
	}
}

// PagingRules 规则分页查询
func (h *AlertHandler) PagingRules(c echo.Context) error {
	name := c.QueryParam("name")
	metric := c.QueryParam("metric")

	pr := orz.GetPageRequest(c, "created_at", "name")

	builder := orz.NewPageBuilder(h.alertService.RuleRepo).
		PageRequest(pr).
		Contains("name", name)

	if metric != "" {
		builder = builder.Equal("metric", metric)
	}

	ctx := c.Request().Context()
	page, err := builder.Execute(ctx)
	if err != nil {
		return err
	}

	return orz.Ok(c, orz.Map{
		"items": page.Items,
		"total": page.Total,
	})
}

// CreateRule 创建规则
func (h *AlertHandler) CreateRule(c echo.Context) error {
	var req service.AlertRuleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	createdBy := c.QueryParam("userId")
	rule, err := h.alertService.CreateRule(c.Request().Context(), &req, createdBy)
	if err != nil {
		return err
	}
	return orz.Ok(c, rule)
}

// GetRule 规则详情（含升级步骤）
func (h *AlertHandler) GetRule(c echo.Context) error {
	detail, err := h.alertService.RuleDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return orz.Ok(c, detail)
}

// UpdateRule 更新规则
func (h *AlertHandler) UpdateRule(c echo.Context) error {
	var req service.AlertRuleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	rule, err := h.alertService.UpdateRule(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return err
	}
	return orz.Ok(c, rule)
}

// DeleteRule 删除规则
func (h *AlertHandler) DeleteRule(c echo.Context) error {
	if err := h.alertService.DeleteRule(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// EnableRule 启用规则
func (h *AlertHandler) EnableRule(c echo.Context) error {
	if err := h.alertService.SetRuleEnabled(c.Request().Context(), c.Param("id"), true); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// DisableRule 停用规则
func (h *AlertHandler) DisableRule(c echo.Context) error {
	if err := h.alertService.SetRuleEnabled(c.Request().Context(), c.Param("id"), false); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// TestRule 手动测试规则，冷却窗口同样生效
func (h *AlertHandler) TestRule(c echo.Context) error {
	result, err := h.alertService.TestRule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return orz.Ok(c, result)
}

// CheckAll 手动触发一轮全量规则检查
func (h *AlertHandler) CheckAll(c echo.Context) error {
	if err := h.alertService.CheckAll(c.Request().Context()); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// PagingOccurrences 告警记录分页查询
func (h *AlertHandler) PagingOccurrences(c echo.Context) error {
	status := c.QueryParam("status")
	ruleID := c.QueryParam("ruleId")
	severity := c.QueryParam("severity")

	pr := orz.GetPageRequest(c, "created_at", "rule_name")

	builder := orz.NewPageBuilder(h.alertService.OccurrenceRepo).
		PageRequest(pr)

	if status != "" {
		builder = builder.Equal("status", status)
	}
	if ruleID != "" {
		builder = builder.Equal("rule_id", ruleID)
	}
	if severity != "" {
		builder = builder.Equal("severity", severity)
	}

	ctx := c.Request().Context()
	page, err := builder.Execute(ctx)
	if err != nil {
		return err
	}

	return orz.Ok(c, orz.Map{
		"items": page.Items,
		"total": page.Total,
	})
}

type occurrenceActionRequest struct {
	By string `json:"by" validate:"required"`
}

// AcknowledgeOccurrence 确认告警
func (h *AlertHandler) AcknowledgeOccurrence(c echo.Context) error {
	var req occurrenceActionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.alertService.Acknowledge(c.Request().Context(), c.Param("id"), req.By); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// ResolveOccurrence 解决告警
func (h *AlertHandler) ResolveOccurrence(c echo.Context) error {
	var req occurrenceActionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.alertService.Resolve(c.Request().Context(), c.Param("id"), req.By); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}

// ListNotifications 查询某次告警的投递记录
func (h *AlertHandler) ListNotifications(c echo.Context) error {
	intents, err := h.notificationService.NotificationRepo.FindByAlert(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return orz.Ok(c, intents)
}

// ResendNotification 手动重发一条投递失败的通知
func (h *AlertHandler) ResendNotification(c echo.Context) error {
	intent, err := h.notificationService.Resend(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return orz.Ok(c, intent)
}
