package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-orz/orz"
	"github.com/google/uuid"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrRuleNotFound      = orz.NewError(404, "规则不存在")
	ErrOccurrenceInvalid = orz.NewError(400, "告警当前状态不允许该操作")
	ErrNoSnapshot        = orz.NewError(400, "暂无采样数据")
)

type AlertService struct {
	logger *zap.Logger
	*repo.RuleRepo
	*orz.Service
	OccurrenceRepo    *repo.OccurrenceRepo
	snapshotService   *SnapshotService
	escalationService *EscalationService
}

func NewAlertService(logger *zap.Logger, db *gorm.DB, snapshotService *SnapshotService, escalationService *EscalationService) *AlertService {
	return &AlertService{
		logger:            logger,
		Service:           orz.NewService(db),
		RuleRepo:          repo.NewRuleRepo(db),
		OccurrenceRepo:    repo.NewOccurrenceRepo(db),
		snapshotService:   snapshotService,
		escalationService: escalationService,
	}
}

type EscalationStepRequest struct {
	Level               int                         `json:"level" validate:"min=1"`
	DelayMinutes        int                         `json:"delayMinutes" validate:"min=0"`
	Action              models.StepAction           `json:"action" validate:"required,oneof=notify_user notify_admin auto_cleanup scale_up"`
	NotificationChannel models.Channel              `json:"notificationChannel" validate:"omitempty,oneof=email chat in_app"`
	TargetUsers         datatypes.JSONSlice[string] `json:"targetUsers"`
}

type AlertRuleRequest struct {
	Name            string                  `json:"name" validate:"required,max=100"`
	Description     string                  `json:"description" validate:"max=500"`
	Metric          models.Metric           `json:"metric" validate:"required,oneof=memory cpu disk"`
	Threshold       float64                 `json:"threshold" validate:"min=0,max=100"`
	Operator        models.Operator         `json:"operator" validate:"required,oneof=> < >= <= =="`
	EscalationLevel models.Severity         `json:"escalationLevel" validate:"required,oneof=low medium high critical"`
	CooldownMinutes int                     `json:"cooldownMinutes" validate:"min=0"` // 0 表示未填，落库时取默认值
	IsEnabled       bool                    `json:"isEnabled"`
	NotifyUser      bool                    `json:"notifyUser"`
	NotifyAdmin     bool                    `json:"notifyAdmin"`
	AutoAction      string                  `json:"autoAction" validate:"omitempty,oneof=auto_cleanup scale_up"`
	Steps           []EscalationStepRequest `json:"steps" validate:"dive"`
}

const defaultCooldownMinutes = 5

// cooldownOrDefault 冷却时长至少 1 分钟，未填时取默认 5 分钟
func cooldownOrDefault(minutes int) int {
	if minutes < 1 {
		return defaultCooldownMinutes
	}
	return minutes
}

// CreateRule 创建规则及其升级步骤
func (s *AlertService) CreateRule(ctx context.Context, req *AlertRuleRequest, createdBy string) (*models.AlertRule, error) {
	rule := &models.AlertRule{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Description:     req.Description,
		Metric:          req.Metric,
		Threshold:       req.Threshold,
		Operator:        req.Operator,
		EscalationLevel: req.EscalationLevel,
		CooldownMinutes: cooldownOrDefault(req.CooldownMinutes),
		IsEnabled:       req.IsEnabled,
		NotifyUser:      req.NotifyUser,
		NotifyAdmin:     req.NotifyAdmin,
		AutoAction:      req.AutoAction,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UnixMilli(),
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.RuleRepo.Create(ctx, rule); err != nil {
			return err
		}
		return s.RuleRepo.ReplaceSteps(ctx, rule.ID, buildSteps(rule.ID, req.Steps))
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule 更新规则及其升级步骤
// 规则的历史告警记录不受规则修改影响
func (s *AlertService) UpdateRule(ctx context.Context, id string, req *AlertRuleRequest) (*models.AlertRule, error) {
	rule, err := s.RuleRepo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	rule.Name = req.Name
	rule.Description = req.Description
	rule.Metric = req.Metric
	rule.Threshold = req.Threshold
	rule.Operator = req.Operator
	rule.EscalationLevel = req.EscalationLevel
	rule.CooldownMinutes = cooldownOrDefault(req.CooldownMinutes)
	rule.IsEnabled = req.IsEnabled
	rule.NotifyUser = req.NotifyUser
	rule.NotifyAdmin = req.NotifyAdmin
	rule.AutoAction = req.AutoAction

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.RuleRepo.Save(ctx, &rule); err != nil {
			return err
		}
		return s.RuleRepo.ReplaceSteps(ctx, rule.ID, buildSteps(rule.ID, req.Steps))
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteRule 删除规则并级联删除升级步骤
func (s *AlertService) DeleteRule(ctx context.Context, id string) error {
	if _, err := s.RuleRepo.FindById(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	return s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.RuleRepo.DeleteStepsByRule(ctx, id); err != nil {
			return err
		}
		return s.RuleRepo.DeleteById(ctx, id)
	})
}

func buildSteps(ruleID string, reqs []EscalationStepRequest) []models.EscalationStep {
	steps := make([]models.EscalationStep, 0, len(reqs))
	for _, req := range reqs {
		steps = append(steps, models.EscalationStep{
			ID:                  uuid.NewString(),
			RuleID:              ruleID,
			Level:               req.Level,
			DelayMinutes:        req.DelayMinutes,
			Action:              req.Action,
			NotificationChannel: req.NotificationChannel,
			TargetUsers:         req.TargetUsers,
		})
	}
	return steps
}

// SetRuleEnabled 启用/停用规则
func (s *AlertService) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	rule, err := s.RuleRepo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	rule.IsEnabled = enabled
	return s.RuleRepo.Save(ctx, &rule)
}

// Evaluate 阈值判断
// 浮点读数先四舍五入到两位小数再比较，== 按两位小数相等判断
func Evaluate(op models.Operator, value, threshold float64) bool {
	v := round2(value)
	t := round2(threshold)
	switch op {
	case models.OperatorGreater:
		return v > t
	case models.OperatorLess:
		return v < t
	case models.OperatorGreaterEqual:
		return v >= t
	case models.OperatorLessEqual:
		return v <= t
	case models.OperatorEqual:
		return v == t
	default:
		return false
	}
}

// MetricValue 从快照中取出规则对应的指标读数
func MetricValue(snapshot *models.Snapshot, metric models.Metric) (float64, bool) {
	switch metric {
	case models.MetricMemory:
		return snapshot.MemoryPercent, true
	case models.MetricCPU:
		return snapshot.CPUPercent, true
	case models.MetricDisk:
		return snapshot.DiskPercent, true
	default:
		return 0, false
	}
}

// CheckAll 对所有启用规则执行一轮检查
// 每次检查现场采集新快照，不使用缓存或历史数据
// 单条规则出错只记录日志并继续，不影响其他规则
func (s *AlertService) CheckAll(ctx context.Context) error {
	rules, err := s.RuleRepo.FindEnabled(ctx)
	if err != nil {
		s.logger.Error("查询启用规则失败", zap.Error(err))
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	snapshot := s.snapshotService.SampleFresh(ctx)

	for i := range rules {
		rule := &rules[i]
		if _, err := s.checkRule(ctx, rule, snapshot); err != nil {
			s.logger.Error("规则检查失败",
				zap.String("ruleId", rule.ID),
				zap.String("ruleName", rule.Name),
				zap.Error(err),
			)
		}
	}
	return nil
}

// checkRule 检查单条规则，触发且不在冷却期时创建告警并启动升级流程
func (s *AlertService) checkRule(ctx context.Context, rule *models.AlertRule, snapshot *models.Snapshot) (*models.AlertOccurrence, error) {
	value, ok := MetricValue(snapshot, rule.Metric)
	if !ok {
		return nil, fmt.Errorf("未知指标: %s", rule.Metric)
	}

	if !Evaluate(rule.Operator, value, rule.Threshold) {
		return nil, nil
	}

	now := time.Now().UnixMilli()
	occ := &models.AlertOccurrence{
		ID:        uuid.NewString(),
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Metric:    rule.Metric,
		Value:     round2(value),
		Threshold: rule.Threshold,
		Operator:  rule.Operator,
		Status:    models.OccurrenceStatusActive,
		Severity:  rule.EscalationLevel,
		Message:   fmt.Sprintf("%s 当前值 %.2f%%，触发条件 %s %.2f%%", rule.Metric, round2(value), rule.Operator, rule.Threshold),
		CreatedAt: now,
	}

	windowStart := now - int64(rule.CooldownMinutes)*60*1000
	inserted, err := s.OccurrenceRepo.CreateIfNoRecentActive(ctx, occ, windowStart)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// 冷却窗口内已有 active 告警，本次触发被抑制
		return nil, nil
	}

	s.logger.Info("告警触发",
		zap.String("ruleId", rule.ID),
		zap.String("ruleName", rule.Name),
		zap.Float64("value", occ.Value),
		zap.Float64("threshold", occ.Threshold),
	)

	s.escalationService.Dispatch(rule, occ)
	return occ, nil
}

// TestResult 手动测试规则的结果
type TestResult struct {
	Triggered  bool                    `json:"triggered"`
	Suppressed bool                    `json:"suppressed"` // 触发但在冷却期内被抑制
	Value      float64                 `json:"value"`
	Threshold  float64                 `json:"threshold"`
	Operator   models.Operator         `json:"operator"`
	Occurrence *models.AlertOccurrence `json:"occurrence,omitempty"`
}

// TestRule 手动对单条规则执行一次检查
// 与定时检查走同一条路径，冷却窗口同样生效
func (s *AlertService) TestRule(ctx context.Context, id string) (*TestResult, error) {
	rule, err := s.RuleRepo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	snapshot := s.snapshotService.SampleFresh(ctx)
	value, ok := MetricValue(snapshot, rule.Metric)
	if !ok {
		return nil, fmt.Errorf("未知指标: %s", rule.Metric)
	}

	result := &TestResult{
		Value:     round2(value),
		Threshold: rule.Threshold,
		Operator:  rule.Operator,
	}
	if !Evaluate(rule.Operator, value, rule.Threshold) {
		return result, nil
	}

	result.Triggered = true
	occ, err := s.checkRule(ctx, &rule, snapshot)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		result.Suppressed = true
	} else {
		result.Occurrence = occ
	}
	return result, nil
}

// Acknowledge 确认告警
func (s *AlertService) Acknowledge(ctx context.Context, id, by string) error {
	affected, err := s.OccurrenceRepo.Acknowledge(ctx, id, by, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOccurrenceInvalid
	}
	return nil
}

// Resolve 解决告警
func (s *AlertService) Resolve(ctx context.Context, id, by string) error {
	affected, err := s.OccurrenceRepo.Resolve(ctx, id, by, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOccurrenceInvalid
	}
	return nil
}

// RuleDetail 规则详情（含升级步骤）
func (s *AlertService) RuleDetail(ctx context.Context, id string) (orz.Map, error) {
	rule, err := s.RuleRepo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	steps, err := s.RuleRepo.FindStepsByRule(ctx, id)
	if err != nil {
		return nil, err
	}
	return orz.Map{
		"rule":  rule,
		"steps": steps,
	}, nil
}
