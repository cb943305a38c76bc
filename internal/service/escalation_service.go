package service

import (
	"context"
	"time"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	"github.com/vendops/vendwatch/internal/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EscalationService 告警升级服务
// 告警触发后按 level 升序依次执行升级步骤，步骤延迟在进程内等待，
// 进程重启后未执行完的步骤不会恢复
type EscalationService struct {
	logger *zap.Logger
	*orz.Service
	ruleRepo       *repo.RuleRepo
	occurrenceRepo *repo.OccurrenceRepo
	userRepo       *repo.UserRepo
	notifier       *NotificationService
	maintenance    MaintenanceHook
	clock          scheduler.Clock
}

func NewEscalationService(logger *zap.Logger, db *gorm.DB, notifier *NotificationService, maintenance MaintenanceHook, clock scheduler.Clock) *EscalationService {
	if clock == nil {
		clock = scheduler.SystemClock()
	}
	if maintenance == nil {
		maintenance = NewLoggingMaintenanceHook(logger)
	}
	return &EscalationService{
		logger:         logger,
		Service:        orz.NewService(db),
		ruleRepo:       repo.NewRuleRepo(db),
		occurrenceRepo: repo.NewOccurrenceRepo(db),
		userRepo:       repo.NewUserRepo(db),
		notifier:       notifier,
		maintenance:    maintenance,
		clock:          clock,
	}
}

// Dispatch 异步启动升级流程，不阻塞触发方
func (s *EscalationService) Dispatch(rule *models.AlertRule, occ *models.AlertOccurrence) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("升级流程 panic",
					zap.String("alertId", occ.ID),
					zap.Any("panic", r),
				)
			}
		}()
		s.Run(context.Background(), rule, occ)
	}()
}

// Run 同步执行升级流程
// 步骤按 level 升序执行，单个步骤失败只记录日志，不中断后续步骤
func (s *EscalationService) Run(ctx context.Context, rule *models.AlertRule, occ *models.AlertOccurrence) {
	steps, err := s.ruleRepo.FindStepsByRule(ctx, rule.ID)
	if err != nil {
		s.logger.Error("查询升级步骤失败", zap.String("ruleId", rule.ID), zap.Error(err))
		return
	}
	if len(steps) == 0 {
		steps = s.defaultSteps(rule)
	}

	for i := range steps {
		step := &steps[i]

		if step.DelayMinutes > 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(time.Duration(step.DelayMinutes) * time.Minute):
			}
			// 延迟期间告警可能已被确认或解决，升级到此为止
			if !s.stillActive(ctx, occ.ID) {
				s.logger.Info("告警已不再活跃，停止升级",
					zap.String("alertId", occ.ID),
					zap.Int("level", step.Level),
				)
				return
			}
		}

		if err := s.executeStep(ctx, rule, occ, step); err != nil {
			s.logger.Error("升级步骤执行失败",
				zap.String("alertId", occ.ID),
				zap.Int("level", step.Level),
				zap.String("action", string(step.Action)),
				zap.Error(err),
			)
		}
	}
}

// defaultSteps 规则未配置升级步骤时，根据规则的通知开关合成默认步骤
func (s *EscalationService) defaultSteps(rule *models.AlertRule) []models.EscalationStep {
	var steps []models.EscalationStep
	level := 1
	if rule.NotifyUser {
		steps = append(steps, models.EscalationStep{
			RuleID:              rule.ID,
			Level:               level,
			Action:              models.StepActionNotifyUser,
			NotificationChannel: models.ChannelInApp,
		})
		level++
	}
	if rule.NotifyAdmin {
		steps = append(steps, models.EscalationStep{
			RuleID:              rule.ID,
			Level:               level,
			Action:              models.StepActionNotifyAdmin,
			NotificationChannel: models.ChannelEmail,
		})
		level++
	}
	if rule.AutoAction != "" {
		steps = append(steps, models.EscalationStep{
			RuleID: rule.ID,
			Level:  level,
			Action: models.StepAction(rule.AutoAction),
		})
	}
	return steps
}

func (s *EscalationService) stillActive(ctx context.Context, alertID string) bool {
	occ, err := s.occurrenceRepo.FindById(ctx, alertID)
	if err != nil {
		// 查不到状态时按继续处理，告警路径宁可多通知也不静默丢弃
		s.logger.Warn("查询告警状态失败，继续升级", zap.String("alertId", alertID), zap.Error(err))
		return true
	}
	return occ.Status == models.OccurrenceStatusActive
}

func (s *EscalationService) executeStep(ctx context.Context, rule *models.AlertRule, occ *models.AlertOccurrence, step *models.EscalationStep) error {
	channel := step.NotificationChannel
	if channel == "" {
		channel = models.ChannelInApp
	}

	switch step.Action {
	case models.StepActionNotifyUser:
		targets := []string(step.TargetUsers)
		if len(targets) == 0 && rule.CreatedBy != "" {
			targets = []string{rule.CreatedBy}
		}
		return s.notifier.Notify(ctx, occ, targets, channel)

	case models.StepActionNotifyAdmin:
		// 步骤显式配置了目标用户时按配置通知，管理员目录只是缺省
		targets := []string(step.TargetUsers)
		if len(targets) == 0 {
			admins, err := s.userRepo.FindAdmins(ctx)
			if err != nil {
				return err
			}
			for _, admin := range admins {
				targets = append(targets, admin.ID)
			}
		}
		return s.notifier.Notify(ctx, occ, targets, channel)

	case models.StepActionAutoCleanup:
		return s.maintenance.Cleanup(ctx, occ)

	case models.StepActionScaleUp:
		return s.maintenance.ScaleUp(ctx, occ)

	default:
		s.logger.Warn("未知升级动作", zap.String("action", string(step.Action)))
		return nil
	}
}
