package repo

import (
	"context"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
)

type RuleRepo struct {
	orz.Repository[models.AlertRule, string]
	db *gorm.DB
}

func NewRuleRepo(db *gorm.DB) *RuleRepo {
	return &RuleRepo{
		Repository: orz.NewRepository[models.AlertRule, string](db),
		db:         db,
	}
}

// FindEnabled 查询所有启用的规则
func (r *RuleRepo) FindEnabled(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := r.GetDB(ctx).
		Where("is_enabled = ?", true).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

// FindStepsByRule 查询规则的升级步骤，按 level 升序返回
// 存储中的插入顺序不影响执行顺序
func (r *RuleRepo) FindStepsByRule(ctx context.Context, ruleID string) ([]models.EscalationStep, error) {
	var steps []models.EscalationStep
	err := r.GetDB(ctx).
		Where("rule_id = ?", ruleID).
		Order("level ASC").
		Find(&steps).Error
	return steps, err
}

// ReplaceSteps 覆盖规则的升级步骤
// 跟随上下文中的事务执行，原子性由调用方的事务保证
func (r *RuleRepo) ReplaceSteps(ctx context.Context, ruleID string, steps []models.EscalationStep) error {
	db := r.GetDB(ctx)
	if err := db.Where("rule_id = ?", ruleID).Delete(&models.EscalationStep{}).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	return db.Create(&steps).Error
}

// DeleteStepsByRule 删除规则的全部升级步骤
func (r *RuleRepo) DeleteStepsByRule(ctx context.Context, ruleID string) error {
	return r.GetDB(ctx).Where("rule_id = ?", ruleID).Delete(&models.EscalationStep{}).Error
}
