package repo

import (
	"context"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
)

type OccurrenceRepo struct {
	orz.Repository[models.AlertOccurrence, string]
	db *gorm.DB
}

func NewOccurrenceRepo(db *gorm.DB) *OccurrenceRepo {
	return &OccurrenceRepo{
		Repository: orz.NewRepository[models.AlertOccurrence, string](db),
		db:         db,
	}
}

// CreateIfNoRecentActive 冷却窗口内无 active 事件时插入新事件
// 插入和检查在同一条 SQL 中完成，定时检查和手动检查并发时也不会重复触发
// 返回是否插入成功（false 表示被冷却窗口抑制）
func (r *OccurrenceRepo) CreateIfNoRecentActive(ctx context.Context, occ *models.AlertOccurrence, windowStart int64) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO alert_occurrences
			(id, rule_id, rule_name, metric, value, threshold, operator, status, severity, message,
			 acknowledged_by, acknowledged_at, resolved_by, resolved_at, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, '', 0, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM alert_occurrences
			WHERE rule_id = ? AND status = ? AND created_at > ?
		)`,
		occ.ID, occ.RuleID, occ.RuleName, occ.Metric, occ.Value, occ.Threshold, occ.Operator,
		occ.Status, occ.Severity, occ.Message, occ.CreatedAt,
		occ.RuleID, models.OccurrenceStatusActive, windowStart,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Acknowledge 确认告警：active -> acknowledged
// 返回实际更新的行数，0 表示当前状态不允许该转换
func (r *OccurrenceRepo) Acknowledge(ctx context.Context, id, by string, at int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AlertOccurrence{}).
		Where("id = ? AND status = ?", id, models.OccurrenceStatusActive).
		Updates(map[string]interface{}{
			"status":          models.OccurrenceStatusAcknowledged,
			"acknowledged_by": by,
			"acknowledged_at": at,
		})
	return result.RowsAffected, result.Error
}

// Resolve 解决告警：active/acknowledged -> resolved
// resolved 为终态，不允许再转换
func (r *OccurrenceRepo) Resolve(ctx context.Context, id, by string, at int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AlertOccurrence{}).
		Where("id = ? AND status IN ?", id, []models.OccurrenceStatus{
			models.OccurrenceStatusActive,
			models.OccurrenceStatusAcknowledged,
		}).
		Updates(map[string]interface{}{
			"status":      models.OccurrenceStatusResolved,
			"resolved_by": by,
			"resolved_at": at,
		})
	return result.RowsAffected, result.Error
}

// FindLatestActiveByRule 查询规则最近一条 active 事件
func (r *OccurrenceRepo) FindLatestActiveByRule(ctx context.Context, ruleID string) (*models.AlertOccurrence, error) {
	var occ models.AlertOccurrence
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND status = ?", ruleID, models.OccurrenceStatusActive).
		Order("created_at DESC").
		First(&occ).Error
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

// CountByRule 统计规则的事件数量
func (r *OccurrenceRepo) CountByRule(ctx context.Context, ruleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AlertOccurrence{}).
		Where("rule_id = ?", ruleID).
		Count(&count).Error
	return count, err
}
