package repo

import (
	"context"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
)

type NotificationRepo struct {
	orz.Repository[models.NotificationIntent, string]
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) *NotificationRepo {
	return &NotificationRepo{
		Repository: orz.NewRepository[models.NotificationIntent, string](db),
		db:         db,
	}
}

// CreateBatch 批量创建投递意图
func (r *NotificationRepo) CreateBatch(ctx context.Context, intents []models.NotificationIntent) error {
	if len(intents) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&intents).Error
}

// MarkSent 标记投递成功
func (r *NotificationRepo) MarkSent(ctx context.Context, id string, sentAt int64) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.IntentStatusSent,
			"sent_at":        sentAt,
			"failure_reason": "",
		}).Error
}

// MarkFailed 标记投递失败（不自动重试，等待人工重发）
func (r *NotificationRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.IntentStatusFailed,
			"failure_reason": reason,
		}).Error
}

// FindByAlert 查询某次告警的全部投递意图
func (r *NotificationRepo) FindByAlert(ctx context.Context, alertID string) ([]models.NotificationIntent, error) {
	var intents []models.NotificationIntent
	err := r.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&intents).Error
	return intents, err
}
