package internal

import (
	"time"

	"github.com/vendops/vendwatch/internal/config"
	"github.com/vendops/vendwatch/internal/handler"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/sampler"
	"github.com/vendops/vendwatch/internal/scheduler"
	"github.com/vendops/vendwatch/internal/service"
	"github.com/vendops/vendwatch/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppComponents 应用组件
type AppComponents struct {
	MetricsHandler        *handler.MetricsHandler
	AlertHandler          *handler.AlertHandler
	UserHandler           *handler.UserHandler
	NotificationWSHandler *handler.NotificationWSHandler

	SnapshotService     *service.SnapshotService
	RollupService       *service.RollupService
	AlertService        *service.AlertService
	EscalationService   *service.EscalationService
	NotificationService *service.NotificationService
	UserService         *service.UserService

	WSManager *websocket.Manager
	Clock     scheduler.Clock
}

// provideClock 提供系统时钟
func provideClock() scheduler.Clock {
	return scheduler.SystemClock()
}

// provideSampler 提供主机采集器
func provideSampler(logger *zap.Logger, cfg *config.Config) sampler.Sampler {
	return sampler.NewHostSampler(logger, sampler.Config{
		DiskPath:             cfg.Sampling.DiskPath,
		StaleProcessPatterns: cfg.Sampling.StaleProcessPatterns,
		StaleProcessMaxAge:   time.Duration(cfg.Sampling.StaleProcessMaxAgeMinutes) * time.Minute,
	})
}

func provideSnapshotService(logger *zap.Logger, db *gorm.DB, hostSampler sampler.Sampler, cfg *config.Config) *service.SnapshotService {
	return service.NewSnapshotService(logger, db, hostSampler, cfg.Retention.SnapshotDays)
}

func provideRollupService(logger *zap.Logger, db *gorm.DB, cfg *config.Config) *service.RollupService {
	return service.NewRollupService(logger, db, cfg.Retention.HourlyDays)
}

func provideMaintenanceHook(logger *zap.Logger) service.MaintenanceHook {
	return service.NewLoggingMaintenanceHook(logger)
}

// provideSenders 提供各通知渠道的投递实现
func provideSenders(logger *zap.Logger, cfg *config.Config, wsManager *websocket.Manager) map[models.Channel]service.ChannelSender {
	return map[models.Channel]service.ChannelSender{
		models.ChannelEmail: service.NewEmailSender(logger, cfg.SMTP),
		models.ChannelChat:  service.NewChatSender(logger, cfg.Chat),
		models.ChannelInApp: service.NewInAppSender(logger, wsManager),
	}
}
