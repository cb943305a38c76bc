//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/google/wire"
	"github.com/vendops/vendwatch/internal/config"
	"github.com/vendops/vendwatch/internal/handler"
	"github.com/vendops/vendwatch/internal/service"
	"github.com/vendops/vendwatch/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, cfg *config.Config) (*AppComponents, error) {
	wire.Build(
		provideClock,
		provideSampler,
		provideMaintenanceHook,
		provideSenders,

		provideSnapshotService,
		provideRollupService,
		service.NewNotificationService,
		service.NewEscalationService,
		service.NewAlertService,
		service.NewUserService,

		// WebSocket Manager
		websocket.NewManager,

		// Handlers
		handler.NewMetricsHandler,
		handler.NewAlertHandler,
		handler.NewUserHandler,
		handler.NewNotificationWSHandler,

		// App Components
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
