package service

import (
	"context"

	"github.com/vendops/vendwatch/internal/models"
	"go.uber.org/zap"
)

// MaintenanceHook 自动处置动作的执行入口
// 真实环境中对接运维平台，默认实现只记录日志
type MaintenanceHook interface {
	Cleanup(ctx context.Context, occ *models.AlertOccurrence) error
	ScaleUp(ctx context.Context, occ *models.AlertOccurrence) error
}

type LoggingMaintenanceHook struct {
	logger *zap.Logger
}

func NewLoggingMaintenanceHook(logger *zap.Logger) *LoggingMaintenanceHook {
	return &LoggingMaintenanceHook{logger: logger}
}

func (h *LoggingMaintenanceHook) Cleanup(ctx context.Context, occ *models.AlertOccurrence) error {
	h.logger.Info("执行自动清理",
		zap.String("alertId", occ.ID),
		zap.String("metric", string(occ.Metric)),
		zap.Float64("value", occ.Value),
	)
	return nil
}

func (h *LoggingMaintenanceHook) ScaleUp(ctx context.Context, occ *models.AlertOccurrence) error {
	h.logger.Info("执行自动扩容",
		zap.String("alertId", occ.ID),
		zap.String("metric", string(occ.Metric)),
		zap.Float64("value", occ.Value),
	)
	return nil
}
