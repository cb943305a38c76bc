package internal

import (
	"context"
	"log"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/jpillora/backoff"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/vendops/vendwatch/internal/config"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Run(configPath string) {
	err := orz.Quick(configPath, setup)
	if err != nil {
		log.Fatal(err)
	}
}

func setup(app *orz.App) error {
	// 等待数据库可用
	if err := waitDatabase(app.Logger(), app.GetDatabase()); err != nil {
		return err
	}

	// 数据库迁移
	if err := autoMigrate(app.GetDatabase()); err != nil {
		return err
	}

	// 读取应用配置
	var appConfig config.Config
	_config := app.GetConfig()
	if _config != nil {
		if err := _config.App.Unmarshal(&appConfig); err != nil {
			app.Logger().Error("读取配置失败", zap.Error(err))
			return err
		}
	}
	appConfig = appConfig.WithDefaults()

	// 初始化应用组件
	components, err := InitializeApp(app.Logger(), app.GetDatabase(), &appConfig)
	if err != nil {
		return err
	}

	ctx := context.Background()

	// 注册并启动调度任务
	sched := scheduler.NewScheduler(app.Logger(), components.Clock)
	registerJobs(sched, components, &appConfig)
	sched.Start(ctx)

	// 启动时补算一次停机期间错过的聚合窗口
	go func() {
		if err := components.RollupService.RunHourly(ctx); err != nil {
			app.Logger().Error("启动补算小时聚合失败", zap.Error(err))
		}
		if err := components.RollupService.RunDaily(ctx); err != nil {
			app.Logger().Error("启动补算天级聚合失败", zap.Error(err))
		}
	}()

	// 设置API
	setupApi(app, components)

	return nil
}

// waitDatabase 启动时等待数据库就绪，按指数退避重试
func waitDatabase(logger *zap.Logger, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	const maxAttempts = 10
	for attempt := 1; ; attempt++ {
		if err = sqlDB.Ping(); err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		wait := b.Duration()
		logger.Warn("数据库未就绪，等待重试",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		time.Sleep(wait)
	}
}

// registerJobs 注册调度任务
func registerJobs(sched *scheduler.Scheduler, components *AppComponents, cfg *config.Config) {
	// 快照采集
	sched.Every("snapshot-collect",
		time.Duration(cfg.Sampling.IntervalSeconds)*time.Second,
		func(ctx context.Context) {
			_ = components.SnapshotService.CollectOnce(ctx)
		})

	// 告警规则检查
	sched.Every("alert-check",
		time.Duration(cfg.Alerting.CheckIntervalSeconds)*time.Second,
		func(ctx context.Context) {
			_ = components.AlertService.CheckAll(ctx)
		})

	// 小时聚合（整点后 5 分钟，留出窗口收尾时间）
	_ = sched.Cron("hourly-rollup", "5 * * * *", func(ctx context.Context) {
		_ = components.RollupService.RunHourly(ctx)
	})

	// 天级聚合和小时聚合清理（每天 00:15）
	_ = sched.Cron("daily-rollup", "15 0 * * *", func(ctx context.Context) {
		_ = components.RollupService.RunDaily(ctx)
	})

	// 原始快照清理（每天 01:00，只清理已聚合的快照）
	_ = sched.Cron("snapshot-purge", "0 1 * * *", func(ctx context.Context) {
		_ = components.SnapshotService.PurgeExpired(ctx)
	})
}

func setupApi(app *orz.App, components *AppComponents) {
	logger := app.Logger()
	e := app.GetEcho()

	e.Use(middleware.Recover())
	e.Use(ErrorHandler(logger))

	customValidator := CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	api := e.Group("/api")
	{
		// 主机指标查询
		api.GET("/metrics/latest", components.MetricsHandler.Latest)
		api.GET("/metrics/snapshots", components.MetricsHandler.ListSnapshots)
		api.GET("/metrics/hourly", components.MetricsHandler.ListHourly)
		api.GET("/metrics/daily", components.MetricsHandler.ListDaily)

		// 告警规则管理
		api.GET("/alert-rules", components.AlertHandler.PagingRules)
		api.POST("/alert-rules", components.AlertHandler.CreateRule)
		api.GET("/alert-rules/:id", components.AlertHandler.GetRule)
		api.PUT("/alert-rules/:id", components.AlertHandler.UpdateRule)
		api.DELETE("/alert-rules/:id", components.AlertHandler.DeleteRule)
		api.POST("/alert-rules/:id/enable", components.AlertHandler.EnableRule)
		api.POST("/alert-rules/:id/disable", components.AlertHandler.DisableRule)
		api.POST("/alert-rules/:id/test", components.AlertHandler.TestRule)
		api.POST("/alert-rules/check", components.AlertHandler.CheckAll)

		// 告警记录
		api.GET("/alert-occurrences", components.AlertHandler.PagingOccurrences)
		api.POST("/alert-occurrences/:id/acknowledge", components.AlertHandler.AcknowledgeOccurrence)
		api.POST("/alert-occurrences/:id/resolve", components.AlertHandler.ResolveOccurrence)
		api.GET("/alert-occurrences/:id/notifications", components.AlertHandler.ListNotifications)

		// 通知投递
		api.POST("/notifications/:id/resend", components.AlertHandler.ResendNotification)

		// 通知目标用户管理
		api.GET("/users", components.UserHandler.Paging)
		api.POST("/users", components.UserHandler.Create)
		api.PUT("/users/:id", components.UserHandler.Update)
		api.DELETE("/users/:id", components.UserHandler.Delete)
	}

	// WebSocket 路由（站内通知）
	e.GET("/ws/notifications", components.NotificationWSHandler.HandleWebSocket)
}

func autoMigrate(database *gorm.DB) error {
	// 自动迁移数据库表
	return database.AutoMigrate(
		&models.Snapshot{},
		&models.HourlyRollup{},
		&models.DailyRollup{},
		&models.AlertRule{},
		&models.EscalationStep{},
		&models.AlertOccurrence{},
		&models.NotificationIntent{},
		&models.User{},
	)
}

func ErrorHandler(logger *zap.Logger) func(next echo.HandlerFunc) echo.HandlerFunc {
	var a = func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					return c.JSON(he.Code, orz.Map{
						"code":    he.Code,
						"message": err.Error(),
					})
				}

				var oe *orz.Error
				if errors.As(err, &oe) {
					return c.JSON(400, orz.Map{
						"code":    oe.Code,
						"message": err.Error(),
					})
				}

				logger.Sugar().Errorf("[ERROR] %s", err.Error())

				return c.JSON(500, orz.Map{
					"code":    500,
					"message": "Internal Server Error",
				})
			}
			return nil
		}
	}
	return a
}
