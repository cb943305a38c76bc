package service

import (
	"context"
	"math"
	"time"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const hourMillis = int64(time.Hour / time.Millisecond)
const dayMillis = 24 * hourMillis

// RollupService 层级聚合服务
// 原始快照 -> 小时聚合 -> 天级聚合，每一级只从上一级计算
// 窗口对齐和日期均使用 UTC
type RollupService struct {
	logger *zap.Logger
	*repo.RollupRepo
	*orz.Service
	snapshotRepo *repo.SnapshotRepo

	hourlyRetentionDays int
	nowFunc             func() time.Time
}

func NewRollupService(logger *zap.Logger, db *gorm.DB, hourlyRetentionDays int) *RollupService {
	if hourlyRetentionDays <= 0 {
		hourlyRetentionDays = 90
	}
	return &RollupService{
		logger:              logger,
		Service:             orz.NewService(db),
		RollupRepo:          repo.NewRollupRepo(db),
		snapshotRepo:        repo.NewSnapshotRepo(db),
		hourlyRetentionDays: hourlyRetentionDays,
		nowFunc:             time.Now,
	}
}

// RunHourly 计算所有已结束且尚未聚合的小时窗口
// 从最早的快照扫起，停机错过的窗口会在下一次运行时补算
func (s *RollupService) RunHourly(ctx context.Context) error {
	minTs, err := s.snapshotRepo.MinTimestamp(ctx)
	if err != nil {
		s.logger.Error("查询最早快照失败", zap.Error(err))
		return err
	}
	if minTs == 0 {
		return nil
	}

	now := s.nowFunc().UnixMilli()
	created := 0

	for hourStart := alignHour(minTs); hourStart+hourMillis <= now; hourStart += hourMillis {
		exists, err := s.RollupRepo.HourlyExists(ctx, hourStart)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		snapshots, err := s.snapshotRepo.FindByHour(ctx, hourStart)
		if err != nil {
			return err
		}
		// 无数据的小时不生成聚合记录
		if len(snapshots) == 0 {
			continue
		}

		rollup := aggregateHour(hourStart, snapshots)
		rollup.CreatedAt = s.nowFunc().UnixMilli()
		if err := s.RollupRepo.CreateHourly(ctx, rollup); err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		s.logger.Info("小时聚合完成", zap.Int("created", created))
	}
	return nil
}

// RunDaily 计算所有已结束且尚未聚合的日期窗口，并清理超期的小时聚合
func (s *RollupService) RunDaily(ctx context.Context) error {
	minHour, err := s.RollupRepo.MinHourlyHour(ctx)
	if err != nil {
		s.logger.Error("查询最早小时聚合失败", zap.Error(err))
		return err
	}
	if minHour == 0 {
		return nil
	}

	today := alignDay(s.nowFunc().UnixMilli())
	created := 0

	for dayStart := alignDay(minHour); dayStart < today; dayStart += dayMillis {
		date := formatDate(dayStart)
		exists, err := s.RollupRepo.DailyExists(ctx, date)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		// 当天仍有快照未完成小时聚合时先不生成天级聚合，
		// 否则迟到的小时数据永远进不了已写死的天级行
		unrolled, err := s.snapshotRepo.HasUnrolledHours(ctx, dayStart, dayStart+dayMillis)
		if err != nil {
			return err
		}
		if unrolled {
			s.logger.Warn("当天存在未聚合的小时窗口，天级聚合推迟", zap.String("date", date))
			continue
		}

		hourly, err := s.RollupRepo.FindHourlyByDay(ctx, dayStart)
		if err != nil {
			return err
		}
		if len(hourly) == 0 {
			continue
		}

		rollup := aggregateDay(date, hourly)
		rollup.CreatedAt = s.nowFunc().UnixMilli()
		if err := s.RollupRepo.CreateDaily(ctx, rollup); err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		s.logger.Info("天级聚合完成", zap.Int("created", created))
	}

	return s.purgeHourlyExpired(ctx, minHour)
}

// purgeHourlyExpired 清理超过保留期的小时聚合
// 天级聚合尚未生成的日期跳过，保证先聚合后清理
func (s *RollupService) purgeHourlyExpired(ctx context.Context, minHour int64) error {
	cutoff := alignDay(s.nowFunc().AddDate(0, 0, -s.hourlyRetentionDays).UnixMilli())

	for dayStart := alignDay(minHour); dayStart < cutoff; dayStart += dayMillis {
		date := formatDate(dayStart)
		exists, err := s.RollupRepo.DailyExists(ctx, date)
		if err != nil {
			return err
		}
		if !exists {
			s.logger.Warn("天级聚合缺失，保留该日的小时聚合", zap.String("date", date))
			continue
		}
		deleted, err := s.RollupRepo.PurgeHourlyByDay(ctx, dayStart)
		if err != nil {
			return err
		}
		if deleted > 0 {
			s.logger.Info("小时聚合清理完成", zap.String("date", date), zap.Int64("deleted", deleted))
		}
	}
	return nil
}

func aggregateHour(hourStart int64, snapshots []models.Snapshot) *models.HourlyRollup {
	rollup := &models.HourlyRollup{
		Hour:        hourStart,
		MemoryMin:   snapshots[0].MemoryPercent,
		CPUMin:      snapshots[0].CPUPercent,
		RecordCount: len(snapshots),
	}

	var memSum, cpuSum, diskSum, staleSum float64
	for _, snap := range snapshots {
		memSum += snap.MemoryPercent
		cpuSum += snap.CPUPercent
		diskSum += snap.DiskPercent
		staleSum += float64(snap.StaleProcessCount)

		rollup.MemoryMax = math.Max(rollup.MemoryMax, snap.MemoryPercent)
		rollup.MemoryMin = math.Min(rollup.MemoryMin, snap.MemoryPercent)
		rollup.CPUMax = math.Max(rollup.CPUMax, snap.CPUPercent)
		rollup.CPUMin = math.Min(rollup.CPUMin, snap.CPUPercent)
		rollup.DiskMax = math.Max(rollup.DiskMax, snap.DiskPercent)

		switch snap.HealthStatus {
		case models.HealthStatusCritical:
			rollup.CriticalEventsCount++
		case models.HealthStatusWarning:
			rollup.WarningEventsCount++
		}
	}

	n := float64(len(snapshots))
	rollup.MemoryAvg = round2(memSum / n)
	rollup.CPUAvg = round2(cpuSum / n)
	rollup.DiskAvg = round2(diskSum / n)
	rollup.StaleProcessAvg = round2(staleSum / n)
	return rollup
}

func aggregateDay(date string, hourly []models.HourlyRollup) *models.DailyRollup {
	rollup := &models.DailyRollup{
		Date:      date,
		MemoryMin: hourly[0].MemoryMin,
		CPUMin:    hourly[0].CPUMin,
	}

	var memSum, cpuSum, diskSum, staleSum float64
	for _, h := range hourly {
		memSum += h.MemoryAvg
		cpuSum += h.CPUAvg
		diskSum += h.DiskAvg
		staleSum += h.StaleProcessAvg

		rollup.MemoryMax = math.Max(rollup.MemoryMax, h.MemoryMax)
		rollup.MemoryMin = math.Min(rollup.MemoryMin, h.MemoryMin)
		rollup.CPUMax = math.Max(rollup.CPUMax, h.CPUMax)
		rollup.CPUMin = math.Min(rollup.CPUMin, h.CPUMin)
		rollup.DiskMax = math.Max(rollup.DiskMax, h.DiskMax)

		rollup.CriticalEventsCount += h.CriticalEventsCount
		rollup.WarningEventsCount += h.WarningEventsCount
		rollup.RecordCount += h.RecordCount
	}

	n := float64(len(hourly))
	rollup.MemoryAvg = round2(memSum / n)
	rollup.CPUAvg = round2(cpuSum / n)
	rollup.DiskAvg = round2(diskSum / n)
	rollup.StaleProcessAvg = round2(staleSum / n)
	return rollup
}

func alignHour(ts int64) int64 {
	return (ts / hourMillis) * hourMillis
}

func alignDay(ts int64) int64 {
	return (ts / dayMillis) * dayMillis
}

func formatDate(dayStart int64) string {
	return time.UnixMilli(dayStart).UTC().Format("2006-01-02")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
