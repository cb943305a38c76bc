package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vendops/vendwatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Snapshot{},
		&models.HourlyRollup{},
		&models.DailyRollup{},
		&models.AlertRule{},
		&models.EscalationStep{},
		&models.AlertOccurrence{},
		&models.NotificationIntent{},
		&models.User{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// 2024-01-15 00:00:00 UTC
var testDayStart = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).UnixMilli()

func insertSnapshot(t *testing.T, db *gorm.DB, ts int64, mem, cpu, disk float64, stale int, status models.HealthStatus) {
	t.Helper()
	snap := &models.Snapshot{
		Timestamp:         ts,
		MemoryPercent:     mem,
		CPUPercent:        cpu,
		DiskPercent:       disk,
		StaleProcessCount: stale,
		HealthStatus:      status,
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("failed to insert snapshot: %v", err)
	}
}

func TestRunHourlyAggregates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)

	hourStart := testDayStart + 10*hourMillis
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(hourStart + hourMillis + 5*60*1000)
	}

	insertSnapshot(t, db, hourStart+1*60*1000, 50, 20, 60, 0, models.HealthStatusHealthy)
	insertSnapshot(t, db, hourStart+2*60*1000, 70, 40, 62, 1, models.HealthStatusWarning)
	insertSnapshot(t, db, hourStart+3*60*1000, 95, 60, 64, 0, models.HealthStatusCritical)

	if err := svc.RunHourly(context.Background()); err != nil {
		t.Fatalf("RunHourly failed: %v", err)
	}

	var rollup models.HourlyRollup
	if err := db.Where("hour = ?", hourStart).First(&rollup).Error; err != nil {
		t.Fatalf("expected hourly rollup: %v", err)
	}

	if rollup.MemoryAvg != 71.67 {
		t.Errorf("MemoryAvg = %v, want 71.67", rollup.MemoryAvg)
	}
	if rollup.MemoryMax != 95 {
		t.Errorf("MemoryMax = %v, want 95", rollup.MemoryMax)
	}
	if rollup.MemoryMin != 50 {
		t.Errorf("MemoryMin = %v, want 50", rollup.MemoryMin)
	}
	if rollup.CPUAvg != 40 {
		t.Errorf("CPUAvg = %v, want 40", rollup.CPUAvg)
	}
	if rollup.DiskMax != 64 {
		t.Errorf("DiskMax = %v, want 64", rollup.DiskMax)
	}
	if rollup.StaleProcessAvg != 0.33 {
		t.Errorf("StaleProcessAvg = %v, want 0.33", rollup.StaleProcessAvg)
	}
	if rollup.RecordCount != 3 {
		t.Errorf("RecordCount = %v, want 3", rollup.RecordCount)
	}
	if rollup.CriticalEventsCount != 1 || rollup.WarningEventsCount != 1 {
		t.Errorf("event counts = %d/%d, want 1/1", rollup.CriticalEventsCount, rollup.WarningEventsCount)
	}
}

func TestRunHourlySkipsEmptyAndIncompleteWindows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)

	hourA := testDayStart
	hourC := testDayStart + 2*hourMillis
	// 当前时间在 hourC 窗口尚未结束时
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(hourC + 30*60*1000)
	}

	insertSnapshot(t, db, hourA+60*1000, 50, 20, 60, 0, models.HealthStatusHealthy)
	// hourB 无数据
	insertSnapshot(t, db, hourC+60*1000, 55, 25, 61, 0, models.HealthStatusHealthy)

	if err := svc.RunHourly(context.Background()); err != nil {
		t.Fatalf("RunHourly failed: %v", err)
	}

	var count int64
	db.Model(&models.HourlyRollup{}).Count(&count)
	if count != 1 {
		t.Fatalf("rollup count = %d, want 1 (hourA only)", count)
	}

	var rollup models.HourlyRollup
	db.First(&rollup)
	if rollup.Hour != hourA {
		t.Errorf("rollup hour = %d, want %d", rollup.Hour, hourA)
	}
}

func TestRunHourlyIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(testDayStart + 2*hourMillis)
	}

	insertSnapshot(t, db, testDayStart+60*1000, 50, 20, 60, 0, models.HealthStatusHealthy)

	for i := 0; i < 3; i++ {
		if err := svc.RunHourly(context.Background()); err != nil {
			t.Fatalf("RunHourly failed: %v", err)
		}
	}

	var count int64
	db.Model(&models.HourlyRollup{}).Count(&count)
	if count != 1 {
		t.Errorf("rollup count = %d, want 1", count)
	}
}

func insertHourly(t *testing.T, db *gorm.DB, hour int64, memAvg, memMax, memMin float64, records int) {
	t.Helper()
	rollup := &models.HourlyRollup{
		Hour:        hour,
		MemoryAvg:   memAvg,
		MemoryMax:   memMax,
		MemoryMin:   memMin,
		CPUAvg:      10,
		CPUMax:      20,
		CPUMin:      5,
		DiskAvg:     50,
		DiskMax:     55,
		RecordCount: records,
	}
	if err := db.Create(rollup).Error; err != nil {
		t.Fatalf("failed to insert hourly rollup: %v", err)
	}
}

func TestRunDailyFromHourly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)
	// 次日凌晨
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(testDayStart + dayMillis + 15*60*1000)
	}

	insertHourly(t, db, testDayStart, 40, 60, 30, 60)
	insertHourly(t, db, testDayStart+hourMillis, 50, 80, 35, 60)
	insertHourly(t, db, testDayStart+2*hourMillis, 60, 70, 20, 58)

	if err := svc.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	var daily models.DailyRollup
	if err := db.Where("date = ?", "2024-01-15").First(&daily).Error; err != nil {
		t.Fatalf("expected daily rollup: %v", err)
	}

	if daily.MemoryAvg != 50 {
		t.Errorf("MemoryAvg = %v, want 50", daily.MemoryAvg)
	}
	if daily.MemoryMax != 80 {
		t.Errorf("MemoryMax = %v, want 80", daily.MemoryMax)
	}
	if daily.MemoryMin != 20 {
		t.Errorf("MemoryMin = %v, want 20", daily.MemoryMin)
	}
	if daily.RecordCount != 178 {
		t.Errorf("RecordCount = %v, want 178", daily.RecordCount)
	}
}

func TestRunDailySkipsCurrentDay(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)
	// 当天中午，当天窗口未结束
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(testDayStart + 12*hourMillis)
	}

	insertHourly(t, db, testDayStart, 40, 60, 30, 60)

	if err := svc.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	var count int64
	db.Model(&models.DailyRollup{}).Count(&count)
	if count != 0 {
		t.Errorf("daily count = %d, want 0", count)
	}
}

func TestRunDailyWaitsForLateHourlyRollups(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(testDayStart + dayMillis + 30*60*1000)
	}

	// 两个小时窗口都有快照，但只有第一个小时完成了聚合
	insertSnapshot(t, db, testDayStart+60*1000, 40, 20, 50, 0, models.HealthStatusHealthy)
	insertSnapshot(t, db, testDayStart+hourMillis+60*1000, 80, 30, 52, 0, models.HealthStatusWarning)
	insertHourly(t, db, testDayStart, 40, 40, 40, 1)

	if err := svc.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	var count int64
	db.Model(&models.DailyRollup{}).Count(&count)
	if count != 0 {
		t.Fatalf("daily count = %d, want 0 (day has an unrolled hour)", count)
	}

	// 小时聚合补算后，下一轮天级聚合把迟到的小时也算进去
	if err := svc.RunHourly(context.Background()); err != nil {
		t.Fatalf("RunHourly failed: %v", err)
	}
	if err := svc.RunDaily(context.Background()); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	var daily models.DailyRollup
	if err := db.Where("date = ?", "2024-01-15").First(&daily).Error; err != nil {
		t.Fatalf("expected daily rollup after catch-up: %v", err)
	}
	if daily.MemoryAvg != 60 {
		t.Errorf("MemoryAvg = %v, want 60 (both hours included)", daily.MemoryAvg)
	}
}

func TestPurgeHourlyKeepsDaysWithoutDailyRollup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRollupService(zap.NewNop(), db, 90)

	oldDayA := testDayStart
	oldDayB := testDayStart + dayMillis
	// 当前时间在 200 天之后，两天的小时聚合都已超过保留期
	svc.nowFunc = func() time.Time {
		return time.UnixMilli(testDayStart + 200*dayMillis)
	}

	insertHourly(t, db, oldDayA, 40, 60, 30, 60)
	insertHourly(t, db, oldDayB, 50, 70, 35, 60)

	// 只有 oldDayA 有天级聚合
	if err := db.Create(&models.DailyRollup{Date: "2024-01-15", MemoryAvg: 40}).Error; err != nil {
		t.Fatalf("failed to insert daily rollup: %v", err)
	}

	if err := svc.purgeHourlyExpired(context.Background(), oldDayA); err != nil {
		t.Fatalf("purgeHourlyExpired failed: %v", err)
	}

	var hours []models.HourlyRollup
	db.Find(&hours)
	if len(hours) != 1 {
		t.Fatalf("remaining hourly rollups = %d, want 1", len(hours))
	}
	if hours[0].Hour != oldDayB {
		t.Errorf("remaining hour = %d, want %d (day without daily rollup)", hours[0].Hour, oldDayB)
	}
}

func TestSnapshotPurgeOnlyRolledHours(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSnapshotService(zap.NewNop(), db, &staticSampler{}, 7)

	rolledHour := testDayStart
	unrolledHour := testDayStart + hourMillis

	insertSnapshot(t, db, rolledHour+60*1000, 50, 20, 60, 0, models.HealthStatusHealthy)
	insertSnapshot(t, db, unrolledHour+60*1000, 55, 25, 61, 0, models.HealthStatusHealthy)
	insertHourly(t, db, rolledHour, 50, 50, 50, 1)

	// 两条快照都早于清理线
	deleted, err := svc.SnapshotRepo.PurgeExpired(context.Background(), testDayStart+dayMillis)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	var remaining []models.Snapshot
	db.Find(&remaining)
	if len(remaining) != 1 {
		t.Fatalf("remaining snapshots = %d, want 1", len(remaining))
	}
	if remaining[0].Timestamp != unrolledHour+60*1000 {
		t.Errorf("remaining snapshot belongs to hour %d, want unrolled hour", remaining[0].Timestamp)
	}
}
