package repo

import (
	"context"

	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RollupRepo struct {
	db *gorm.DB
}

func NewRollupRepo(db *gorm.DB) *RollupRepo {
	return &RollupRepo{
		db: db,
	}
}

// CreateHourly 写入小时聚合记录
// 使用 ON CONFLICT DO NOTHING，重放同一小时窗口时自愈而不产生重复行
func (r *RollupRepo) CreateHourly(ctx context.Context, rollup *models.HourlyRollup) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hour"}},
			DoNothing: true,
		}).
		Create(rollup).Error
}

// HourlyExists 判断指定小时的聚合记录是否已生成
func (r *RollupRepo) HourlyExists(ctx context.Context, hourStart int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.HourlyRollup{}).
		Where("hour = ?", hourStart).
		Count(&count).Error
	return count > 0, err
}

// FindHourlyByRange 查询时间范围内的小时聚合记录
func (r *RollupRepo) FindHourlyByRange(ctx context.Context, start, end int64) ([]models.HourlyRollup, error) {
	var rollups []models.HourlyRollup
	err := r.db.WithContext(ctx).
		Where("hour >= ? AND hour <= ?", start, end).
		Order("hour ASC").
		Find(&rollups).Error
	return rollups, err
}

// FindHourlyByDay 查询某一天 [dayStart, dayStart+24h) 的小时聚合记录
func (r *RollupRepo) FindHourlyByDay(ctx context.Context, dayStart int64) ([]models.HourlyRollup, error) {
	var rollups []models.HourlyRollup
	err := r.db.WithContext(ctx).
		Where("hour >= ? AND hour < ?", dayStart, dayStart+24*hourMillis).
		Order("hour ASC").
		Find(&rollups).Error
	return rollups, err
}

// MinHourlyHour 查询最早一条小时聚合的小时起点，没有数据时返回 0
func (r *RollupRepo) MinHourlyHour(ctx context.Context) (int64, error) {
	var hour *int64
	err := r.db.WithContext(ctx).
		Model(&models.HourlyRollup{}).
		Select("MIN(hour)").
		Scan(&hour).Error
	if err != nil || hour == nil {
		return 0, err
	}
	return *hour, nil
}

// CreateDaily 写入天级聚合记录
func (r *RollupRepo) CreateDaily(ctx context.Context, rollup *models.DailyRollup) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoNothing: true,
		}).
		Create(rollup).Error
}

// DailyExists 判断指定日期的天级聚合是否已生成
func (r *RollupRepo) DailyExists(ctx context.Context, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DailyRollup{}).
		Where("date = ?", date).
		Count(&count).Error
	return count > 0, err
}

// FindDailyByRange 查询日期范围内的天级聚合记录
func (r *RollupRepo) FindDailyByRange(ctx context.Context, startDate, endDate string) ([]models.DailyRollup, error) {
	var rollups []models.DailyRollup
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date ASC").
		Find(&rollups).Error
	return rollups, err
}

// PurgeHourlyByDay 删除某一天的全部小时聚合记录
// 调用方需要先确认该日期的天级聚合已存在，保证层级聚合先完成后清理
func (r *RollupRepo) PurgeHourlyByDay(ctx context.Context, dayStart int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("hour >= ? AND hour < ?", dayStart, dayStart+24*hourMillis).
		Delete(&models.HourlyRollup{})
	return result.RowsAffected, result.Error
}
