package repo

import (
	"context"
	"time"

	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
)

const hourMillis = int64(time.Hour / time.Millisecond)

type SnapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *SnapshotRepo {
	return &SnapshotRepo{
		db: db,
	}
}

// Create 保存一条快照
func (r *SnapshotRepo) Create(ctx context.Context, snapshot *models.Snapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// FindByRange 查询指定时间范围内的快照
func (r *SnapshotRepo) FindByRange(ctx context.Context, start, end int64) ([]models.Snapshot, error) {
	var snapshots []models.Snapshot
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// FindByHour 查询指定小时窗口 [hourStart, hourStart+1h) 内的快照
func (r *SnapshotRepo) FindByHour(ctx context.Context, hourStart int64) ([]models.Snapshot, error) {
	var snapshots []models.Snapshot
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", hourStart, hourStart+hourMillis).
		Order("timestamp ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// MinTimestamp 查询最早一条快照的时间戳，没有数据时返回 0
func (r *SnapshotRepo) MinTimestamp(ctx context.Context) (int64, error) {
	var ts *int64
	err := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Select("MIN(timestamp)").
		Scan(&ts).Error
	if err != nil || ts == nil {
		return 0, err
	}
	return *ts, nil
}

// PurgeExpired 删除超过保留期的快照
// 只删除所属小时已经生成聚合记录的快照，保证原始数据先聚合后清理
func (r *SnapshotRepo) PurgeExpired(ctx context.Context, before int64) (int64, error) {
	// 分批删除，避免长事务
	batchSize := 1000
	var total int64

	for {
		result := r.db.WithContext(ctx).
			Where("id IN (SELECT id FROM snapshots WHERE timestamp < ? AND (timestamp / ?) * ? IN (SELECT hour FROM hourly_rollups) LIMIT ?)",
				before, hourMillis, hourMillis, batchSize).
			Delete(&models.Snapshot{})

		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}
	}

	return total, nil
}

// HasUnrolledHours 判断时间范围内是否存在所属小时尚未聚合的快照
func (r *SnapshotRepo) HasUnrolledHours(ctx context.Context, start, end int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Where("(timestamp / ?) * ? NOT IN (SELECT hour FROM hourly_rollups)", hourMillis, hourMillis).
		Count(&count).Error
	return count > 0, err
}
