package service

import (
	"context"
	"time"

	"github.com/go-orz/cache"
	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	"github.com/vendops/vendwatch/internal/sampler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const latestSnapshotKey = "latest"

type SnapshotService struct {
	logger *zap.Logger
	*repo.SnapshotRepo
	*orz.Service
	sampler     sampler.Sampler
	latestCache cache.Cache[string, *models.Snapshot] // 最新快照缓存，避免告警检查和面板轮询反复查库

	retentionDays int
}

func NewSnapshotService(logger *zap.Logger, db *gorm.DB, hostSampler sampler.Sampler, retentionDays int) *SnapshotService {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &SnapshotService{
		logger:        logger,
		Service:       orz.NewService(db),
		SnapshotRepo:  repo.NewSnapshotRepo(db),
		sampler:       hostSampler,
		latestCache:   cache.New[string, *models.Snapshot](5 * time.Minute),
		retentionDays: retentionDays,
	}
}

// CollectOnce 采集一次快照并落库
// 采样本身不会失败（单项降级），只有落库可能出错
func (s *SnapshotService) CollectOnce(ctx context.Context) error {
	snapshot := s.sampler.Sample(ctx)

	if err := s.SnapshotRepo.Create(ctx, snapshot); err != nil {
		s.logger.Error("快照落库失败", zap.Error(err))
		return err
	}
	s.latestCache.Set(latestSnapshotKey, snapshot, 5*time.Minute)

	if len(snapshot.Issues) > 0 {
		s.logger.Warn("快照采集存在降级项",
			zap.Int64("timestamp", snapshot.Timestamp),
			zap.Strings("issues", snapshot.Issues),
		)
	}
	return nil
}

// Latest 返回最近一次快照，没有任何快照时返回 nil
func (s *SnapshotService) Latest(ctx context.Context) (*models.Snapshot, error) {
	if snapshot, ok := s.latestCache.Get(latestSnapshotKey); ok {
		return snapshot, nil
	}

	snapshots, err := s.SnapshotRepo.FindByRange(ctx, time.Now().Add(-10*time.Minute).UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	latest := &snapshots[len(snapshots)-1]
	s.latestCache.Set(latestSnapshotKey, latest, 5*time.Minute)
	return latest, nil
}

// SampleFresh 立即采集一次新快照，不落库不进缓存
// 告警检查要求使用新鲜读数，不允许拿缓存或历史快照做判断
func (s *SnapshotService) SampleFresh(ctx context.Context) *models.Snapshot {
	return s.sampler.Sample(ctx)
}

// PurgeExpired 清理超过保留期的快照
// 只清理所属小时已聚合的快照，聚合缺失的小时窗口会保留原始数据等待补算
func (s *SnapshotService) PurgeExpired(ctx context.Context) error {
	before := time.Now().AddDate(0, 0, -s.retentionDays).UnixMilli()
	deleted, err := s.SnapshotRepo.PurgeExpired(ctx, before)
	if err != nil {
		s.logger.Error("快照清理失败", zap.Error(err))
		return err
	}
	if deleted > 0 {
		s.logger.Info("快照清理完成", zap.Int64("deleted", deleted))
	}
	return nil
}
