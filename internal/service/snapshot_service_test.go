package service

import (
	"context"
	"testing"

	"github.com/vendops/vendwatch/internal/models"
	"go.uber.org/zap"
)

func TestCollectOncePersistsAndCaches(t *testing.T) {
	db := setupTestDB(t)
	smp := &staticSampler{memory: 61.5, cpu: 20, disk: 45}
	svc := NewSnapshotService(zap.NewNop(), db, smp, 7)
	ctx := context.Background()

	if err := svc.CollectOnce(ctx); err != nil {
		t.Fatalf("CollectOnce failed: %v", err)
	}

	var count int64
	db.Model(&models.Snapshot{}).Count(&count)
	if count != 1 {
		t.Fatalf("snapshot count = %d, want 1", count)
	}

	latest, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.MemoryPercent != 61.5 {
		t.Errorf("latest = %+v, want MemoryPercent 61.5", latest)
	}
}

func TestLatestWithoutAnySnapshot(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSnapshotService(zap.NewNop(), db, &staticSampler{}, 7)

	latest, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}
}

func TestSampleFreshDoesNotPersist(t *testing.T) {
	db := setupTestDB(t)
	smp := &staticSampler{memory: 95}
	svc := NewSnapshotService(zap.NewNop(), db, smp, 7)

	snap := svc.SampleFresh(context.Background())
	if snap == nil || snap.MemoryPercent != 95 {
		t.Fatalf("snapshot = %+v, want MemoryPercent 95", snap)
	}

	// 现场采样不落库也不进缓存
	var count int64
	db.Model(&models.Snapshot{}).Count(&count)
	if count != 0 {
		t.Errorf("snapshot count = %d, want 0", count)
	}
	latest, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}
}
