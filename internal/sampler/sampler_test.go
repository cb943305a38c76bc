package sampler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/vendops/vendwatch/internal/models"
	"go.uber.org/zap"
)

// newFakeSampler 所有探测都返回固定读数的采集器
func newFakeSampler() *HostSampler {
	s := NewHostSampler(zap.NewNop(), Config{DiskPath: "/data"})
	s.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 61.5, Used: 4 << 30, Total: 8 << 30}, nil
	}
	s.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) {
		return []float64{42.25}, nil
	}
	s.cpuCounts = func(context.Context, bool) (int, error) { return 8, nil }
	s.loadAvg = func(context.Context) (*load.AvgStat, error) {
		return &load.AvgStat{Load1: 1.5}, nil
	}
	s.diskUsage = func(_ context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{UsedPercent: 70, Used: 100 << 30, Total: 200 << 30}, nil
	}
	s.uptime = func(context.Context) (uint64, error) { return 3600, nil }
	s.processes = func(context.Context) ([]*process.Process, error) { return nil, nil }
	return s
}

func TestSampleAllCollectorsHealthy(t *testing.T) {
	snap := newFakeSampler().Sample(context.Background())

	if snap.MemoryPercent != 61.5 {
		t.Errorf("MemoryPercent = %v, want 61.5", snap.MemoryPercent)
	}
	if snap.MemoryTotalMB != 8192 {
		t.Errorf("MemoryTotalMB = %v, want 8192", snap.MemoryTotalMB)
	}
	if snap.CPUPercent != 42.25 {
		t.Errorf("CPUPercent = %v, want 42.25", snap.CPUPercent)
	}
	if snap.CPUCores != 8 {
		t.Errorf("CPUCores = %v, want 8", snap.CPUCores)
	}
	if snap.DiskPercent != 70 {
		t.Errorf("DiskPercent = %v, want 70", snap.DiskPercent)
	}
	if snap.UptimeSeconds != 3600 {
		t.Errorf("UptimeSeconds = %v, want 3600", snap.UptimeSeconds)
	}
	if len(snap.Issues) != 0 {
		t.Errorf("Issues = %v, want none", snap.Issues)
	}
	if snap.HealthStatus != models.HealthStatusHealthy {
		t.Errorf("HealthStatus = %s, want healthy", snap.HealthStatus)
	}
}

func TestSampleDegradesOnCollectorFailure(t *testing.T) {
	s := newFakeSampler()
	s.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return nil, errors.New("device not ready")
	}

	snap := s.Sample(context.Background())

	// 失败的探测降级为零值，其余读数不受影响，整次采样不失败
	if snap.DiskPercent != 0 || snap.DiskUsedGB != 0 || snap.DiskTotalGB != 0 {
		t.Errorf("disk readings = %v/%v/%v, want zeros", snap.DiskPercent, snap.DiskUsedGB, snap.DiskTotalGB)
	}
	if snap.MemoryPercent != 61.5 {
		t.Errorf("MemoryPercent = %v, want 61.5 (unaffected)", snap.MemoryPercent)
	}
	if len(snap.Issues) != 1 {
		t.Fatalf("Issues = %v, want exactly one entry", snap.Issues)
	}
	if !strings.Contains(snap.Issues[0], "磁盘") || !strings.Contains(snap.Issues[0], "device not ready") {
		t.Errorf("issue = %q, want disk collection failure with cause", snap.Issues[0])
	}
	if snap.HealthStatus != models.HealthStatusHealthy {
		t.Errorf("HealthStatus = %s, want healthy (computed from degraded values)", snap.HealthStatus)
	}
}

func TestSampleAllCollectorsFailing(t *testing.T) {
	s := newFakeSampler()
	collectErr := errors.New("collector down")
	s.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, collectErr }
	s.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, collectErr }
	s.loadAvg = func(context.Context) (*load.AvgStat, error) { return nil, collectErr }
	s.diskUsage = func(context.Context, string) (*disk.UsageStat, error) { return nil, collectErr }
	s.uptime = func(context.Context) (uint64, error) { return 0, collectErr }
	s.processes = func(context.Context) ([]*process.Process, error) { return nil, collectErr }

	snap := s.Sample(context.Background())

	if snap == nil {
		t.Fatal("snapshot must be returned even when every collector fails")
	}
	if len(snap.Issues) != 6 {
		t.Errorf("Issues = %v, want 6 entries", snap.Issues)
	}
	if snap.HealthStatus != models.HealthStatusHealthy {
		t.Errorf("HealthStatus = %s, want healthy (all readings zero)", snap.HealthStatus)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		memory float64
		cpu    float64
		disk   float64
		stale  int
		want   models.HealthStatus
	}{
		{"all low", 10, 10, 10, 0, models.HealthStatusHealthy},
		{"at warning boundary", 75, 75, 75, 0, models.HealthStatusHealthy},
		{"memory above warning", 75.1, 10, 10, 0, models.HealthStatusWarning},
		{"cpu above warning", 10, 80, 10, 0, models.HealthStatusWarning},
		{"disk above warning", 10, 10, 88, 0, models.HealthStatusWarning},
		{"stale process only", 10, 10, 10, 1, models.HealthStatusWarning},
		{"at critical boundary", 90, 90, 90, 0, models.HealthStatusWarning},
		{"memory critical", 90.1, 10, 10, 0, models.HealthStatusCritical},
		{"cpu critical", 10, 95, 10, 0, models.HealthStatusCritical},
		{"disk critical", 10, 10, 99, 0, models.HealthStatusCritical},
		{"critical wins over stale", 95, 10, 10, 3, models.HealthStatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.memory, tt.cpu, tt.disk, tt.stale)
			if got != tt.want {
				t.Errorf("Classify(%v, %v, %v, %d) = %s, want %s",
					tt.memory, tt.cpu, tt.disk, tt.stale, got, tt.want)
			}
		})
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"zombie", "stuck-worker"}

	if !matchAny("zombie-cleaner", patterns) {
		t.Error("expected substring match")
	}
	if !matchAny("app-stuck-worker-3", patterns) {
		t.Error("expected substring match in the middle")
	}
	if matchAny("healthy-worker", patterns) {
		t.Error("unexpected match")
	}
	if matchAny("anything", nil) {
		t.Error("no patterns should never match")
	}
	// 空模式不匹配任何进程
	if matchAny("anything", []string{""}) {
		t.Error("empty pattern should not match")
	}
}

func TestRound2(t *testing.T) {
	if got := round2(71.6666); got != 71.67 {
		t.Errorf("round2(71.6666) = %v, want 71.67", got)
	}
	if got := round2(80.004); got != 80.0 {
		t.Errorf("round2(80.004) = %v, want 80", got)
	}
}
