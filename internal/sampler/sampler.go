package sampler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/vendops/vendwatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Sampler 主机快照采集能力
// Sample 永远返回一条快照：单项探测失败时该项降级为零值并记录到 Issues，
// 不会让整次采样失败
type Sampler interface {
	Sample(ctx context.Context) *models.Snapshot
}

// Config 采集配置
type Config struct {
	DiskPath             string        // 磁盘使用率探测路径，默认 "/"
	StaleProcessPatterns []string      // 滞留进程名称匹配模式
	StaleProcessMaxAge   time.Duration // 超过该运行时长的匹配进程视为滞留
}

// HostSampler 基于 gopsutil 的本机采集器
// 各探测函数作为字段持有，测试可以替换单个探测模拟失败
type HostSampler struct {
	logger *zap.Logger
	config Config

	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	loadAvg       func(ctx context.Context) (*load.AvgStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	uptime        func(ctx context.Context) (uint64, error)
	processes     func(ctx context.Context) ([]*process.Process, error)
}

func NewHostSampler(logger *zap.Logger, config Config) *HostSampler {
	if config.DiskPath == "" {
		config.DiskPath = "/"
	}
	if config.StaleProcessMaxAge <= 0 {
		config.StaleProcessMaxAge = time.Hour
	}
	return &HostSampler{
		logger:        logger,
		config:        config,
		virtualMemory: mem.VirtualMemoryWithContext,
		cpuPercent:    cpu.PercentWithContext,
		cpuCounts:     cpu.CountsWithContext,
		loadAvg:       load.AvgWithContext,
		diskUsage:     disk.UsageWithContext,
		uptime:        host.UptimeWithContext,
		processes:     process.ProcessesWithContext,
	}
}

// Sample 采集一次主机快照
func (s *HostSampler) Sample(ctx context.Context) *models.Snapshot {
	snapshot := &models.Snapshot{
		Timestamp: time.Now().UnixMilli(),
	}
	var issues []string

	// 内存
	if vm, err := s.virtualMemory(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("内存探测失败: %v", err))
	} else {
		snapshot.MemoryPercent = round2(vm.UsedPercent)
		snapshot.MemoryUsedMB = round2(float64(vm.Used) / 1024 / 1024)
		snapshot.MemoryTotalMB = round2(float64(vm.Total) / 1024 / 1024)
	}

	// CPU
	if percents, err := s.cpuPercent(ctx, time.Second, false); err != nil || len(percents) == 0 {
		issues = append(issues, fmt.Sprintf("CPU探测失败: %v", err))
	} else {
		snapshot.CPUPercent = round2(percents[0])
	}
	if cores, err := s.cpuCounts(ctx, true); err == nil {
		snapshot.CPUCores = cores
	}
	if avg, err := s.loadAvg(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("负载探测失败: %v", err))
	} else {
		snapshot.LoadAvg = round2(avg.Load1)
	}

	// 磁盘
	if usage, err := s.diskUsage(ctx, s.config.DiskPath); err != nil {
		issues = append(issues, fmt.Sprintf("磁盘探测失败(%s): %v", s.config.DiskPath, err))
	} else {
		snapshot.DiskPercent = round2(usage.UsedPercent)
		snapshot.DiskUsedGB = round2(float64(usage.Used) / 1024 / 1024 / 1024)
		snapshot.DiskTotalGB = round2(float64(usage.Total) / 1024 / 1024 / 1024)
	}

	// 运行时间
	if uptime, err := s.uptime(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("运行时间探测失败: %v", err))
	} else {
		snapshot.UptimeSeconds = uptime
	}

	// 进程表
	total, stale, err := s.scanProcesses(ctx)
	if err != nil {
		issues = append(issues, fmt.Sprintf("进程表扫描失败: %v", err))
	}
	snapshot.ProcessCount = total
	snapshot.StaleProcessCount = stale

	snapshot.Issues = datatypes.JSONSlice[string](issues)
	snapshot.HealthStatus = Classify(snapshot.MemoryPercent, snapshot.CPUPercent, snapshot.DiskPercent, snapshot.StaleProcessCount)

	return snapshot
}

// scanProcesses 扫描进程表，统计总数和滞留进程数
// 滞留进程：名称匹配配置模式且运行时长超过阈值的进程（如残留的构建/迁移工具）
func (s *HostSampler) scanProcesses(ctx context.Context) (total int, stale int, err error) {
	procs, err := s.processes(ctx)
	if err != nil {
		return 0, 0, err
	}

	total = len(procs)
	if len(s.config.StaleProcessPatterns) == 0 {
		return total, 0, nil
	}

	now := time.Now().UnixMilli()
	maxAgeMillis := s.config.StaleProcessMaxAge.Milliseconds()

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !matchAny(name, s.config.StaleProcessPatterns) {
			continue
		}
		createTime, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			continue
		}
		if now-createTime > maxAgeMillis {
			stale++
		}
	}
	return total, stale, nil
}

func matchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// Classify 健康状态分类
// 任一资源 > 90% 为 critical；任一资源 > 75% 或存在滞留进程为 warning；否则 healthy
func Classify(memoryPercent, cpuPercent, diskPercent float64, staleProcessCount int) models.HealthStatus {
	if memoryPercent > 90 || cpuPercent > 90 || diskPercent > 90 {
		return models.HealthStatusCritical
	}
	if memoryPercent > 75 || cpuPercent > 75 || diskPercent > 75 || staleProcessCount > 0 {
		return models.HealthStatusWarning
	}
	return models.HealthStatusHealthy
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
