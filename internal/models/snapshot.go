package models

import "gorm.io/datatypes"

// HealthStatus 主机健康状态
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"  // 健康
	HealthStatusWarning  HealthStatus = "warning"  // 警告
	HealthStatusCritical HealthStatus = "critical" // 严重
)

// Snapshot 主机资源快照（每个采样周期一条，不可变更）
type Snapshot struct {
	ID        uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp int64 `gorm:"index:idx_snapshot_ts" json:"timestamp"` // 采样时间（毫秒）

	MemoryPercent float64 `json:"memoryPercent"` // 内存使用率
	MemoryUsedMB  float64 `json:"memoryUsedMB"`  // 已使用内存(MB)
	MemoryTotalMB float64 `json:"memoryTotalMB"` // 总内存(MB)

	CPUPercent float64 `json:"cpuPercent"` // CPU使用率
	CPUCores   int     `json:"cpuCores"`   // 逻辑核心数
	LoadAvg    float64 `json:"loadAvg"`    // 1分钟负载

	DiskPercent float64 `json:"diskPercent"` // 磁盘使用率
	DiskUsedGB  float64 `json:"diskUsedGB"`  // 已使用磁盘(GB)
	DiskTotalGB float64 `json:"diskTotalGB"` // 总磁盘(GB)

	ProcessCount      int `json:"processCount"`      // 进程总数
	StaleProcessCount int `json:"staleProcessCount"` // 滞留进程数

	HealthStatus  HealthStatus                `gorm:"index" json:"healthStatus"` // 健康状态
	Issues        datatypes.JSONSlice[string] `json:"issues"`                    // 采样过程中的异常说明
	UptimeSeconds uint64                      `json:"uptimeSeconds"`             // 系统运行时间(秒)
}

func (Snapshot) TableName() string {
	return "snapshots"
}

// HourlyRollup 小时聚合记录（每个自然小时最多一条，写入后不可变更）
type HourlyRollup struct {
	ID   uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	Hour int64 `gorm:"uniqueIndex:ux_hourly_hour" json:"hour"` // 小时起点（毫秒，按小时对齐）

	MemoryAvg float64 `json:"memoryAvg"`
	MemoryMax float64 `json:"memoryMax"`
	MemoryMin float64 `json:"memoryMin"`

	CPUAvg float64 `json:"cpuAvg"`
	CPUMax float64 `json:"cpuMax"`
	CPUMin float64 `json:"cpuMin"`

	DiskAvg float64 `json:"diskAvg"`
	DiskMax float64 `json:"diskMax"`

	StaleProcessAvg     float64 `json:"staleProcessAvg"`     // 滞留进程数平均值
	CriticalEventsCount int     `json:"criticalEventsCount"` // critical 快照数量
	WarningEventsCount  int     `json:"warningEventsCount"`  // warning 快照数量
	RecordCount         int     `json:"recordCount"`         // 参与聚合的快照数量

	CreatedAt int64 `json:"createdAt"` // 写入时间（毫秒）
}

func (HourlyRollup) TableName() string {
	return "hourly_rollups"
}

// DailyRollup 天级聚合记录（仅由前一天的小时聚合计算，永久保留）
type DailyRollup struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Date string `gorm:"uniqueIndex:ux_daily_date" json:"date"` // 日期（YYYY-MM-DD）

	MemoryAvg float64 `json:"memoryAvg"`
	MemoryMax float64 `json:"memoryMax"`
	MemoryMin float64 `json:"memoryMin"`

	CPUAvg float64 `json:"cpuAvg"`
	CPUMax float64 `json:"cpuMax"`
	CPUMin float64 `json:"cpuMin"`

	DiskAvg float64 `json:"diskAvg"`
	DiskMax float64 `json:"diskMax"`

	StaleProcessAvg     float64 `json:"staleProcessAvg"`
	CriticalEventsCount int     `json:"criticalEventsCount"`
	WarningEventsCount  int     `json:"warningEventsCount"`
	RecordCount         int     `json:"recordCount"` // 当天原始快照总数（小时 recordCount 之和）

	CreatedAt int64 `json:"createdAt"` // 写入时间（毫秒）
}

func (DailyRollup) TableName() string {
	return "daily_rollups"
}
