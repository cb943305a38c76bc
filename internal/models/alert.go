package models

import "gorm.io/datatypes"

// Metric 告警监控的指标类型
type Metric string

const (
	MetricMemory Metric = "memory"
	MetricCPU    Metric = "cpu"
	MetricDisk   Metric = "disk"
)

// Operator 阈值比较运算符
type Operator string

const (
	OperatorGreater      Operator = ">"
	OperatorLess         Operator = "<"
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
	OperatorEqual        Operator = "=="
)

// Severity 告警级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OccurrenceStatus 告警事件状态
type OccurrenceStatus string

const (
	OccurrenceStatusActive       OccurrenceStatus = "active"
	OccurrenceStatusAcknowledged OccurrenceStatus = "acknowledged"
	OccurrenceStatusResolved     OccurrenceStatus = "resolved"
)

// IntentStatus 通知投递状态
type IntentStatus string

const (
	IntentStatusPending IntentStatus = "pending"
	IntentStatusSent    IntentStatus = "sent"
	IntentStatusFailed  IntentStatus = "failed"
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelInApp Channel = "in_app"
)

// StepAction 升级步骤动作
type StepAction string

const (
	StepActionNotifyUser  StepAction = "notify_user"
	StepActionNotifyAdmin StepAction = "notify_admin"
	StepActionAutoCleanup StepAction = "auto_cleanup"
	StepActionScaleUp     StepAction = "scale_up"
)

// AlertRule 告警规则
type AlertRule struct {
	ID              string   `gorm:"primaryKey" json:"id"` // 规则ID (UUID)
	Name            string   `gorm:"index" json:"name"`    // 规则名称
	Description     string   `json:"description"`          // 描述
	Metric          Metric   `json:"metric"`               // 监控指标: memory, cpu, disk
	Threshold       float64  `json:"threshold"`            // 阈值 [0,100]
	Operator        Operator `json:"operator"`             // 比较运算符
	EscalationLevel Severity `json:"escalationLevel"`      // 告警级别
	CooldownMinutes int      `json:"cooldownMinutes"`      // 冷却时间（分钟，>=1）
	IsEnabled       bool     `gorm:"index" json:"isEnabled"`
	NotifyUser      bool     `json:"notifyUser"`                            // 通知规则创建者
	NotifyAdmin     bool     `json:"notifyAdmin"`                           // 通知管理员
	AutoAction      string   `json:"autoAction,omitempty"`                  // 自动处置动作（可选）
	CreatedBy       string   `json:"createdBy"`                             // 创建人
	CreatedAt       int64    `json:"createdAt"`                             // 创建时间（毫秒）
	UpdatedAt       int64    `json:"updatedAt" gorm:"autoUpdateTime:milli"` // 更新时间（毫秒）
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

// EscalationStep 升级步骤，按 level 升序依次执行
type EscalationStep struct {
	ID                  string                      `gorm:"primaryKey" json:"id"`
	RuleID              string                      `gorm:"index:idx_step_rule" json:"ruleId"`
	Level               int                         `json:"level"`               // 执行顺序（升序）
	DelayMinutes        int                         `json:"delayMinutes"`        // 执行前延迟（分钟）
	Action              StepAction                  `json:"action"`              // 动作
	NotificationChannel Channel                     `json:"notificationChannel"` // 通知渠道
	TargetUsers         datatypes.JSONSlice[string] `json:"targetUsers"`         // 目标用户ID列表
}

func (EscalationStep) TableName() string {
	return "escalation_steps"
}

// AlertOccurrence 告警事件（规则触发的一次具体记录）
// 规则字段在触发时拷贝到事件上，规则后续修改不影响历史记录
type AlertOccurrence struct {
	ID             string           `gorm:"primaryKey" json:"id"`
	RuleID         string           `gorm:"index:idx_occ_rule_status,priority:1" json:"ruleId"`
	RuleName       string           `json:"ruleName"`
	Metric         Metric           `json:"metric"`
	Value          float64          `json:"value"`     // 触发时的实际值
	Threshold      float64          `json:"threshold"` // 触发时的阈值
	Operator       Operator         `json:"operator"`
	Status         OccurrenceStatus `gorm:"index:idx_occ_rule_status,priority:2" json:"status"`
	Severity       Severity         `json:"severity"`
	Message        string           `json:"message"`
	AcknowledgedBy string           `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt int64            `json:"acknowledgedAt,omitempty"` // 确认时间（毫秒）
	ResolvedBy     string           `json:"resolvedBy,omitempty"`
	ResolvedAt     int64            `json:"resolvedAt,omitempty"` // 解决时间（毫秒）
	CreatedAt      int64            `gorm:"index" json:"createdAt"`
}

func (AlertOccurrence) TableName() string {
	return "alert_occurrences"
}

// NotificationIntent 通知投递意图，每个 (用户, 渠道) 一条，只尝试投递一次
type NotificationIntent struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	AlertID       string       `gorm:"index:idx_intent_alert" json:"alertId"`
	UserID        string       `json:"userId"`
	Channel       Channel      `json:"channel"`
	Status        IntentStatus `json:"status"`
	SentAt        int64        `json:"sentAt,omitempty"` // 投递成功时间（毫秒）
	FailureReason string       `json:"failureReason,omitempty"`
	CreatedAt     int64        `json:"createdAt"`
}

func (NotificationIntent) TableName() string {
	return "notification_intents"
}
