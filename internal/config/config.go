package config

// Config 应用配置，来自配置文件的 app 段
type Config struct {
	Sampling  Sampling  `yaml:"sampling" json:"sampling"`
	Retention Retention `yaml:"retention" json:"retention"`
	Alerting  Alerting  `yaml:"alerting" json:"alerting"`
	SMTP      SMTP      `yaml:"smtp" json:"smtp"`
	Chat      Chat      `yaml:"chat" json:"chat"`
}

// Sampling 采集配置
type Sampling struct {
	IntervalSeconds           int      `yaml:"intervalSeconds" json:"intervalSeconds"`                     // 采样间隔，默认 60 秒
	DiskPath                  string   `yaml:"diskPath" json:"diskPath"`                                   // 磁盘探测路径，默认 /
	StaleProcessPatterns      []string `yaml:"staleProcessPatterns" json:"staleProcessPatterns"`           // 滞留进程名称匹配模式
	StaleProcessMaxAgeMinutes int      `yaml:"staleProcessMaxAgeMinutes" json:"staleProcessMaxAgeMinutes"` // 滞留判定时长，默认 60 分钟
}

// Retention 数据保留配置
type Retention struct {
	SnapshotDays int `yaml:"snapshotDays" json:"snapshotDays"` // 原始快照保留天数，默认 7
	HourlyDays   int `yaml:"hourlyDays" json:"hourlyDays"`     // 小时聚合保留天数，默认 90
}

// Alerting 告警检查配置
type Alerting struct {
	CheckIntervalSeconds int `yaml:"checkIntervalSeconds" json:"checkIntervalSeconds"` // 规则检查间隔，默认 30 秒
}

// SMTP 邮件通知配置
type SMTP struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

// Chat 聊天机器人通知配置
type Chat struct {
	WebhookURL   string `yaml:"webhookUrl" json:"webhookUrl"`
	BodyTemplate string `yaml:"bodyTemplate" json:"bodyTemplate"` // 自定义请求体模板，留空使用默认 JSON 格式
}

// WithDefaults 填充缺省值
func (c Config) WithDefaults() Config {
	if c.Sampling.IntervalSeconds <= 0 {
		c.Sampling.IntervalSeconds = 60
	}
	if c.Sampling.DiskPath == "" {
		c.Sampling.DiskPath = "/"
	}
	if c.Sampling.StaleProcessMaxAgeMinutes <= 0 {
		c.Sampling.StaleProcessMaxAgeMinutes = 60
	}
	if c.Retention.SnapshotDays <= 0 {
		c.Retention.SnapshotDays = 7
	}
	if c.Retention.HourlyDays <= 0 {
		c.Retention.HourlyDays = 90
	}
	if c.Alerting.CheckIntervalSeconds <= 0 {
		c.Alerting.CheckIntervalSeconds = 30
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
	return c
}
