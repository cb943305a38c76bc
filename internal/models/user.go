package models

// User 通知目标用户（用户管理由外部系统负责，这里只保留投递所需的信息）
type User struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`      // 邮件通知地址
	ChatTarget string `json:"chatTarget"` // 聊天机器人目标（@手机号或机器人用户ID）
	IsAdmin    bool   `gorm:"index" json:"isAdmin"`
	CreatedAt  int64  `json:"createdAt"` // 创建时间（毫秒）
}

func (User) TableName() string {
	return "users"
}
