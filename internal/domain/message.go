package domain

import "time"

// Message 表示 emails 表中的一封邮件。
//
// 邮件由后端的收信流程写入，客户端只读取列表并维护
// 已读/过期标记；过期清理由后端策略负责。
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TempEmail  string    `json:"tempEmail" gorm:"column:temp_email;type:varchar(254);index;not null"`
	FromEmail  string    `json:"fromEmail" gorm:"column:from_email;type:varchar(254)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	Body       string    `json:"body" gorm:"type:text"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"column:received_at;index"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" gorm:"column:expires_at"`
	IsRead     bool      `json:"isRead" gorm:"column:is_read;default:false"`
	IsExpired  bool      `json:"isExpired" gorm:"column:is_expired;default:false"`
}

// TableName 指定 GORM 表名，与后端数据库保持一致。
func (Message) TableName() string {
	return "emails"
}
