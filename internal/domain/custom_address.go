package domain

import "time"

// CustomAddress 表示 custom_emails 表中的自定义地址登记。
//
// 登记只是把地址和所属账户关联起来，地址唯一性由后端约束
// 保证，客户端不做预检查。
type CustomAddress struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"column:email_address;type:varchar(254);uniqueIndex;not null"`
	Domain    string    `json:"domain" gorm:"type:varchar(253);index;not null"`
	UserID    string    `json:"userId" gorm:"column:user_id;type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 GORM 表名，与后端数据库保持一致。
func (CustomAddress) TableName() string {
	return "custom_emails"
}
