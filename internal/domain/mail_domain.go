package domain

import "time"

// VerificationStatus 域名验证状态
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// Domain 表示后端 domains 表中的一条域名记录。
//
// 域名由管理员在后端维护，客户端只读。只有 IsActive 为 true
// 的域名才能用于生成新的临时邮箱地址。
type Domain struct {
	ID                 string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Domain             string             `json:"domain" gorm:"type:varchar(253);uniqueIndex;not null"`
	IsActive           bool               `json:"isActive" gorm:"column:is_active;default:false;index"`
	IsGlobal           bool               `json:"isGlobal" gorm:"column:is_global;default:false"`
	MXRecord           string             `json:"mxRecord,omitempty" gorm:"column:mx_record;type:varchar(255)"`
	VerificationStatus VerificationStatus `json:"verificationStatus,omitempty" gorm:"column:verification_status;type:varchar(20)"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty" gorm:"column:verified_at"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// TableName 指定 GORM 表名，与后端数据库保持一致。
func (Domain) TableName() string {
	return "domains"
}
