package domain

import (
	"errors"
	"time"
)

// FilterType 垃圾邮件过滤规则类型
type FilterType string

const (
	FilterTypeSender  FilterType = "sender"
	FilterTypeSubject FilterType = "subject"
	FilterTypeContent FilterType = "content"
)

var (
	// ErrInvalidFilterType 不支持的过滤类型
	ErrInvalidFilterType = errors.New("invalid filter type")
	// ErrEmptyPattern 过滤规则内容为空
	ErrEmptyPattern = errors.New("filter pattern is empty")
)

// Validate 校验过滤类型是否受支持。
func (t FilterType) Validate() error {
	switch t {
	case FilterTypeSender, FilterTypeSubject, FilterTypeContent:
		return nil
	default:
		return ErrInvalidFilterType
	}
}

// Filter 表示 email_filters 表中的一条过滤规则。
//
// 规则由管理员维护，真正的过滤发生在后端收信流程中，
// 客户端只做开关和删除。
type Filter struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FilterType FilterType `json:"filterType" gorm:"column:filter_type;type:varchar(20);not null"`
	Pattern    string     `json:"pattern" gorm:"type:varchar(500);not null"`
	IsActive   bool       `json:"isActive" gorm:"column:is_active;default:true"`
	CreatedBy  string     `json:"createdBy,omitempty" gorm:"column:created_by;type:varchar(36)"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// TableName 指定 GORM 表名，与后端数据库保持一致。
func (Filter) TableName() string {
	return "email_filters"
}
