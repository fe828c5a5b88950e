// Package backend 定义托管后端数据服务的客户端契约。
//
// 后端以表形式暴露 domains、emails、custom_emails、email_filters
// 四类资源，并提供按地址过滤的新邮件插入事件推送。本包只描述
// 契约，具体实现见 memory、sql、redis、postgres、hybrid 子包。
package backend

import (
	"context"
	"errors"

	"tempmail/webclient/internal/domain"
)

var (
	// ErrPermissionDenied 后端以权限错误拒绝写入（如 RLS 策略、会话过期）
	ErrPermissionDenied = errors.New("permission denied by backend")
	// ErrAddressExists 自定义地址已被占用（后端唯一约束）
	ErrAddressExists = errors.New("address already registered")
	// ErrMessageNotFound 邮件不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrFilterNotFound 过滤规则不存在
	ErrFilterNotFound = errors.New("filter not found")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 注册邮箱已存在
	ErrEmailExists = errors.New("email already exists")
	// ErrSubscriptionClosed 推送订阅已被关闭
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Subscription 是一次按地址过滤的新邮件插入事件订阅。
//
// Events 通道在订阅被 Close 或后端连接断开后关闭。调用方必须
// 显式 Close，不能依赖隐式清理。
type Subscription interface {
	// Events 返回新插入邮件的事件流。
	Events() <-chan domain.Message
	// Close 取消订阅并释放资源，可重复调用。
	Close()
}

// DomainRepository 定义 domains 表的读取操作。
type DomainRepository interface {
	ListActiveDomains(ctx context.Context) ([]domain.Domain, error)
	SaveDomain(ctx context.Context, d *domain.Domain) error
}

// MessageRepository 定义 emails 表的存取操作。
type MessageRepository interface {
	// ListMessages 返回指定地址的全部邮件，按 received_at 降序。
	ListMessages(ctx context.Context, address string) ([]domain.Message, error)
	SaveMessage(ctx context.Context, message *domain.Message) error
	MarkMessageRead(ctx context.Context, address, messageID string) error
	MarkMessageExpired(ctx context.Context, address, messageID string) error
}

// CustomAddressRepository 定义 custom_emails 表的写入操作。
type CustomAddressRepository interface {
	InsertCustomAddress(ctx context.Context, addr *domain.CustomAddress) error
}

// FilterRepository 定义 email_filters 表的存取操作。
type FilterRepository interface {
	ListFilters(ctx context.Context) ([]domain.Filter, error)
	SaveFilter(ctx context.Context, filter *domain.Filter) error
	UpdateFilterActive(ctx context.Context, id string, active bool) error
	DeleteFilter(ctx context.Context, id string) error
}

// UserRepository 定义用户账户的存取操作。
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

// Subscriber 定义新邮件插入事件的推送订阅原语。
type Subscriber interface {
	// Subscribe 建立一个只接收 address 新邮件的订阅。
	Subscribe(ctx context.Context, address string) (Subscription, error)
}

// Store 是后端数据服务的完整客户端接口。
type Store interface {
	DomainRepository
	MessageRepository
	CustomAddressRepository
	FilterRepository
	UserRepository
	Subscriber

	Close() error
	Health() error
}
