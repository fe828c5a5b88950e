// Package registrar 实现自定义地址的登记流程。
//
// 登记把用户指定的本地部分和选定域名组合成完整地址写入后端，
// 失败按校验、认证、持久化三类区分，调用方据此决定提示文案
// 和是否引导重新登录。
package registrar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

var (
	// ErrUsernameRequired 未填写本地部分
	ErrUsernameRequired = errors.New("username is required")
	// ErrAuthRequired 未登录，不允许登记自定义地址
	ErrAuthRequired = errors.New("authentication required")
	// ErrAuthExpired 登录状态已过期，需要重新登录
	ErrAuthExpired = errors.New("authentication expired")
	// ErrPersistence 后端写入失败
	ErrPersistence = errors.New("failed to persist custom address")
)

// Service 自定义地址登记服务。
type Service struct {
	store backend.CustomAddressRepository
	sink  notify.Sink
	log   *zap.Logger
}

// NewService 创建登记服务。
func NewService(store backend.CustomAddressRepository, sink notify.Sink, log *zap.Logger) *Service {
	if sink == nil {
		sink = notify.Nop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, sink: sink, log: log}
}

// Register 校验并登记自定义地址，成功时返回规范化后的完整地址。
//
// 校验失败和未登录都在本地短路，不产生后端调用。后端以权限
// 错误拒绝写入视为登录状态过期。
func (s *Service) Register(ctx context.Context, localPart, domainName, userID string) (string, error) {
	localPart = strings.TrimSpace(localPart)
	if localPart == "" {
		s.sink.Notify(notify.Error("错误", "请输入邮箱用户名"))
		return "", ErrUsernameRequired
	}
	if userID == "" {
		s.sink.Notify(notify.Error("错误", "请先登录后再创建自定义邮箱"))
		return "", ErrAuthRequired
	}

	if err := domain.ValidateLocalPart(localPart); err != nil {
		s.sink.Notify(notify.Error("错误", "邮箱用户名格式不正确"))
		return "", err
	}
	if err := domain.ValidateDomain(domainName); err != nil {
		s.sink.Notify(notify.Error("错误", "域名格式不正确"))
		return "", err
	}

	address := domain.ComposeAddress(localPart, domainName)
	err := s.store.InsertCustomAddress(ctx, &domain.CustomAddress{
		ID:      uuid.New().String(),
		Address: address,
		Domain:  strings.ToLower(domainName),
		UserID:  userID,
	})
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrPermissionDenied):
		s.log.Warn("custom address rejected by backend auth",
			zap.String("address", address),
			zap.Error(err))
		s.sink.Notify(notify.Error("登录已过期", "请重新登录后再试"))
		return "", ErrAuthExpired
	case errors.Is(err, backend.ErrAddressExists):
		s.sink.Notify(notify.Error("错误", "该邮箱地址已被占用"))
		return "", err
	default:
		s.log.Error("failed to insert custom address",
			zap.String("address", address),
			zap.Error(err))
		s.sink.Notify(notify.Error("错误", "创建自定义邮箱失败，请稍后重试"))
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.sink.Notify(notify.Success("创建成功", "自定义邮箱 "+address+" 已创建"))
	return address, nil
}
