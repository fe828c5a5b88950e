// Package filters 实现管理端邮件过滤规则的维护操作。
package filters

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

// Service 过滤规则维护服务。
//
// 每次变更成功后都重新拉取列表返回，界面永远展示后端的
// 最新状态而不是本地推算的结果。
type Service struct {
	store backend.FilterRepository
	sink  notify.Sink
	log   *zap.Logger
}

// NewService 创建过滤规则服务。
func NewService(store backend.FilterRepository, sink notify.Sink, log *zap.Logger) *Service {
	if sink == nil {
		sink = notify.Nop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, sink: sink, log: log}
}

// List 返回全部过滤规则。
func (s *Service) List(ctx context.Context) ([]domain.Filter, error) {
	filters, err := s.store.ListFilters(ctx)
	if err != nil {
		s.log.Error("failed to list filters", zap.Error(err))
		s.sink.Notify(notify.Error("错误", "获取过滤规则失败"))
		return nil, err
	}
	return filters, nil
}

// Create 新增过滤规则并返回刷新后的列表。
func (s *Service) Create(ctx context.Context, filter *domain.Filter) ([]domain.Filter, error) {
	if err := filter.FilterType.Validate(); err != nil {
		s.sink.Notify(notify.Error("错误", "不支持的过滤类型"))
		return nil, err
	}
	if filter.Pattern == "" {
		s.sink.Notify(notify.Error("错误", "过滤规则内容不能为空"))
		return nil, domain.ErrEmptyPattern
	}

	if err := s.store.SaveFilter(ctx, filter); err != nil {
		s.log.Error("failed to create filter", zap.Error(err))
		s.sink.Notify(notify.Error("错误", "创建过滤规则失败"))
		return nil, err
	}
	s.sink.Notify(notify.Success("成功", "过滤规则已创建"))
	return s.List(ctx)
}

// Toggle 切换过滤规则的启用状态并返回刷新后的列表。
func (s *Service) Toggle(ctx context.Context, id string, active bool) ([]domain.Filter, error) {
	if err := s.store.UpdateFilterActive(ctx, id, active); err != nil {
		if errors.Is(err, backend.ErrFilterNotFound) {
			s.sink.Notify(notify.Error("错误", "过滤规则不存在"))
			return nil, err
		}
		s.log.Error("failed to toggle filter",
			zap.String("filter_id", id),
			zap.Bool("active", active),
			zap.Error(err))
		s.sink.Notify(notify.Error("错误", "更新过滤规则失败"))
		return nil, err
	}

	if active {
		s.sink.Notify(notify.Success("成功", "过滤规则已启用"))
	} else {
		s.sink.Notify(notify.Success("成功", "过滤规则已停用"))
	}
	return s.List(ctx)
}

// Delete 删除过滤规则并返回刷新后的列表。
func (s *Service) Delete(ctx context.Context, id string) ([]domain.Filter, error) {
	if err := s.store.DeleteFilter(ctx, id); err != nil {
		if errors.Is(err, backend.ErrFilterNotFound) {
			s.sink.Notify(notify.Error("错误", "过滤规则不存在"))
			return nil, err
		}
		s.log.Error("failed to delete filter",
			zap.String("filter_id", id),
			zap.Error(err))
		s.sink.Notify(notify.Error("错误", "删除过滤规则失败"))
		return nil, err
	}

	s.sink.Notify(notify.Success("成功", "过滤规则已删除"))
	return s.List(ctx)
}
