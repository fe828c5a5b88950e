package hybrid

import (
	"context"

	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/backend/redis"
	sqlstore "tempmail/webclient/internal/backend/sql"
	"tempmail/webclient/internal/domain"
)

// Store 组合 SQL 持久化与独立的推送通道，构成完整的后端客户端。
//
// 生产环境下推送通道是 Redis 发布订阅或 PostgreSQL LISTEN/NOTIFY；
// SaveMessage 在写库成功后向推送通道转发事件（仅开发工具使用，
// 线上的收信和发布由后端自己完成）。
type Store struct {
	*sqlstore.Store
	push Pusher
	log  *zap.Logger
}

// Pusher 推送通道抽象：按地址订阅，可选地支持发布。
type Pusher interface {
	backend.Subscriber
	Close() error
	Health() error
}

// New 创建组合存储。
func New(sql *sqlstore.Store, push Pusher, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		Store: sql,
		push:  push,
		log:   log,
	}
}

// Subscribe 建立一个只接收 address 新邮件的订阅。
func (s *Store) Subscribe(ctx context.Context, address string) (backend.Subscription, error) {
	return s.push.Subscribe(ctx, address)
}

// SaveMessage 插入邮件并把事件转发到推送通道。
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	if err := s.Store.SaveMessage(ctx, message); err != nil {
		return err
	}
	if publisher, ok := s.push.(*redis.PubSub); ok {
		if err := publisher.PublishNewMail(ctx, message); err != nil {
			s.log.Warn("failed to publish new mail event", zap.Error(err))
		}
	}
	return nil
}

// Close 先关推送通道再关数据库。
func (s *Store) Close() error {
	pushErr := s.push.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return pushErr
}

// Health 数据库与推送通道都健康才算健康。
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return err
	}
	return s.push.Health()
}
