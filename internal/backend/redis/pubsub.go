package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
)

// channelPrefix 新邮件推送频道前缀，每个地址一个频道。
const channelPrefix = "tempmail:newmail:"

// PubSub 基于 Redis 发布订阅的新邮件推送通道。
//
// 托管后端在每次向 emails 表插入记录后向对应地址的频道发布
// 一条 JSON 编码的邮件；客户端按地址订阅。
type PubSub struct {
	rdb *goredis.Client
	log *zap.Logger
}

// New 创建 Redis 推送通道客户端。
func New(addr, password string, db int, log *zap.Logger) (*PubSub, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connected to Redis", zap.String("address", addr), zap.Int("db", db))

	return &PubSub{rdb: rdb, log: log}, nil
}

// PublishNewMail 向地址对应的频道发布一条新邮件事件。
func (p *PubSub) PublishNewMail(ctx context.Context, message *domain.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	channel := channelPrefix + strings.ToLower(message.TempEmail)
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 建立一个只接收 address 新邮件的订阅。
func (p *PubSub) Subscribe(ctx context.Context, address string) (backend.Subscription, error) {
	channel := channelPrefix + strings.ToLower(address)
	pubsub := p.rdb.Subscribe(ctx, channel)

	// 确认订阅建立，避免订阅生效前的事件窗口
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &subscription{
		pubsub: pubsub,
		events: make(chan domain.Message, 16),
	}

	go sub.pump(p.log)
	return sub, nil
}

// Close 关闭 Redis 连接。
func (p *PubSub) Close() error {
	return p.rdb.Close()
}

// Health 检查 Redis 连接。
func (p *PubSub) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// subscription 是单个地址的 Redis 频道订阅。
type subscription struct {
	pubsub *goredis.PubSub
	events chan domain.Message
	once   sync.Once
}

// pump 把 Redis 频道消息解码后转发到事件通道。
func (s *subscription) pump(log *zap.Logger) {
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		var m domain.Message
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			log.Warn("failed to decode push event", zap.Error(err))
			continue
		}
		select {
		case s.events <- m:
		default:
			// 消费过慢，丢弃；轮询会兜底
		}
	}
}

// Events 返回新插入邮件的事件流。
func (s *subscription) Events() <-chan domain.Message {
	return s.events
}

// Close 取消订阅，可重复调用。
func (s *subscription) Close() {
	s.once.Do(func() {
		// 关闭 PubSub 会关闭 Channel()，pump 随之退出
		_ = s.pubsub.Close()
	})
}
