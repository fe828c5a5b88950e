package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/config"
	"tempmail/webclient/internal/domain"
)

// notifyChannel 后端在 emails 表插入触发器里 NOTIFY 的频道名。
const notifyChannel = "tempmail_newmail"

// Listener 基于 PostgreSQL LISTEN/NOTIFY 的新邮件推送通道。
//
// 后端数据库在 emails 表上挂 AFTER INSERT 触发器，把整行以
// JSON 形式 NOTIFY 到固定频道；客户端按活跃地址过滤。未配置
// Redis 且后端是 PostgreSQL 时使用本实现。
type Listener struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New 创建 PostgreSQL 推送监听客户端。
func New(cfg *config.DatabaseConfig, log *zap.Logger) (*Listener, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connected to PostgreSQL listener",
		zap.Int("max_conns", cfg.MaxOpenConns),
		zap.Int("min_conns", cfg.MaxIdleConns),
	)

	return &Listener{pool: pool, log: log}, nil
}

// Subscribe 建立一个只接收 address 新邮件的订阅。
//
// 每个订阅占用一条专用连接执行 LISTEN；取消订阅或上下文结束
// 时连接归还连接池。
func (l *Listener) Subscribe(ctx context.Context, address string) (backend.Subscription, error) {
	address = strings.ToLower(address)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		cancel: cancel,
		events: make(chan domain.Message, 16),
	}

	go func() {
		defer close(sub.events)
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					l.log.Warn("listen connection lost", zap.Error(err))
				}
				return
			}

			var m domain.Message
			if err := json.Unmarshal([]byte(notification.Payload), &m); err != nil {
				l.log.Warn("failed to decode notify payload", zap.Error(err))
				continue
			}
			if strings.ToLower(m.TempEmail) != address {
				continue // 频道是全局的，按地址过滤
			}
			select {
			case sub.events <- m:
			default:
				// 消费过慢，丢弃；轮询会兜底
			}
		}
	}()

	return sub, nil
}

// Close 关闭连接池。
func (l *Listener) Close() error {
	l.pool.Close()
	return nil
}

// Health 检查数据库连接。
func (l *Listener) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return l.pool.Ping(ctx)
}

// subscription 是单个地址的 LISTEN 订阅。
type subscription struct {
	cancel context.CancelFunc
	events chan domain.Message
	once   sync.Once
}

// Events 返回新插入邮件的事件流。
func (s *subscription) Events() <-chan domain.Message {
	return s.events
}

// Close 取消订阅，可重复调用。
func (s *subscription) Close() {
	s.once.Do(s.cancel)
}
