package inbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/cache"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

// SinkFactory 为指定会话创建通知接收器。
type SinkFactory func(sessionID string) notify.Sink

// ClipboardFactory 为指定会话创建剪贴板设施。
type ClipboardFactory func(sessionID string) Clipboard

// ManagerOptions 管理器配置。
type ManagerOptions struct {
	Coordinator Options
	DomainTTL   time.Duration // 域名快照缓存时长，默认 5m
	IdleTTL     time.Duration // 会话空闲回收时长，默认 30m
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.DomainTTL <= 0 {
		o.DomainTTL = 5 * time.Minute
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 30 * time.Minute
	}
	return o
}

// session 一个会话的协调器及其运行状态。
type session struct {
	coord    *Coordinator
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Manager 按会话维护协调器。
//
// 每个浏览器会话拥有独立的协调器实例；域名快照是进程级共享
// 缓存，避免每个会话各查一遍后端。不存在跨会话的可变全局状态。
type Manager struct {
	store backend.Store
	sinks SinkFactory
	clips ClipboardFactory
	log   *zap.Logger
	opts  ManagerOptions

	shared *cache.DomainCache[[]domain.Domain]

	mu       sync.Mutex
	sessions map[string]*session
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewManager 创建管理器。sinks、clips 可为 nil，对应会话将
// 得到空实现。
func NewManager(store backend.Store, sinks SinkFactory, clips ClipboardFactory, opts ManagerOptions, log *zap.Logger) *Manager {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    store,
		sinks:    sinks,
		clips:    clips,
		log:      log,
		opts:     opts,
		shared:   cache.NewDomainCache[[]domain.Domain](opts.DomainTTL),
		sessions: make(map[string]*session),
	}
}

// Start 启动管理器的后台回收循环。
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.ctx = runCtx
	m.cancel = cancel
	m.mu.Unlock()

	go m.reapLoop(runCtx)
}

// Get 返回会话的协调器；不存在时创建并启动。
func (m *Manager) Get(sessionID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		s.lastSeen = time.Now()
		return s.coord
	}

	var sink notify.Sink
	if m.sinks != nil {
		sink = m.sinks(sessionID)
	}
	var clip Clipboard
	if m.clips != nil {
		clip = m.clips(sessionID)
	}

	coord := NewCoordinator(m.store, sink, clip, m.shared, m.opts.Coordinator, m.log.With(zap.String("session_id", sessionID)))

	base := m.ctx
	if base == nil {
		base = context.Background()
	}
	sessCtx, cancel := context.WithCancel(base)
	m.sessions[sessionID] = &session{coord: coord, cancel: cancel, lastSeen: time.Now()}
	go coord.Run(sessCtx)

	m.log.Debug("inbox session created", zap.String("session_id", sessionID))
	return coord
}

// Remove 结束会话并释放其协调器。
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if ok {
		s.cancel()
		m.log.Debug("inbox session removed", zap.String("session_id", sessionID))
	}
}

// Len 返回当前活跃会话数。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close 结束全部会话。
func (m *Manager) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
}

// reapLoop 周期性回收空闲超时的会话。
func (m *Manager) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

func (m *Manager) reap() {
	cutoff := time.Now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.cancel()
	}
	if len(expired) > 0 {
		m.log.Info("reaped idle inbox sessions", zap.Int("count", len(expired)))
	}
}
