package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
)

// Store 使用内存保存域名、邮件与过滤规则，主要用于开发验证和测试。
//
// SaveMessage 会把新邮件同步推送给所有匹配地址的订阅者，模拟
// 托管后端的插入事件推送。
type Store struct {
	mu        sync.RWMutex
	domains   map[string]*domain.Domain        // domainID -> domain
	byDomain  map[string]string                // domain name -> domainID
	messages  map[string]map[string]*domain.Message // address -> messageID -> message
	custom    map[string]*domain.CustomAddress // address -> registration
	filters   map[string]*domain.Filter        // filterID -> filter
	users     map[string]*domain.User          // userID -> user
	byEmail   map[string]string                // email -> userID

	subMu  sync.Mutex
	subs   map[string]map[*subscription]struct{} // address -> subscriptions
	closed bool
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		domains:  make(map[string]*domain.Domain),
		byDomain: make(map[string]string),
		messages: make(map[string]map[string]*domain.Message),
		custom:   make(map[string]*domain.CustomAddress),
		filters:  make(map[string]*domain.Filter),
		users:    make(map[string]*domain.User),
		byEmail:  make(map[string]string),
		subs:     make(map[string]map[*subscription]struct{}),
	}
}

// ListActiveDomains 返回全部启用状态的域名。
func (s *Store) ListActiveDomains(ctx context.Context) ([]domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Domain, 0, len(s.domains))
	for _, d := range s.domains {
		if d.IsActive {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// SaveDomain 保存域名记录。
func (s *Store) SaveDomain(ctx context.Context, d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *d
	s.domains[d.ID] = &copied
	s.byDomain[strings.ToLower(d.Domain)] = d.ID
	return nil
}

// ListMessages 返回指定地址的全部邮件，按 received_at 降序。
func (s *Store) ListMessages(ctx context.Context, address string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.messages[strings.ToLower(address)]
	out := make([]domain.Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

// SaveMessage 保存邮件并向匹配地址的订阅者推送插入事件。
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	address := strings.ToLower(message.TempEmail)
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now().UTC()
	}

	s.mu.Lock()
	if s.messages[address] == nil {
		s.messages[address] = make(map[string]*domain.Message)
	}
	copied := *message
	s.messages[address][message.ID] = &copied
	s.mu.Unlock()

	s.publish(address, *message)
	return nil
}

// MarkMessageRead 标记邮件为已读。
func (s *Store) MarkMessageRead(ctx context.Context, address, messageID string) error {
	return s.setFlag(address, messageID, func(m *domain.Message) { m.IsRead = true })
}

// MarkMessageExpired 标记邮件为已过期。
func (s *Store) MarkMessageExpired(ctx context.Context, address, messageID string) error {
	return s.setFlag(address, messageID, func(m *domain.Message) { m.IsExpired = true })
}

func (s *Store) setFlag(address, messageID string, apply func(*domain.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.messages[strings.ToLower(address)]
	m, ok := byID[messageID]
	if !ok {
		return backend.ErrMessageNotFound
	}
	apply(m)
	return nil
}

// InsertCustomAddress 登记自定义地址，地址重复时返回 ErrAddressExists。
func (s *Store) InsertCustomAddress(ctx context.Context, addr *domain.CustomAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(addr.Address)
	if _, ok := s.custom[key]; ok {
		return backend.ErrAddressExists
	}
	copied := *addr
	s.custom[key] = &copied
	return nil
}

// ListFilters 返回全部过滤规则，按创建时间降序。
func (s *Store) ListFilters(ctx context.Context) ([]domain.Filter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Filter, 0, len(s.filters))
	for _, f := range s.filters {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SaveFilter 保存过滤规则。
func (s *Store) SaveFilter(ctx context.Context, filter *domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *filter
	s.filters[filter.ID] = &copied
	return nil
}

// UpdateFilterActive 更新过滤规则的启用状态。
func (s *Store) UpdateFilterActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.filters[id]
	if !ok {
		return backend.ErrFilterNotFound
	}
	f.IsActive = active
	return nil
}

// DeleteFilter 删除过滤规则。
func (s *Store) DeleteFilter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filters[id]; !ok {
		return backend.ErrFilterNotFound
	}
	delete(s.filters, id)
	return nil
}

// CreateUser 创建用户，邮箱重复时返回 ErrEmailExists。
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return backend.ErrEmailExists
	}
	copied := *user
	s.users[user.ID] = &copied
	s.byEmail[email] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, backend.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// GetUserByEmail 根据注册邮箱获取用户。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, backend.ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return backend.ErrUserNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

// Close 关闭存储并终止所有订阅。
func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, set := range s.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
	s.subs = make(map[string]map[*subscription]struct{})
	return nil
}

// Health 内存存储始终健康。
func (s *Store) Health() error {
	return nil
}
