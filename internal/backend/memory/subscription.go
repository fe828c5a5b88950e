package memory

import (
	"context"
	"strings"
	"sync"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
)

// subscription 是单个地址的插入事件订阅。
type subscription struct {
	store   *Store
	address string
	events  chan domain.Message
	once    sync.Once
}

// Subscribe 建立一个只接收 address 新邮件的订阅。
//
// 事件通道带缓冲，投递时订阅者消费过慢会丢弃事件；协调器的
// 定时轮询保证丢失的事件最终仍会被全量刷新覆盖。
func (s *Store) Subscribe(ctx context.Context, address string) (backend.Subscription, error) {
	address = strings.ToLower(address)

	sub := &subscription{
		store:   s,
		address: address,
		events:  make(chan domain.Message, 16),
	}

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(sub.events)
		return sub, nil
	}
	if s.subs[address] == nil {
		s.subs[address] = make(map[*subscription]struct{})
	}
	s.subs[address][sub] = struct{}{}
	s.subMu.Unlock()

	// 上下文取消时自动关闭订阅
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}

	return sub, nil
}

// Events 返回新插入邮件的事件流。
func (s *subscription) Events() <-chan domain.Message {
	return s.events
}

// Close 取消订阅，可重复调用。
func (s *subscription) Close() {
	s.store.subMu.Lock()
	defer s.store.subMu.Unlock()
	s.closeLocked()

	if set, ok := s.store.subs[s.address]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.store.subs, s.address)
		}
	}
}

// closeLocked 关闭事件通道，调用方必须持有 subMu。
func (s *subscription) closeLocked() {
	s.once.Do(func() {
		close(s.events)
	})
}

// publish 向匹配地址的所有订阅者投递插入事件。
func (s *Store) publish(address string, message domain.Message) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for sub := range s.subs[address] {
		select {
		case sub.events <- message:
		default:
			// 订阅者阻塞，丢弃事件
		}
	}
}
