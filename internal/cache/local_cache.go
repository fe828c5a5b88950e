package cache

import (
	"sync"
	"time"
)

// DomainCache 域名列表的进程内缓存。
//
// 域名变化极少，所有协调器共享同一份带 TTL 的快照，
// 避免每个会话都打一次后端查询。
type DomainCache[T any] struct {
	mu        sync.RWMutex
	value     T
	expiresAt time.Time
	ttl       time.Duration
	valid     bool
}

// NewDomainCache 创建缓存，ttl 为快照有效期。
func NewDomainCache[T any](ttl time.Duration) *DomainCache[T] {
	return &DomainCache[T]{ttl: ttl}
}

// Get 返回缓存值，过期或未填充时第二个返回值为 false。
func (c *DomainCache[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || time.Now().After(c.expiresAt) {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set 写入新快照并重置有效期。
func (c *DomainCache[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = value
	c.expiresAt = time.Now().Add(c.ttl)
	c.valid = true
}

// Invalidate 立即作废当前快照。
func (c *DomainCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
