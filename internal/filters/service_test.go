package filters

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/backend/memory"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

type recorderSink struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (r *recorderSink) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorderSink) last() (notify.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return notify.Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

func seedFilter(t *testing.T, store backend.FilterRepository, id string, active bool) {
	t.Helper()
	require.NoError(t, store.SaveFilter(context.Background(), &domain.Filter{
		ID:         id,
		FilterType: domain.FilterTypeSender,
		Pattern:    "spam@" + id + ".com",
		IsActive:   active,
	}))
}

func TestToggle(t *testing.T) {
	t.Run("切换后返回刷新的列表", func(t *testing.T) {
		store := memory.NewStore()
		seedFilter(t, store, "f1", true)
		sink := &recorderSink{}
		svc := NewService(store, sink, nil)

		filters, err := svc.Toggle(context.Background(), "f1", false)
		require.NoError(t, err)
		require.Len(t, filters, 1)
		assert.False(t, filters[0].IsActive)

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, notify.SeveritySuccess, n.Severity)
		assert.Equal(t, "过滤规则已停用", n.Description)
	})

	t.Run("规则不存在时报错", func(t *testing.T) {
		svc := NewService(memory.NewStore(), &recorderSink{}, nil)

		_, err := svc.Toggle(context.Background(), "missing", true)
		require.ErrorIs(t, err, backend.ErrFilterNotFound)
	})
}

func TestDelete(t *testing.T) {
	t.Run("删除后返回刷新的列表", func(t *testing.T) {
		store := memory.NewStore()
		seedFilter(t, store, "f1", true)
		seedFilter(t, store, "f2", true)
		sink := &recorderSink{}
		svc := NewService(store, sink, nil)

		filters, err := svc.Delete(context.Background(), "f1")
		require.NoError(t, err)
		require.Len(t, filters, 1)
		assert.Equal(t, "f2", filters[0].ID)

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, notify.SeveritySuccess, n.Severity)
	})

	t.Run("规则不存在时报错", func(t *testing.T) {
		sink := &recorderSink{}
		svc := NewService(memory.NewStore(), sink, nil)

		_, err := svc.Delete(context.Background(), "missing")
		require.ErrorIs(t, err, backend.ErrFilterNotFound)

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, notify.SeverityError, n.Severity)
	})
}

func TestCreate(t *testing.T) {
	t.Run("创建合法规则", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewService(store, &recorderSink{}, nil)

		filters, err := svc.Create(context.Background(), &domain.Filter{
			ID:         "f1",
			FilterType: domain.FilterTypeSubject,
			Pattern:    "中奖通知",
			IsActive:   true,
		})
		require.NoError(t, err)
		assert.Len(t, filters, 1)
	})

	t.Run("拒绝未知过滤类型", func(t *testing.T) {
		svc := NewService(memory.NewStore(), nil, nil)

		_, err := svc.Create(context.Background(), &domain.Filter{
			ID:         "f1",
			FilterType: "regex",
			Pattern:    "x",
		})
		require.ErrorIs(t, err, domain.ErrInvalidFilterType)
	})

	t.Run("拒绝空规则内容", func(t *testing.T) {
		svc := NewService(memory.NewStore(), nil, nil)

		_, err := svc.Create(context.Background(), &domain.Filter{
			ID:         "f1",
			FilterType: domain.FilterTypeSender,
		})
		require.ErrorIs(t, err, domain.ErrEmptyPattern)
	})
}
