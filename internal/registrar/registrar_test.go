package registrar

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

// stubRepo 记录插入调用并返回预设错误。
type stubRepo struct {
	mu       sync.Mutex
	inserted []domain.CustomAddress
	err      error
}

func (r *stubRepo) InsertCustomAddress(ctx context.Context, addr *domain.CustomAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, *addr)
	return nil
}

func (r *stubRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

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

func TestRegister(t *testing.T) {
	t.Run("返回规范化后的完整地址", func(t *testing.T) {
		repo := &stubRepo{}
		sink := &recorderSink{}
		svc := NewService(repo, sink, nil)

		address, err := svc.Register(context.Background(), "alice", "example.com", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", address)

		require.Len(t, repo.inserted, 1)
		assert.Equal(t, "alice@example.com", repo.inserted[0].Address)
		assert.Equal(t, "example.com", repo.inserted[0].Domain)
		assert.Equal(t, "user-1", repo.inserted[0].UserID)

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, notify.SeveritySuccess, n.Severity)
	})

	t.Run("大写输入被统一成小写", func(t *testing.T) {
		repo := &stubRepo{}
		svc := NewService(repo, nil, nil)

		address, err := svc.Register(context.Background(), "Alice", "Example.COM", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", address)
	})

	t.Run("空用户名直接拒绝且不调用后端", func(t *testing.T) {
		repo := &stubRepo{}
		sink := &recorderSink{}
		svc := NewService(repo, sink, nil)

		_, err := svc.Register(context.Background(), "   ", "example.com", "user-1")
		require.ErrorIs(t, err, ErrUsernameRequired)
		assert.Equal(t, 0, repo.calls())

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, notify.SeverityError, n.Severity)
	})

	t.Run("未登录直接拒绝且不调用后端", func(t *testing.T) {
		repo := &stubRepo{}
		svc := NewService(repo, &recorderSink{}, nil)

		_, err := svc.Register(context.Background(), "alice", "example.com", "")
		require.ErrorIs(t, err, ErrAuthRequired)
		assert.Equal(t, 0, repo.calls())
	})

	t.Run("非法本地部分被校验拦截", func(t *testing.T) {
		repo := &stubRepo{}
		svc := NewService(repo, nil, nil)

		_, err := svc.Register(context.Background(), "bad!!name", "example.com", "user-1")
		require.ErrorIs(t, err, domain.ErrInvalidLocalPart)
		assert.Equal(t, 0, repo.calls())
	})

	t.Run("后端权限拒绝映射为登录过期", func(t *testing.T) {
		repo := &stubRepo{err: backend.ErrPermissionDenied}
		sink := &recorderSink{}
		svc := NewService(repo, sink, nil)

		_, err := svc.Register(context.Background(), "alice", "example.com", "user-1")
		require.ErrorIs(t, err, ErrAuthExpired)

		n, ok := sink.last()
		require.True(t, ok)
		assert.Equal(t, "登录已过期", n.Title)
	})

	t.Run("地址重复返回占用错误", func(t *testing.T) {
		repo := &stubRepo{err: backend.ErrAddressExists}
		svc := NewService(repo, nil, nil)

		_, err := svc.Register(context.Background(), "alice", "example.com", "user-1")
		require.ErrorIs(t, err, backend.ErrAddressExists)
	})

	t.Run("其他后端错误归为持久化失败", func(t *testing.T) {
		repo := &stubRepo{err: assert.AnError}
		svc := NewService(repo, nil, nil)

		_, err := svc.Register(context.Background(), "alice", "example.com", "user-1")
		require.ErrorIs(t, err, ErrPersistence)
	})
}
