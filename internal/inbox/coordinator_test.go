package inbox

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/backend/memory"
	"tempmail/webclient/internal/cache"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/notify"
)

// recorderSink 记录收到的全部通知，供断言使用。
type recorderSink struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (r *recorderSink) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorderSink) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func (r *recorderSink) hasSeverity(sev notify.Severity) bool {
	for _, n := range r.all() {
		if n.Severity == sev {
			return true
		}
	}
	return false
}

// flakyStore 包装内存存储，按开关注入查询失败和查询中的钩子。
type flakyStore struct {
	*memory.Store

	mu             sync.Mutex
	failMessages   bool
	failDomains    bool
	domainCalls    int
	onListMessages func()
}

func (s *flakyStore) ListActiveDomains(ctx context.Context) ([]domain.Domain, error) {
	s.mu.Lock()
	s.domainCalls++
	fail := s.failDomains
	s.mu.Unlock()

	if fail {
		return nil, assert.AnError
	}
	return s.Store.ListActiveDomains(ctx)
}

func (s *flakyStore) ListMessages(ctx context.Context, address string) ([]domain.Message, error) {
	s.mu.Lock()
	fail := s.failMessages
	hook := s.onListMessages
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return nil, assert.AnError
	}
	return s.Store.ListMessages(ctx, address)
}

func (s *flakyStore) setFailMessages(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMessages = v
}

func seedDomains(t *testing.T, store backend.Store, names ...string) {
	t.Helper()
	for i, name := range names {
		err := store.SaveDomain(context.Background(), &domain.Domain{
			ID:       name,
			Domain:   name,
			IsActive: true,
		})
		require.NoError(t, err, "seed domain %d", i)
	}
}

func newTestCoordinator(store backend.Store, sink notify.Sink) *Coordinator {
	return NewCoordinator(store, sink, nil, nil, Options{
		PollInterval: 20 * time.Millisecond,
		DomainRetry:  RetryPolicy{MaxTries: 1, InitialInterval: time.Millisecond},
	}, nil)
}

var localPartPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

func TestGenerateAddress(t *testing.T) {
	t.Run("生成的地址格式正确", func(t *testing.T) {
		store := memory.NewStore()
		seedDomains(t, store, "tempmail.dev", "mailbox.io")
		sink := &recorderSink{}
		coord := newTestCoordinator(store, sink)

		_, err := coord.ListActiveDomains(context.Background())
		require.NoError(t, err)

		address, err := coord.GenerateAddress()
		require.NoError(t, err)

		local, domainName, found := strings.Cut(address, "@")
		require.True(t, found)
		assert.Regexp(t, localPartPattern, local)
		assert.Contains(t, []string{"tempmail.dev", "mailbox.io"}, domainName)
		assert.Equal(t, address, coord.Address())
		assert.True(t, sink.hasSeverity(notify.SeveritySuccess))
	})

	t.Run("连续生成的地址互不相同", func(t *testing.T) {
		store := memory.NewStore()
		seedDomains(t, store, "tempmail.dev")
		coord := newTestCoordinator(store, &recorderSink{})

		_, err := coord.ListActiveDomains(context.Background())
		require.NoError(t, err)

		first, err := coord.GenerateAddress()
		require.NoError(t, err)
		second, err := coord.GenerateAddress()
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		require.NotEmpty(t, coord.History())
		assert.Equal(t, first, coord.History()[0], "前一个地址应进入历史首位")
	})

	t.Run("无可用域名时不改变活跃地址", func(t *testing.T) {
		store := memory.NewStore()
		sink := &recorderSink{}
		coord := newTestCoordinator(store, sink)

		_, err := coord.GenerateAddress()
		require.ErrorIs(t, err, ErrNoDomains)
		assert.Empty(t, coord.Address())
		assert.True(t, sink.hasSeverity(notify.SeverityError))

		// 已有活跃地址时同样保持不变
		coord.SetAddress("keep@tempmail.dev")
		_, err = coord.GenerateAddress()
		require.ErrorIs(t, err, ErrNoDomains)
		assert.Equal(t, "keep@tempmail.dev", coord.Address())
	})
}

func TestHistoryBounded(t *testing.T) {
	store := memory.NewStore()
	seedDomains(t, store, "tempmail.dev")
	coord := newTestCoordinator(store, &recorderSink{})

	_, err := coord.ListActiveDomains(context.Background())
	require.NoError(t, err)

	var generated []string
	for i := 0; i < 8; i++ {
		address, err := coord.GenerateAddress()
		require.NoError(t, err)
		generated = append(generated, address)
	}

	history := coord.History()
	require.Len(t, history, 5, "历史最多保留 5 条")
	for i := 0; i < 5; i++ {
		// 最近使用的在前：history[0] 是倒数第二个生成的地址
		assert.Equal(t, generated[6-i], history[i])
	}
}

func TestListActiveDomains(t *testing.T) {
	t.Run("失败时重试后返回空序列", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore(), failDomains: true}
		sink := &recorderSink{}
		coord := NewCoordinator(store, sink, nil, nil, Options{
			DomainRetry: RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond},
		}, nil)

		domains, err := coord.ListActiveDomains(context.Background())
		require.Error(t, err)
		assert.Empty(t, domains)
		assert.Equal(t, 3, store.domainCalls, "应按策略重试 3 次")
		assert.True(t, sink.hasSeverity(notify.SeverityError))
	})

	t.Run("共享缓存命中时不查后端", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore()}
		seedDomains(t, store, "tempmail.dev")
		shared := cache.NewDomainCache[[]domain.Domain](time.Minute)
		coord := NewCoordinator(store, nil, nil, shared, Options{}, nil)

		_, err := coord.ListActiveDomains(context.Background())
		require.NoError(t, err)

		other := NewCoordinator(store, nil, nil, shared, Options{}, nil)
		domains, err := other.ListActiveDomains(context.Background())
		require.NoError(t, err)
		assert.Len(t, domains, 1)
		assert.Equal(t, 1, store.domainCalls, "第二个会话应命中缓存")
	})
}

func TestRefreshMessages(t *testing.T) {
	t.Run("查询失败时保留上次缓存", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore()}
		sink := &recorderSink{}
		coord := newTestCoordinator(store, sink)
		coord.SetAddress("box@tempmail.dev")

		require.NoError(t, store.SaveMessage(context.Background(), &domain.Message{
			ID:        "m1",
			TempEmail: "box@tempmail.dev",
			FromEmail: "sender@example.com",
			Subject:   "hello",
		}))

		messages := coord.RefreshMessages(context.Background())
		require.Len(t, messages, 1)

		store.setFailMessages(true)
		messages = coord.RefreshMessages(context.Background())
		assert.Len(t, messages, 1, "失败时应返回上次的缓存")
		assert.Len(t, coord.Messages(), 1)
		assert.True(t, sink.hasSeverity(notify.SeverityError))
	})

	t.Run("地址切换后丢弃过期结果", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore()}
		coord := newTestCoordinator(store, &recorderSink{})
		coord.SetAddress("old@tempmail.dev")

		require.NoError(t, store.SaveMessage(context.Background(), &domain.Message{
			ID:        "m1",
			TempEmail: "old@tempmail.dev",
			FromEmail: "sender@example.com",
		}))

		// 查询进行中切换地址，返回的快照已属于旧纪元
		fired := false
		store.onListMessages = func() {
			if !fired {
				fired = true
				coord.SetAddress("new@tempmail.dev")
			}
		}

		coord.RefreshMessages(context.Background())
		assert.Empty(t, coord.Messages(), "旧地址的快照不应写入新地址的缓存")
	})

	t.Run("无活跃地址时返回空序列", func(t *testing.T) {
		coord := newTestCoordinator(memory.NewStore(), &recorderSink{})
		assert.Empty(t, coord.RefreshMessages(context.Background()))
	})
}

func TestPushRefresh(t *testing.T) {
	t.Run("新邮件推送触发刷新和提示", func(t *testing.T) {
		store := memory.NewStore()
		sink := &recorderSink{}
		coord := newTestCoordinator(store, sink)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go coord.Run(ctx)

		coord.SetAddress("box@tempmail.dev")
		require.Eventually(t, func() bool {
			require.NoError(t, store.SaveMessage(ctx, &domain.Message{
				ID:        "m1",
				TempEmail: "box@tempmail.dev",
				FromEmail: "sender@example.com",
			}))
			return len(coord.Messages()) > 0
		}, time.Second, 10*time.Millisecond)

		assert.Eventually(t, func() bool {
			for _, n := range sink.all() {
				if n.Title == "收到新邮件" && n.Description == "来自: sender@example.com" {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("切换地址后旧地址的邮件不会混入", func(t *testing.T) {
		store := memory.NewStore()
		coord := newTestCoordinator(store, &recorderSink{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go coord.Run(ctx)

		coord.SetAddress("old@tempmail.dev")
		time.Sleep(50 * time.Millisecond)
		coord.SetAddress("new@tempmail.dev")

		// 切换后针对旧地址的插入事件必须被丢弃
		require.NoError(t, store.SaveMessage(ctx, &domain.Message{
			ID:        "m-old",
			TempEmail: "old@tempmail.dev",
			FromEmail: "late@example.com",
		}))

		time.Sleep(100 * time.Millisecond)
		for _, m := range coord.Messages() {
			assert.Equal(t, "new@tempmail.dev", m.TempEmail)
		}
	})
}

func TestCopyAddress(t *testing.T) {
	t.Run("复制活跃地址", func(t *testing.T) {
		clip := NewMemoryClipboard()
		sink := &recorderSink{}
		coord := NewCoordinator(memory.NewStore(), sink, clip, nil, Options{}, nil)
		coord.SetAddress("box@tempmail.dev")

		require.NoError(t, coord.CopyAddress())
		assert.Equal(t, "box@tempmail.dev", clip.Text())
		assert.True(t, sink.hasSeverity(notify.SeveritySuccess))
	})

	t.Run("无活跃地址时不写入", func(t *testing.T) {
		clip := NewMemoryClipboard()
		sink := &recorderSink{}
		coord := NewCoordinator(memory.NewStore(), sink, clip, nil, Options{}, nil)

		require.NoError(t, coord.CopyAddress())
		assert.Empty(t, clip.Text())
		assert.Empty(t, sink.all())
	})
}

func TestEnsureAddress(t *testing.T) {
	store := memory.NewStore()
	seedDomains(t, store, "tempmail.dev")
	coord := newTestCoordinator(store, &recorderSink{})

	first, err := coord.EnsureAddress(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := coord.EnsureAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second, "已有地址时不应重新生成")
}

func TestMarkMessageRead(t *testing.T) {
	store := memory.NewStore()
	coord := newTestCoordinator(store, &recorderSink{})

	err := coord.MarkMessageRead(context.Background(), "m1")
	require.ErrorIs(t, err, ErrNoActiveAddress)

	coord.SetAddress("box@tempmail.dev")
	require.NoError(t, store.SaveMessage(context.Background(), &domain.Message{
		ID:        "m1",
		TempEmail: "box@tempmail.dev",
	}))

	require.NoError(t, coord.MarkMessageRead(context.Background(), "m1"))
	messages := coord.RefreshMessages(context.Background())
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)
}
