package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend/memory"
	"tempmail/webclient/internal/notify"
)

func TestManager(t *testing.T) {
	t.Run("同一会话返回同一个协调器", func(t *testing.T) {
		m := NewManager(memory.NewStore(), nil, nil, ManagerOptions{}, nil)
		defer m.Close()

		first := m.Get("sess-1")
		second := m.Get("sess-1")
		assert.Same(t, first, second)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("不同会话的状态互相隔离", func(t *testing.T) {
		store := memory.NewStore()
		seedDomains(t, store, "tempmail.dev")
		m := NewManager(store, nil, nil, ManagerOptions{}, nil)
		defer m.Close()

		a := m.Get("sess-a")
		b := m.Get("sess-b")
		require.NotSame(t, a, b)

		_, err := a.ListActiveDomains(context.Background())
		require.NoError(t, err)
		_, err = a.GenerateAddress()
		require.NoError(t, err)

		assert.NotEmpty(t, a.Address())
		assert.Empty(t, b.Address(), "另一个会话不应看到地址变更")
	})

	t.Run("移除会话后重新创建", func(t *testing.T) {
		m := NewManager(memory.NewStore(), nil, nil, ManagerOptions{}, nil)
		defer m.Close()

		first := m.Get("sess-1")
		m.Remove("sess-1")
		assert.Equal(t, 0, m.Len())

		second := m.Get("sess-1")
		assert.NotSame(t, first, second)
	})

	t.Run("会话使用工厂创建的通知接收器", func(t *testing.T) {
		sink := &recorderSink{}
		m := NewManager(memory.NewStore(), func(string) notify.Sink { return sink }, nil, ManagerOptions{}, nil)
		defer m.Close()

		coord := m.Get("sess-1")
		_, err := coord.GenerateAddress()
		require.Error(t, err)
		assert.True(t, sink.hasSeverity(notify.SeverityError))
	})

	t.Run("空闲会话被回收", func(t *testing.T) {
		m := NewManager(memory.NewStore(), nil, nil, ManagerOptions{IdleTTL: time.Millisecond}, nil)
		defer m.Close()

		m.Get("sess-1")
		time.Sleep(5 * time.Millisecond)
		m.reap()
		assert.Equal(t, 0, m.Len())
	})
}
