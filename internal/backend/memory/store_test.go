package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
)

func TestListActiveDomains(t *testing.T) {
	t.Run("只返回启用的域名", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.SaveDomain(ctx, &domain.Domain{ID: "d1", Domain: "active.dev", IsActive: true}))
		require.NoError(t, store.SaveDomain(ctx, &domain.Domain{ID: "d2", Domain: "inactive.dev", IsActive: false}))

		domains, err := store.ListActiveDomains(ctx)
		require.NoError(t, err)
		require.Len(t, domains, 1)
		assert.Equal(t, "active.dev", domains[0].Domain)
	})

	t.Run("按域名排序", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.SaveDomain(ctx, &domain.Domain{ID: "d1", Domain: "zeta.dev", IsActive: true}))
		require.NoError(t, store.SaveDomain(ctx, &domain.Domain{ID: "d2", Domain: "alpha.dev", IsActive: true}))

		domains, err := store.ListActiveDomains(ctx)
		require.NoError(t, err)
		require.Len(t, domains, 2)
		assert.Equal(t, "alpha.dev", domains[0].Domain)
		assert.Equal(t, "zeta.dev", domains[1].Domain)
	})
}

func TestMessages(t *testing.T) {
	t.Run("按接收时间降序返回", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()
		base := time.Now().UTC()

		require.NoError(t, store.SaveMessage(ctx, &domain.Message{
			ID: "m1", TempEmail: "abc@tempmail.dev", ReceivedAt: base.Add(-time.Minute),
		}))
		require.NoError(t, store.SaveMessage(ctx, &domain.Message{
			ID: "m2", TempEmail: "abc@tempmail.dev", ReceivedAt: base,
		}))

		messages, err := store.ListMessages(ctx, "abc@tempmail.dev")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "m2", messages[0].ID)
		assert.Equal(t, "m1", messages[1].ID)
	})

	t.Run("地址不区分大小写", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: "m1", TempEmail: "ABC@Tempmail.Dev"}))

		messages, err := store.ListMessages(ctx, "abc@tempmail.dev")
		require.NoError(t, err)
		assert.Len(t, messages, 1)
	})

	t.Run("标记已读", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: "m1", TempEmail: "abc@tempmail.dev"}))
		require.NoError(t, store.MarkMessageRead(ctx, "abc@tempmail.dev", "m1"))

		messages, err := store.ListMessages(ctx, "abc@tempmail.dev")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.True(t, messages[0].IsRead)
	})

	t.Run("标记不存在的邮件返回错误", func(t *testing.T) {
		store := NewStore()
		defer store.Close()

		err := store.MarkMessageRead(context.Background(), "abc@tempmail.dev", "missing")
		assert.ErrorIs(t, err, backend.ErrMessageNotFound)
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("新邮件推送给订阅者", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		sub, err := store.Subscribe(ctx, "abc@tempmail.dev")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, store.SaveMessage(ctx, &domain.Message{
			ID: "m1", TempEmail: "abc@tempmail.dev", FromEmail: "sender@example.com",
		}))

		select {
		case msg := <-sub.Events():
			assert.Equal(t, "m1", msg.ID)
			assert.Equal(t, "sender@example.com", msg.FromEmail)
		case <-time.After(time.Second):
			t.Fatal("未收到推送事件")
		}
	})

	t.Run("其他地址的邮件不会推送", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		sub, err := store.Subscribe(ctx, "abc@tempmail.dev")
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: "m1", TempEmail: "other@tempmail.dev"}))

		select {
		case msg, ok := <-sub.Events():
			if ok {
				t.Fatalf("不应收到事件: %+v", msg)
			}
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("关闭订阅后事件通道关闭", func(t *testing.T) {
		store := NewStore()
		defer store.Close()

		sub, err := store.Subscribe(context.Background(), "abc@tempmail.dev")
		require.NoError(t, err)
		sub.Close()

		_, ok := <-sub.Events()
		assert.False(t, ok)
	})

	t.Run("上下文取消后订阅关闭", func(t *testing.T) {
		store := NewStore()
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub, err := store.Subscribe(ctx, "abc@tempmail.dev")
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("订阅未随上下文关闭")
		}
	})
}

func TestCustomAddress(t *testing.T) {
	t.Run("重复登记返回冲突错误", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		addr := &domain.CustomAddress{ID: "c1", Address: "alice@example.com", Domain: "example.com", UserID: "user-1"}
		require.NoError(t, store.InsertCustomAddress(ctx, addr))

		err := store.InsertCustomAddress(ctx, &domain.CustomAddress{ID: "c2", Address: "Alice@Example.com"})
		assert.ErrorIs(t, err, backend.ErrAddressExists)
	})
}

func TestFilters(t *testing.T) {
	store := NewStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveFilter(ctx, &domain.Filter{
		ID: "f1", FilterType: domain.FilterTypeSender, Pattern: "spam@", IsActive: true,
	}))

	t.Run("更新启用状态", func(t *testing.T) {
		require.NoError(t, store.UpdateFilterActive(ctx, "f1", false))

		list, err := store.ListFilters(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].IsActive)
	})

	t.Run("更新不存在的规则返回错误", func(t *testing.T) {
		err := store.UpdateFilterActive(ctx, "missing", true)
		assert.ErrorIs(t, err, backend.ErrFilterNotFound)
	})

	t.Run("删除规则", func(t *testing.T) {
		require.NoError(t, store.DeleteFilter(ctx, "f1"))

		list, err := store.ListFilters(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		assert.ErrorIs(t, store.DeleteFilter(ctx, "f1"), backend.ErrFilterNotFound)
	})
}

func TestUsers(t *testing.T) {
	t.Run("邮箱重复返回冲突错误", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "u1", Email: "a@b.com"}))
		err := store.CreateUser(ctx, &domain.User{ID: "u2", Email: "A@B.com"})
		assert.ErrorIs(t, err, backend.ErrEmailExists)
	})

	t.Run("更新最后登录时间", func(t *testing.T) {
		store := NewStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "u1", Email: "a@b.com"}))
		require.NoError(t, store.UpdateLastLogin(ctx, "u1"))

		u, err := store.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.NotNil(t, u.LastLoginAt)
	})

	t.Run("查询不存在的用户", func(t *testing.T) {
		store := NewStore()
		defer store.Close()

		_, err := store.GetUserByEmail(context.Background(), "nobody@b.com")
		assert.ErrorIs(t, err, backend.ErrUserNotFound)
	})
}
