package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/webclient/internal/backend/memory"
	"tempmail/webclient/internal/domain"
)

func TestRegister(t *testing.T) {
	t.Run("注册成功", func(t *testing.T) {
		svc := NewService(memory.NewStore())

		user, err := svc.Register(context.Background(), RegisterInput{
			Email:    "Test@Example.com",
			Password: "Password123!",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "test@example.com", user.Email, "邮箱应统一为小写")
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "Password123!", user.PasswordHash)
	})

	t.Run("重复邮箱注册失败", func(t *testing.T) {
		svc := NewService(memory.NewStore())

		_, err := svc.Register(context.Background(), RegisterInput{
			Email:    "test@example.com",
			Password: "Password123!",
		})
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), RegisterInput{
			Email:    "TEST@example.com",
			Password: "OtherPassword1",
		})
		require.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("无效邮箱格式失败", func(t *testing.T) {
		svc := NewService(memory.NewStore())

		_, err := svc.Register(context.Background(), RegisterInput{
			Email:    "not-an-email",
			Password: "Password123!",
		})
		require.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("弱密码失败", func(t *testing.T) {
		svc := NewService(memory.NewStore())

		_, err := svc.Register(context.Background(), RegisterInput{
			Email:    "test@example.com",
			Password: "short",
		})
		require.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestLogin(t *testing.T) {
	newRegistered := func(t *testing.T) (*Service, *domain.User) {
		t.Helper()
		store := memory.NewStore()
		svc := NewService(store)
		user, err := svc.Register(context.Background(), RegisterInput{
			Email:    "test@example.com",
			Password: "Password123!",
		})
		require.NoError(t, err)
		return svc, user
	}

	t.Run("登录成功", func(t *testing.T) {
		svc, registered := newRegistered(t)

		user, err := svc.Login(context.Background(), LoginInput{
			Email:    "test@example.com",
			Password: "Password123!",
		})
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
	})

	t.Run("密码错误失败", func(t *testing.T) {
		svc, _ := newRegistered(t)

		_, err := svc.Login(context.Background(), LoginInput{
			Email:    "test@example.com",
			Password: "WrongPassword1",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("用户不存在失败", func(t *testing.T) {
		svc, _ := newRegistered(t)

		_, err := svc.Login(context.Background(), LoginInput{
			Email:    "nobody@example.com",
			Password: "Password123!",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Password123!")
	require.NoError(t, err)

	assert.True(t, CheckPassword("Password123!", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("user@example.com"))
	assert.True(t, ValidateEmail("user.name+tag@sub.example.org"))
	assert.False(t, ValidateEmail("user@"))
	assert.False(t, ValidateEmail("@example.com"))
	assert.False(t, ValidateEmail("plain-text"))
}
