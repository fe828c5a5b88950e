package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessExpiry time.Duration) *Manager {
	return NewManager(strings.Repeat("a", 32), "tempmail-test", accessExpiry, 7*24*time.Hour)
}

func TestGenerateTokenPair(t *testing.T) {
	m := newTestManager(15 * time.Minute)

	pair, err := m.GenerateTokenPair("user-1", "test@example.com", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "tempmail-test", claims.Issuer)
}

func TestValidateToken(t *testing.T) {
	t.Run("拒绝篡改的令牌", func(t *testing.T) {
		m := newTestManager(15 * time.Minute)
		pair, err := m.GenerateTokenPair("user-1", "test@example.com", "user")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken + "x")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("拒绝其他密钥签发的令牌", func(t *testing.T) {
		m := newTestManager(15 * time.Minute)
		other := NewManager(strings.Repeat("b", 32), "tempmail-test", 15*time.Minute, time.Hour)

		pair, err := other.GenerateTokenPair("user-1", "test@example.com", "user")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("拒绝过期令牌", func(t *testing.T) {
		m := newTestManager(-time.Minute)
		pair, err := m.GenerateTokenPair("user-1", "test@example.com", "user")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		require.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	m := newTestManager(15 * time.Minute)
	pair, err := m.GenerateTokenPair("user-1", "test@example.com", "user")
	require.NoError(t, err)

	access, err := m.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestExtractUserID(t *testing.T) {
	m := newTestManager(15 * time.Minute)
	pair, err := m.GenerateTokenPair("user-1", "test@example.com", "user")
	require.NoError(t, err)

	userID, err := m.ExtractUserID(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}
