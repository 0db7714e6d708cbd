package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-with-at-least-32-chars!"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "access", claims.Subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, 24*time.Hour)
	other := NewJWTService("another-secret-also-32-characters-long!", time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret, -time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRefreshToken_RejectsAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, 24*time.Hour)

	accessToken, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)
	refreshToken, err := svc.GenerateRefreshToken("user-1", "alice")
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(accessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.ValidateRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Subject)
}

func TestParseUserToken(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := ParseUserToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = ParseUserToken(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
