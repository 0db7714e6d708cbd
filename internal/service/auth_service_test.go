package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-platform-server/internal/repository"
)

func newTestAuthService(t *testing.T) (*AuthService, *repository.UserRepository) {
	t.Helper()

	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	// Register/Login 不触达 Redis，缓存传 nil
	return NewAuthService(userRepo, nil, newTestJWTService()), userRepo
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotNil(t, registered.User)
	assert.NotEmpty(t, registered.User.ID)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	// 注册后用同样的凭据登录，拿到同一个用户
	loggedIn, err := svc.Login(ctx, &LoginRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
}

func TestRegister_PasswordNeverStoredPlain(t *testing.T) {
	svc, userRepo := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	user, err := userRepo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	// 用户名重复
	_, err = svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// 邮箱重复
	_, err = svc.Register(ctx, &RegisterRequest{
		Username: "bob",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	// 密码错误和邮箱不存在返回同一个错误，不泄露账号是否存在
	_, err = svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCheck(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	// 未认证
	result, err := svc.Check(ctx, "")
	require.NoError(t, err)
	assert.False(t, result.IsAuthenticated)
	assert.Nil(t, result.User)

	registered, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	// 已认证
	result, err = svc.Check(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.True(t, result.IsAuthenticated)
	require.NotNil(t, result.User)
	assert.Equal(t, "alice", result.User.Username)

	// Token 有效但用户已不存在
	result, err = svc.Check(ctx, "no-such-user-id")
	require.NoError(t, err)
	assert.False(t, result.IsAuthenticated)
}

func TestRefreshToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// Access Token 不能用来刷新
	_, err = svc.RefreshToken(ctx, registered.AccessToken)
	assert.Error(t, err)
}
