// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、Cache 和 AI 网关
package service

import (
	"context"
	"errors"
	"time"

	"ai-platform-server/internal/cache"
	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
	"ai-platform-server/pkg/jwt"
	"ai-platform-server/pkg/util"
)

// 定义业务错误
var (
	ErrUserExists = errors.New("用户名或邮箱已被注册")
	// 登录失败统一返回这一个错误，不区分"用户不存在"和"密码错误"，
	// 避免接口被用来探测邮箱是否已注册
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
)

// AuthService 认证服务
// 处理用户注册、登录、登出和 Token 刷新
type AuthService struct {
	userRepo   *repository.UserRepository // 用户数据访问层
	cache      *cache.RedisCache          // Redis 缓存
	jwtService *jwt.JWTService            // JWT 服务
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	userRepo *repository.UserRepository,
	cache *cache.RedisCache,
	jwtService *jwt.JWTService,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cache:      cache,
		jwtService: jwtService,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"` // 用户名
	Email    string `json:"email" binding:"required,email"`           // 邮箱
	Password string `json:"password" binding:"required,min=6"`        // 密码
}

// AuthResponse 认证响应
// 注册和登录共用，返回 Token 和用户信息
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`  // 访问令牌
	RefreshToken string      `json:"refresh_token"` // 刷新令牌
	ExpiresIn    int64       `json:"expires_in"`    // 过期时间（秒）
	User         *model.User `json:"user"`          // 用户信息
}

// Register 用户注册
// 注册成功后直接建立会话，无需再登录一次
// 参数:
//   - ctx: 上下文
//   - req: 注册请求
//
// 返回:
//   - *AuthResponse: 注册成功返回 Token 和用户信息
//   - error: 注册失败返回错误（用户名/邮箱已存在等）
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	// 1. 检查用户名或邮箱是否已被占用
	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	// 2. 对密码进行哈希
	// 使用 bcrypt 算法，自动添加盐值
	passwordHash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// 3. 创建用户
	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}

	// 保存到数据库，ID 在 BeforeCreate 钩子中生成
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	// 4. 生成会话 Token
	return s.issueTokens(user)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"` // 邮箱
	Password string `json:"password" binding:"required"`    // 密码
}

// Login 用户登录
// 参数:
//   - ctx: 上下文
//   - req: 登录请求
//
// 返回:
//   - *AuthResponse: 登录成功返回 Token 和用户信息
//   - error: 登录失败返回 ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	// 1. 根据邮箱查找用户
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// 2. 验证密码
	if !util.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成会话 Token
	return s.issueTokens(user)
}

// issueTokens 为用户生成 Access Token 和 Refresh Token
func (s *AuthService) issueTokens(user *model.User) (*AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.GetAccessExpire().Seconds()),
		User:         user,
	}, nil
}

// Logout 用户登出
// 将 Token 加入黑名单，剩余有效期内拒绝该 Token 的请求
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值
//   - expireAt: Token 的过期时间
//
// 返回:
//   - error: 操作错误
func (s *AuthService) Logout(ctx context.Context, tokenHash string, expireAt time.Time) error {
	return s.cache.BlacklistToken(ctx, tokenHash, expireAt)
}

// CheckResult 会话检查结果
type CheckResult struct {
	IsAuthenticated bool        `json:"isAuthenticated"` // 是否已登录
	User            *model.User `json:"user"`            // 已登录时返回用户信息，否则为 null
}

// Check 检查当前会话状态
// 未登录不算错误，返回 IsAuthenticated=false
// 参数:
//   - ctx: 上下文
//   - userID: 认证中间件解析出的用户ID，未认证时为空
//
// 返回:
//   - *CheckResult: 会话状态
//   - error: 数据库错误
func (s *AuthService) Check(ctx context.Context, userID string) (*CheckResult, error) {
	if userID == "" {
		return &CheckResult{IsAuthenticated: false}, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Token 有效但用户已被删除，视为未登录
		return &CheckResult{IsAuthenticated: false}, nil
	}

	return &CheckResult{IsAuthenticated: true, User: user}, nil
}

// RefreshTokenResponse 刷新 Token 响应
type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"` // 新的访问令牌
	ExpiresIn   int64  `json:"expires_in"`   // 过期时间（秒）
}

// RefreshToken 刷新 Access Token
// 参数:
//   - ctx: 上下文
//   - refreshToken: Refresh Token
//
// 返回:
//   - *RefreshTokenResponse: 新的 Access Token
//   - error: 刷新失败返回错误
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*RefreshTokenResponse, error) {
	// 1. 验证 Refresh Token
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// 2. 检查用户是否仍然存在
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// 3. 生成新的 Access Token
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &RefreshTokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtService.GetAccessExpire().Seconds()),
	}, nil
}
