// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ai-platform-server/internal/ai"
	"ai-platform-server/internal/cache"
	"ai-platform-server/internal/config"
	"ai-platform-server/internal/handler"
	"ai-platform-server/internal/middleware"
	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
	"ai-platform-server/internal/service"
	"ai-platform-server/internal/websocket"
	"ai-platform-server/pkg/jwt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// 加载本地 .env（不存在时忽略），再由 viper 读取配置和环境变量
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to init database", zap.Error(err))
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected and migrated")

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Fatal("Failed to init redis", zap.Error(err))
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 AI 网关
	gateway, err := ai.New(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to init AI gateway", zap.Error(err))
	}

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	convService := service.NewConversationService(convRepo, messageRepo)
	chatService := service.NewChatService(convRepo, messageRepo, gateway, logger)

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	convHandler := handler.NewConversationHandler(convService)
	chatHandler := handler.NewChatHandler(chatService, logger)
	wsHandler := websocket.NewHandler(chatService, cfg.JWT.Secret, logger)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware(logger)) // 恢复 panic
	router.Use(middleware.LoggerMiddleware(logger))   // 请求日志
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORS) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORS
	}
	router.Use(middleware.CORSMiddleware(corsConfig)) // CORS

	// 注册路由
	registerRoutes(router, jwtService, redisCache, authHandler, userHandler, convHandler, chatHandler, wsHandler)

	// 创建 HTTP 服务器
	// 流式响应会长时间占用连接，不设置 WriteTimeout
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		logger.Info("Server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 创建关闭上下文，设置超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// 关闭 Redis 连接
	if err := redisCache.Close(); err != nil {
		logger.Warn("Failed to close redis", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newLogger 根据配置创建 zap 日志实例
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Log.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	// 构建 DSN (Data Source Name)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	// 配置 GORM logger
	dbLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.Server.Mode == "release" {
		dbLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	// 连接数据库
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	convHandler *handler.ConversationHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *websocket.Handler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 认证相关
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		// 登出需要有效 Token（要把它加入黑名单）
		auth.POST("/logout", middleware.AuthMiddleware(jwtService, redisCache), authHandler.Logout)
		// 会话检查不强制认证，未登录返回 isAuthenticated=false
		auth.GET("/check", middleware.OptionalAuthMiddleware(jwtService, redisCache), authHandler.Check)
	}

	// 用户相关（需要登录）
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		users.GET("/me", userHandler.GetProfile)
	}

	// 对话管理（需要登录）
	conversations := v1.Group("/conversations")
	conversations.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		conversations.POST("", convHandler.Create)
		conversations.GET("", convHandler.List)
		conversations.GET("/:id", convHandler.Get)
		conversations.PATCH("/:id", convHandler.UpdateTitle)
		conversations.DELETE("/:id", convHandler.Delete)
	}

	// 聊天（需要登录）
	chat := v1.Group("/chat")
	{
		// WebSocket 握手无法携带 Authorization 头，认证走 query 参数
		chat.GET("/ws", wsHandler.HandleChatWS)

		chat.Use(middleware.AuthMiddleware(jwtService, redisCache))
		chat.POST("", chatHandler.Chat)
		chat.GET("", chatHandler.History)
	}
}
