package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
	"ai-platform-server/pkg/jwt"
	"ai-platform-server/pkg/util"
)

// testJWTSecret 测试用 JWT 密钥
const testJWTSecret = "test-secret-key-with-at-least-32-chars!"

// setupTestDB 创建内存数据库并迁移表结构
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
	))
	return db
}

// newTestJWTService 创建测试用 JWT 服务
func newTestJWTService() *jwt.JWTService {
	return jwt.NewJWTService(testJWTSecret, time.Hour, 24*time.Hour)
}

// createTestUser 直接在数据库里创建一个用户，返回其 ID
func createTestUser(t *testing.T, db *gorm.DB, username, email string) string {
	t.Helper()

	hash, err := util.HashPassword("password123")
	require.NoError(t, err)

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))
	return user.ID
}
