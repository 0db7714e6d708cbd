// Package model 定义了与数据库表对应的数据结构
// 这些结构体类似于 Java 中的 Entity 类
package model

import (
	"time"

	"gorm.io/gorm"

	"ai-platform-server/pkg/util"
)

// User 用户模型
// 对应数据库表 users
// 存储用户的基本信息，包括认证凭据
type User struct {
	// ID 用户唯一标识，UUID v4 字符串
	// 在 BeforeCreate 钩子中自动生成
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// Username 用户名，用于展示，全局唯一
	// 长度限制 3-50 字符，建立唯一索引
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`

	// Email 用户邮箱，用于登录，全局唯一
	Email string `gorm:"size:100;uniqueIndex;not null" json:"email"`

	// PasswordHash 密码的 bcrypt 哈希值
	// 永远不要存储明文密码！
	PasswordHash string `gorm:"size:255;not null" json:"-"` // json:"-" 表示序列化时忽略此字段

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Conversations 用户拥有的对话（一对多关系）
	// 这是 GORM 的关联关系，不会在数据库中创建字段
	Conversations []Conversation `gorm:"foreignKey:UserID" json:"conversations,omitempty"`
}

// BeforeCreate 创建前钩子，生成 UUID 主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = util.GenerateUUID()
	}
	return nil
}

// TableName 指定表名
// GORM 会使用这个方法返回的表名，而不是默认的复数形式
func (User) TableName() string {
	return "users"
}
