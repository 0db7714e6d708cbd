// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"

	"gorm.io/gorm"

	"ai-platform-server/pkg/util"
)

// DefaultConversationTitle 对话的默认标题
// 前端显式创建对话且未提供标题时使用
const DefaultConversationTitle = "New Conversation"

// Conversation 对话模型
// 对应数据库表 conversations
// 表示用户与 AI 的一次对话，类似于聊天应用中的会话窗口
type Conversation struct {
	// ID 对话唯一标识，UUID v4 字符串
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// UserID 所属用户ID，外键关联 users.id
	// 所有对话的读写都必须同时按 ID 和 UserID 过滤
	UserID string `gorm:"type:varchar(36);index;not null" json:"user_id"`

	// Title 对话标题
	// 首次提问时从 Prompt 截取生成，也可由用户修改
	Title string `gorm:"size:255" json:"title"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 最后更新时间
	// 追加消息时会被刷新，对话列表按此字段倒序排列
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// User 所属用户（多对一关系）
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Messages 对话中的所有消息（一对多关系）
	// 删除对话时级联删除
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// BeforeCreate 创建前钩子，生成 UUID 主键
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = util.GenerateUUID()
	}
	return nil
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}
