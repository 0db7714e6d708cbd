// Package model 定义了与数据库表对应的数据结构
package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-platform-server/pkg/util"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
	MessageRoleSystem    = "system"    // 系统消息
)

// Message 消息模型
// 对应数据库表 messages
// 存储对话中的每一条消息，只追加、不修改、不重排
type Message struct {
	// ID 消息唯一标识，UUID v4 字符串
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// ConversationID 所属对话ID，外键关联 conversations.id
	ConversationID string `gorm:"type:varchar(36);index;not null" json:"conversation_id"`

	// Role 消息角色
	// user: 用户发送的消息
	// assistant: AI 助手的响应
	// system: 系统消息
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容，结构化 JSON
	// 普通文本包装为 {"text": "..."}
	// AI 返回的结构化内容（steps/output/content 嵌套）原样存储
	Content datatypes.JSON `gorm:"not null" json:"content"`

	// Meta 附加信息，可选的自由 JSON
	// 例如 {"streamed": true} 标记消息是否通过流式产生
	Meta datatypes.JSON `json:"meta,omitempty"`

	// CreatedAt 消息创建时间
	// 消息日志按此字段正序排列
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Conversation 所属对话（多对一关系）
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

// BeforeCreate 创建前钩子，生成 UUID 主键
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = util.GenerateUUID()
	}
	return nil
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// TextContent 将纯文本包装为结构化内容 {"text": "..."}
func TextContent(text string) datatypes.JSON {
	b, _ := json.Marshal(map[string]string{"text": text})
	return datatypes.JSON(b)
}

// ParseContent 将 AI 返回的原始文本转换为结构化内容
// 如果文本本身是合法的 JSON 对象或数组，原样存储
// 否则包装为 {"text": "..."}
func ParseContent(raw string) datatypes.JSON {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return datatypes.JSON(raw)
		}
	}
	return TextContent(raw)
}

// StreamMeta 构造流式标记 {"streamed": true/false}
func StreamMeta(streamed bool) datatypes.JSON {
	b, _ := json.Marshal(map[string]bool{"streamed": streamed})
	return datatypes.JSON(b)
}
