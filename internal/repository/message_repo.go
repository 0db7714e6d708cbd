// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ai-platform-server/internal/model"
)

// MessageRepository 消息数据访问层
// 消息日志只追加: 只有 Create 和按对话删除，没有单条更新
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 追加一条消息
// 参数:
//   - ctx: 上下文
//   - message: 消息对象，ID 和 CreatedAt 会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByConversationID 获取对话的所有消息
// 按创建时间正序排列（最早的在前）
// 参数:
//   - ctx: 上下文
//   - conversationID: 对话ID
//
// 返回:
//   - []model.Message: 消息列表
//   - error: 数据库错误
func (r *MessageRepository) GetByConversationID(ctx context.Context, conversationID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC"). // 按时间正序，方便展示对话
		Find(&messages).Error
	return messages, err
}

// GetLatestByConversationID 获取对话的最新一条消息
// 用于对话列表的预览
// 参数:
//   - ctx: 上下文
//   - conversationID: 对话ID
//
// 返回:
//   - *model.Message: 最新消息，没有则返回 nil
//   - error: 数据库错误
func (r *MessageRepository) GetLatestByConversationID(ctx context.Context, conversationID string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// CountByConversationID 统计对话的消息数量
func (r *MessageRepository) CountByConversationID(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// DeleteByConversationID 删除对话的所有消息
// 删除对话时在同一事务中调用
func (r *MessageRepository) DeleteByConversationID(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error
}
