// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ai-platform-server/internal/model"
)

// ConversationRepository 对话数据访问层
// 所有按 ID 的查询都同时携带 userID 条件（所有权过滤），
// "不存在"和"不属于当前用户"在这一层就不可区分
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建 ConversationRepository 实例
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create 创建新对话
// 参数:
//   - ctx: 上下文
//   - conv: 对话对象，ID 和时间戳会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// GetByIDAndUser 获取属于指定用户的对话
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//
// 返回:
//   - *model.Conversation: 对话对象，不存在或不属于该用户时返回 nil
//   - error: 数据库错误
func (r *ConversationRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByIDAndUserWithMessages 获取对话及其全部消息
// 消息按创建时间正序排列（最早的在前）
func (r *ConversationRepository) GetByIDAndUserWithMessages(ctx context.Context, id, userID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListByUser 获取用户的所有对话
// 按最后更新时间倒序排列（最近活跃的在前）
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []model.Conversation: 对话列表
//   - error: 数据库错误
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// ListByUserWithMessages 获取用户的所有对话及每个对话的完整消息日志
// 用于聊天历史接口，消息按创建时间正序
func (r *ConversationRepository) ListByUserWithMessages(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Order("created_at ASC").
		Find(&convs).Error
	return convs, err
}

// UpdateTitle 更新对话标题
// 同样带所有权过滤，只有属主能更新
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//   - title: 新标题
//
// 返回:
//   - int64: 受影响的行数，0 表示对话不存在或不属于该用户
//   - error: 数据库错误
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id, userID, title string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	return result.RowsAffected, result.Error
}

// Touch 刷新对话的 updated_at
// 追加消息后调用，让对话浮到列表顶部
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// Delete 删除对话及其全部消息
// 在一个事务中先删消息再删对话，保证级联语义
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//
// 返回:
//   - int64: 受影响的对话行数，0 表示对话不存在或不属于该用户
//   - error: 数据库错误
func (r *ConversationRepository) Delete(ctx context.Context, id, userID string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先确认所有权，避免误删消息
		var count int64
		if err := tx.Model(&model.Conversation{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}

		if err := NewMessageRepository(tx).DeleteByConversationID(ctx, id); err != nil {
			return err
		}

		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	return affected, err
}
