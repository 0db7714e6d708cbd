package service

import (
	"context"
	"errors"
	"time"

	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
	"ai-platform-server/pkg/util"
)

// ErrConversationNotFound 对话不存在或不属于当前用户
// 两种情况对外不可区分，避免泄露他人对话的存在性
var ErrConversationNotFound = errors.New("对话不存在")

// ConversationService 对话服务
// 管理对话的增删改查，所有操作都以 userID 做所有权过滤
type ConversationService struct {
	convRepo    *repository.ConversationRepository
	messageRepo *repository.MessageRepository
}

// NewConversationService 创建 ConversationService 实例
func NewConversationService(
	convRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
	}
}

// CreateConversationRequest 创建对话请求
type CreateConversationRequest struct {
	Title string `json:"title" binding:"omitempty,max=255"` // 标题（可选，缺省使用默认标题）
}

// Create 创建新对话
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 创建请求
//
// 返回:
//   - *model.Conversation: 新对话
//   - error: 数据库错误
func (s *ConversationService) Create(ctx context.Context, userID string, req *CreateConversationRequest) (*model.Conversation, error) {
	title := req.Title
	if title == "" {
		title = model.DefaultConversationTitle
	}

	conv := &model.Conversation{
		UserID: userID,
		Title:  util.TruncateTitle(title),
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ConversationSummary 对话列表项
// 带最后一条消息的预览和消息数量
type ConversationSummary struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int64          `json:"message_count"`
	LastMessage  *model.Message `json:"last_message"` // 没有消息时为 null
}

// List 获取用户的对话列表
// 按最后更新时间倒序，每项附带最新一条消息作为预览
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []ConversationSummary: 对话列表
//   - error: 数据库错误
func (s *ConversationService) List(ctx context.Context, userID string) ([]ConversationSummary, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		latest, err := s.messageRepo.GetLatestByConversationID(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		count, err := s.messageRepo.CountByConversationID(ctx, conv.ID)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: count,
			LastMessage:  latest,
		})
	}
	return summaries, nil
}

// Get 获取对话详情及其全部消息
// 消息按创建时间正序
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//
// 返回:
//   - *model.Conversation: 对话及消息
//   - error: 对话不存在或不属于该用户返回 ErrConversationNotFound
func (s *ConversationService) Get(ctx context.Context, id, userID string) (*model.Conversation, error) {
	conv, err := s.convRepo.GetByIDAndUserWithMessages(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// UpdateTitleRequest 更新对话标题请求
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required,max=255"` // 新标题
}

// UpdateTitle 更新对话标题
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//   - req: 更新请求
//
// 返回:
//   - *model.Conversation: 更新后的对话
//   - error: 对话不存在或不属于该用户返回 ErrConversationNotFound
func (s *ConversationService) UpdateTitle(ctx context.Context, id, userID string, req *UpdateTitleRequest) (*model.Conversation, error) {
	affected, err := s.convRepo.UpdateTitle(ctx, id, userID, util.TruncateTitle(req.Title))
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrConversationNotFound
	}
	return s.convRepo.GetByIDAndUser(ctx, id, userID)
}

// Delete 删除对话及其全部消息
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//   - userID: 用户ID
//
// 返回:
//   - error: 对话不存在或不属于该用户返回 ErrConversationNotFound
func (s *ConversationService) Delete(ctx context.Context, id, userID string) error {
	affected, err := s.convRepo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}
