package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ai-platform-server/internal/ai"
	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
	"ai-platform-server/pkg/util"
)

// ErrUpstreamFailed AI 上游调用失败
// 非流式路径返回给 Handler，由 Handler 映射为响应码
var ErrUpstreamFailed = errors.New("AI 服务调用失败")

// StreamRelay 流式推送通道的抽象
// SSE Handler 和 WebSocket Handler 各自实现，
// 编排器只负责往通道里推事件，不关心传输方式
type StreamRelay interface {
	// Chunk 推送一个文本片段，返回错误表示对端已断开
	Chunk(text string) error
	// Done 推送结束标记
	Done() error
	// Error 推送错误事件，整个流式过程最多调用一次
	Error(message string) error
}

// ChatService 聊天编排服务
// 每个请求按固定状态推进:
// 解析对话 → 持久化用户消息 → 调用 AI → 推送/返回 → 持久化助手消息
type ChatService struct {
	convRepo    *repository.ConversationRepository
	messageRepo *repository.MessageRepository
	gateway     *ai.Gateway // AI 网关
	logger      *zap.Logger
}

// NewChatService 创建 ChatService 实例
func NewChatService(
	convRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	gateway *ai.Gateway,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		gateway:     gateway,
		logger:      logger,
	}
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Prompt         string `json:"prompt" binding:"required,min=1,max=5000"` // 用户输入
	ConversationID string `json:"conversationId"`                           // 对话ID（可选，缺省新建对话）
	Stream         bool   `json:"stream"`                                   // 是否流式响应
}

// ChatResponse 非流式聊天响应
type ChatResponse struct {
	ConversationID string         `json:"conversationId"` // 对话ID
	Reply          datatypes.JSON `json:"reply"`          // 结构化的助手回复
}

// resolveConversation 解析本次请求使用的对话
// 指定了 ID 且属于当前用户则复用，否则用 Prompt 的前缀作为标题新建
func (s *ChatService) resolveConversation(ctx context.Context, userID string, req *ChatRequest) (*model.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := s.convRepo.GetByIDAndUser(ctx, req.ConversationID, userID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
		return conv, nil
	}

	conv := &model.Conversation{
		UserID: userID,
		Title:  util.TruncateTitle(req.Prompt),
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// persistUserMessage 持久化用户消息
// 在任何 AI 调用之前落库，保证 AI 失败时用户输入不丢失
func (s *ChatService) persistUserMessage(ctx context.Context, conversationID, prompt string) error {
	msg := &model.Message{
		ConversationID: conversationID,
		Role:           model.MessageRoleUser,
		Content:        model.TextContent(prompt),
	}
	return s.messageRepo.Create(ctx, msg)
}

// persistAssistantMessage 持久化助手消息
// 回复如果本身是合法 JSON 则原样存储，否则包装成 {text: ...}
func (s *ChatService) persistAssistantMessage(ctx context.Context, conversationID, reply string, streamed bool) (datatypes.JSON, error) {
	content := model.ParseContent(reply)
	msg := &model.Message{
		ConversationID: conversationID,
		Role:           model.MessageRoleAssistant,
		Content:        content,
		Meta:           model.StreamMeta(streamed),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	// 有新消息后刷新对话的 updated_at，让它浮到列表顶部
	if err := s.convRepo.Touch(ctx, conversationID); err != nil {
		s.logger.Warn("failed to touch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
	return content, nil
}

// Chat 非流式聊天
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 聊天请求
//
// 返回:
//   - *ChatResponse: 对话ID和结构化回复
//   - error: 对话不存在返回 ErrConversationNotFound，上游失败返回 ErrUpstreamFailed
func (s *ChatService) Chat(ctx context.Context, userID string, req *ChatRequest) (*ChatResponse, error) {
	// 1. 解析对话
	conv, err := s.resolveConversation(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	// 2. 持久化用户消息
	if err := s.persistUserMessage(ctx, conv.ID, req.Prompt); err != nil {
		return nil, err
	}

	// 3. 调用 AI 一次性补全
	reply, err := s.gateway.Complete(ctx, req.Prompt)
	if err != nil {
		// 用户消息已落库，只有助手消息缺失
		s.logger.Error("AI completion failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err))
		return nil, ErrUpstreamFailed
	}

	// 4. 持久化助手消息
	content, err := s.persistAssistantMessage(ctx, conv.ID, reply, false)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		ConversationID: conv.ID,
		Reply:          content,
	}, nil
}

// ChatStream 流式聊天
// 持久化用户消息之前的失败通过返回值上报（此时还能返回普通错误响应），
// 之后的失败一律通过 relay 在带内上报
// 参数:
//   - ctx: 上下文，对端断开时应被取消
//   - userID: 用户ID
//   - req: 聊天请求
//   - relay: 推送通道
//
// 返回:
//   - string: 本次使用的对话ID
//   - error: 进入流式阶段之前的错误
func (s *ChatService) ChatStream(ctx context.Context, userID string, req *ChatRequest, relay StreamRelay) (string, error) {
	// 1. 解析对话
	conv, err := s.resolveConversation(ctx, userID, req)
	if err != nil {
		return "", err
	}

	// 2. 持久化用户消息
	if err := s.persistUserMessage(ctx, conv.ID, req.Prompt); err != nil {
		return "", err
	}

	// 3. 打开流式补全，从这里开始失败只能在带内上报
	stream, err := s.gateway.Stream(ctx, req.Prompt)
	if err != nil {
		s.logger.Error("AI stream open failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err))
		if relayErr := relay.Error(ErrUpstreamFailed.Error()); relayErr != nil {
			s.logger.Warn("failed to push error event", zap.Error(relayErr))
		}
		return conv.ID, nil
	}

	// 4. 逐片段推送，同时累积全文
	var buf strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 上游中途失败: 推送一个 error 事件后关闭，
			// 已累积的部分文本直接丢弃，不落库
			s.logger.Error("AI stream failed",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			if relayErr := relay.Error(ErrUpstreamFailed.Error()); relayErr != nil {
				s.logger.Warn("failed to push error event", zap.Error(relayErr))
			}
			return conv.ID, nil
		}

		buf.WriteString(fragment)
		if err := relay.Chunk(fragment); err != nil {
			// 对端断开: 立即停止写循环
			// 上游调用靠 ctx 取消，这里不再等待
			s.logger.Info("client disconnected during stream",
				zap.String("conversation_id", conv.ID))
			return conv.ID, nil
		}
	}

	// 5. 推送结束标记并持久化全文
	if err := relay.Done(); err != nil {
		s.logger.Warn("failed to push done event", zap.Error(err))
	}
	if _, err := s.persistAssistantMessage(ctx, conv.ID, buf.String(), true); err != nil {
		s.logger.Error("failed to persist assistant message",
			zap.String("conversation_id", conv.ID),
			zap.Error(err))
	}
	return conv.ID, nil
}

// History 获取用户的完整聊天历史
// 所有对话及各自的消息日志，对话按创建时间正序，消息按创建时间正序
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []model.Conversation: 对话列表（含消息）
//   - error: 数据库错误
func (s *ChatService) History(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.convRepo.ListByUserWithMessages(ctx, userID)
}
