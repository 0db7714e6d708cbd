package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-platform-server/internal/middleware"
	"ai-platform-server/internal/service"
	"ai-platform-server/pkg/response"
	"ai-platform-server/pkg/sse"
)

// ChatHandler 聊天请求处理器
// 非流式请求返回普通 JSON 响应，流式请求保持连接打开并推送 SSE 事件
type ChatHandler struct {
	chatService *service.ChatService
	logger      *zap.Logger
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// sseRelay 把推送通道实现为 HTTP SSE 响应
// 响应头推迟到第一个事件写出时才提交，
// 这样进入流式阶段之前的失败仍然可以返回普通 JSON 错误
type sseRelay struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSERelay(c *gin.Context) (*sseRelay, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseRelay{writer: c.Writer, flusher: flusher}, true
}

// push 写出一个事件并立即刷新
// 返回错误表示客户端已断开
func (r *sseRelay) push(ev sse.Event) error {
	if !r.started {
		r.writer.Header().Set("Content-Type", "text/event-stream")
		r.writer.Header().Set("Cache-Control", "no-cache")
		r.writer.Header().Set("Connection", "keep-alive")
		// 禁止反向代理缓冲，否则片段会被攒成一整块
		r.writer.Header().Set("X-Accel-Buffering", "no")
		r.writer.WriteHeader(http.StatusOK)
		r.started = true
	}

	if _, err := r.writer.Write(sse.Encode(ev)); err != nil {
		return err
	}
	r.flusher.Flush()
	return nil
}

func (r *sseRelay) Chunk(text string) error {
	return r.push(sse.ChunkEvent(text))
}

func (r *sseRelay) Done() error {
	return r.push(sse.DoneEvent())
}

func (r *sseRelay) Error(message string) error {
	return r.push(sse.ErrorEvent(message))
}

// Chat 发起聊天
// 根据请求中的 stream 标志选择响应方式
// @Summary 发起聊天
// @Description 向 AI 发送 Prompt，stream=true 时以 SSE 推送增量回复
// @Tags 聊天
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.ChatRequest true "聊天请求"
// @Success 200 {object} response.Response{data=service.ChatResponse}
// @Router /api/v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	userID := middleware.GetUserID(c)

	if !req.Stream {
		h.chatOnce(c, userID, &req)
		return
	}
	h.chatStream(c, userID, &req)
}

// chatOnce 非流式聊天
func (h *ChatHandler) chatOnce(c *gin.Context, userID string, req *service.ChatRequest) {
	result, err := h.chatService.Chat(c.Request.Context(), userID, req)
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			response.ConversationNotFound(c)
		case service.ErrUpstreamFailed:
			response.UpstreamError(c, "AI 服务暂时不可用，请稍后重试")
		default:
			response.InternalError(c, "聊天请求失败")
		}
		return
	}

	response.Success(c, result)
}

// chatStream 流式聊天
// 第一个事件写出之前的失败返回普通 JSON 错误，
// 之后的失败由编排器通过 error 事件在带内上报
func (h *ChatHandler) chatStream(c *gin.Context, userID string, req *service.ChatRequest) {
	relay, ok := newSSERelay(c)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		response.InternalError(c, "服务器不支持流式响应")
		return
	}

	// c.Request.Context() 在客户端断开时被取消，
	// 编排器靠它停止上游调用
	_, err := h.chatService.ChatStream(c.Request.Context(), userID, req, relay)
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			response.ConversationNotFound(c)
		default:
			response.InternalError(c, "聊天请求失败")
		}
		return
	}
}

// History 获取聊天历史
// @Summary 获取聊天历史
// @Description 返回当前用户的全部对话及各自的消息日志
// @Tags 聊天
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/chat [get]
func (h *ChatHandler) History(c *gin.Context) {
	convs, err := h.chatService.History(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.InternalError(c, "获取聊天历史失败")
		return
	}

	response.Success(c, gin.H{"conversations": convs})
}
