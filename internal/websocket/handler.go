package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ai-platform-server/internal/service"
	pkgJwt "ai-platform-server/pkg/jwt"
	"ai-platform-server/pkg/response"
)

// 连接配置常量
const (
	// 写超时时间
	writeWait = 10 * time.Second

	// 等待 Pong 响应的超时时间
	pongWait = 60 * time.Second

	// 发送 Ping 的间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小（64KB，Prompt 上限远小于这个值）
	maxMessageSize = 64 * 1024
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 处理 WebSocket 聊天连接
type Handler struct {
	chatService *service.ChatService
	jwtSecret   string
	logger      *zap.Logger
}

// NewHandler 创建 WebSocket Handler
func NewHandler(chatService *service.ChatService, jwtSecret string, logger *zap.Logger) *Handler {
	return &Handler{
		chatService: chatService,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

// conn 包装 WebSocket 连接
// Ping 协程和聊天写入来自不同 goroutine，写操作需要互斥
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// writeMessage 带写超时的消息写入
func (c *conn) writeMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// writePing 发送 Ping 帧
func (c *conn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// wsRelay 把推送通道实现为 WebSocket 消息
// 与 SSE 中继承载相同的事件序列
type wsRelay struct {
	conn *conn
}

func (r *wsRelay) Chunk(text string) error {
	return r.conn.writeMessage(NewMessage(TypeChunk, ChunkPayload{Chunk: text}))
}

func (r *wsRelay) Done() error {
	return r.conn.writeMessage(NewMessage(TypeDone, nil))
}

func (r *wsRelay) Error(message string) error {
	return r.conn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: message}))
}

// inboundMessage 客户端发来的消息
// Payload 延迟到知道消息类型后再解析
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandleChatWS 处理 WebSocket 聊天连接
// 路由: GET /api/v1/chat/ws?token=<JWT>
// WebSocket 握手无法携带自定义请求头，认证走 query 参数
func (h *Handler) HandleChatWS(c *gin.Context) {
	// 1. 认证
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "需要认证 token")
		return
	}

	claims, err := pkgJwt.ParseUserToken(token, h.jwtSecret)
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		return
	}

	// 2. 升级 HTTP 连接为 WebSocket
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	h.logger.Info("websocket connected",
		zap.String("user_id", claims.UserID),
		zap.String("username", claims.Username))

	h.serve(c, &conn{ws: ws}, claims.UserID)
}

// serve 连接主循环
// 读循环在当前 goroutine，Ping 协程单独启动
func (h *Handler) serve(c *gin.Context, cn *conn, userID string) {
	defer cn.ws.Close()

	cn.ws.SetReadLimit(maxMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping 协程，读循环退出时停止
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cn.writePing(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	relay := &wsRelay{conn: cn}

	for {
		var msg inboundMessage
		if err := cn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case TypeHeartbeat:
			if err := cn.writeMessage(NewMessage(TypePong, nil)); err != nil {
				return
			}

		case TypeChat:
			h.handleChat(c, cn, relay, userID, msg.Payload)

		default:
			if err := cn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: "未知的消息类型"})); err != nil {
				return
			}
		}
	}
}

// handleChat 处理一轮聊天
// 整轮推送完成前不读取下一条客户端消息
func (h *Handler) handleChat(c *gin.Context, cn *conn, relay *wsRelay, userID string, payload json.RawMessage) {
	var req service.ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		cn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: "请求格式错误"}))
		return
	}
	if req.Prompt == "" || len(req.Prompt) > 5000 {
		cn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: "Prompt 长度需在 1 到 5000 之间"}))
		return
	}

	conversationID, err := h.chatService.ChatStream(c.Request.Context(), userID, &req, relay)
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			cn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: "对话不存在"}))
		default:
			cn.writeMessage(NewMessage(TypeError, ErrorPayload{Message: "聊天请求失败"}))
		}
		return
	}

	// 新建对话时客户端还不知道对话ID，在这里补发
	cn.writeMessage(NewMessage(TypeConversation, ConversationPayload{ConversationID: conversationID}))
}
