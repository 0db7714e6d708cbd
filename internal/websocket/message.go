// Package websocket 提供 WebSocket 聊天中继
// 与 SSE 推送承载相同的 chunk/done/error 事件，
// 区别是连接常驻，一个连接上可以连续发起多轮聊天
package websocket

import (
	"time"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeChat      = "chat"      // 发起一轮聊天
	TypeHeartbeat = "heartbeat" // 心跳

	// 服务端 → 客户端
	TypeChunk        = "chunk"        // 增量文本片段
	TypeDone         = "done"         // 一轮聊天结束
	TypeConversation = "conversation" // 本轮使用的对话ID
	TypeError        = "error"        // 错误消息
	TypePong         = "pong"         // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`      // 消息类型
	Payload   interface{} `json:"payload"`   // 消息内容
	Timestamp int64       `json:"timestamp"` // 时间戳（毫秒）
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ChunkPayload 片段消息的内容
type ChunkPayload struct {
	Chunk string `json:"chunk"` // 增量文本片段
}

// ConversationPayload 对话ID消息的内容
type ConversationPayload struct {
	ConversationID string `json:"conversationId"` // 本轮使用的对话ID
}

// ErrorPayload 错误消息的内容
type ErrorPayload struct {
	Message string `json:"message"` // 错误信息
}
