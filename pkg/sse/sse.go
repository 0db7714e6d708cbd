// Package sse 实现流式中继的线上协议
// 服务端把增量文本片段编码为 SSE 事件推送给浏览器，
// 客户端把原始字节流重组为事件并逐个分发
//
// 帧格式: 每个事件是一行 "data: <JSON>"，后跟一个空行
// JSON 是以下三种之一:
//   - {"chunk": "..."}  一个增量文本片段
//   - {"done": true}    流正常结束
//   - {"error": "..."}  流异常结束
package sse

import "encoding/json"

// Event SSE 事件的 JSON 载荷
// 三个字段互斥，每个事件只设置其中一个
type Event struct {
	Chunk string `json:"chunk,omitempty"` // 增量文本片段
	Done  bool   `json:"done,omitempty"`  // 流结束标记
	Error string `json:"error,omitempty"` // 错误信息
}

// ChunkEvent 构造片段事件
func ChunkEvent(chunk string) Event {
	return Event{Chunk: chunk}
}

// DoneEvent 构造结束事件
func DoneEvent() Event {
	return Event{Done: true}
}

// ErrorEvent 构造错误事件
func ErrorEvent(message string) Event {
	return Event{Error: message}
}

// Encode 将事件编码为完整的一帧字节
// 格式: "data: <JSON>\n\n"
func Encode(ev Event) []byte {
	payload, _ := json.Marshal(ev)
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf
}
