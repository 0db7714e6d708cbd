package sse

import (
	"encoding/json"
	"strings"
)

// Decoder 接收端的增量解码器
// 网络读取的边界是任意的: 一个事件可能分散在多次读取中到达，
// 一次读取也可能携带多个事件。Decoder 在内部缓冲原始字节，
// 每次 Feed 只消费以空行结尾的完整事件，残余部分留到下次
//
// 已消费的事件会从缓冲区移除，同一事件不会被重复分发
type Decoder struct {
	buf  strings.Builder // 未消费的原始字节
	done bool            // 是否已收到 done 事件

	// OnChunk 每收到一个 {"chunk"} 事件调用一次
	OnChunk func(chunk string)
	// OnError 每收到一个 {"error"} 事件调用一次
	OnError func(message string)
}

// NewDecoder 创建解码器
// 参数:
//   - onChunk: 片段回调，追加到界面上的增量文本
//   - onError: 错误回调
func NewDecoder(onChunk func(string), onError func(string)) *Decoder {
	return &Decoder{
		OnChunk: onChunk,
		OnError: onError,
	}
}

// Done 返回流是否已正常终止
func (d *Decoder) Done() bool {
	return d.done
}

// Feed 送入一段原始字节并分发其中的完整事件
// 可以以任意粒度调用: 半个事件、多个事件、逐字节都可以
func (d *Decoder) Feed(data []byte) {
	if d.done {
		return
	}
	d.buf.Write(data)

	raw := d.buf.String()
	for {
		// 只处理以空行结尾的完整事件
		idx := strings.Index(raw, "\n\n")
		if idx < 0 {
			break
		}
		rawEvent := raw[:idx]
		raw = raw[idx+2:]

		d.dispatch(rawEvent)
		if d.done {
			raw = ""
			break
		}
	}

	// 残余的不完整事件留到下次 Feed
	d.buf.Reset()
	d.buf.WriteString(raw)
}

// dispatch 解析单个事件并调用对应回调
// 一个事件可以有多行，只关心以 "data:" 开头的行
func (d *Decoder) dispatch(rawEvent string) {
	for _, line := range strings.Split(rawEvent, "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// 无法解析的行直接跳过，不中断整个流
			continue
		}

		switch {
		case ev.Chunk != "":
			if d.OnChunk != nil {
				d.OnChunk(ev.Chunk)
			}
		case ev.Error != "":
			if d.OnError != nil {
				d.OnError(ev.Error)
			}
		case ev.Done:
			d.done = true
			return
		}
	}
}
