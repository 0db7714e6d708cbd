package ai

import "time"

// 分片回放参数
const (
	// DefaultChunkSize 每片的字符数
	DefaultChunkSize = 20
	// DefaultChunkDelay 片与片之间的延迟
	DefaultChunkDelay = 25 * time.Millisecond
	// LongFragmentLen 超过此长度的原生片段会被二次切分
	LongFragmentLen = 200
)

// SplitChunks 把文本按固定大小切片
// 按 rune 计数切分，每片都是合法 UTF-8，不会把多字节字符切成半个
// 最后一片可以短于 size，所有片拼接后恰好等于原文
// 参数:
//   - text: 原文
//   - size: 每片的字符数，非正数时使用 DefaultChunkSize
//
// 返回:
//   - []string: 切片结果，空文本返回 nil
func SplitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
