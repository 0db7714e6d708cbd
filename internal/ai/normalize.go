package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// fragmentShape 上游事件可能携带文本的几种字段
// 不同提供商、不同版本的 SDK 返回的事件形态各不相同，
// 按常见程度依次尝试
type fragmentShape struct {
	Delta   string `json:"delta"`
	Text    string `json:"text"`
	Content string `json:"content"`
	Output  struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

// NormalizeFragment 把上游事件的原始载荷还原为纯文本
// 依次尝试:
//  1. 纯字符串（不是 JSON）原样返回
//  2. JSON 字符串字面量: 取其值
//  3. {"delta"} / {"text"} / {"content"} / {"output":{...}} 取对应字段
//  4. 都不匹配时返回其 JSON 文本本身，宁可显示原始 JSON 也不丢事件
func NormalizeFragment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") && !strings.HasPrefix(raw, "\"") {
		// 不是 JSON，就是纯文本片段
		return raw
	}

	// JSON 字符串字面量
	var str string
	if err := json.Unmarshal([]byte(raw), &str); err == nil {
		return str
	}

	var shape fragmentShape
	if err := json.Unmarshal([]byte(raw), &shape); err == nil {
		switch {
		case shape.Delta != "":
			return shape.Delta
		case shape.Text != "":
			return shape.Text
		case shape.Content != "":
			return shape.Content
		case shape.Output.Text != "":
			return shape.Output.Text
		case len(shape.Output.Choices) > 0 && shape.Output.Choices[0].Message.Content != "":
			return shape.Output.Choices[0].Message.Content
		}
	}

	// 解析不出已知形态，退化为 JSON 文本
	return raw
}

// decodeEventBody 增量解码 SSE 格式的响应体
// 逐行扫描，"data:" 行的载荷标准化后通过 emit 发出
// [DONE] 哨兵行（OpenAI 风格）表示流结束
func decodeEventBody(ctx context.Context, body io.Reader, emit func(string) error) error {
	scanner := bufio.NewScanner(body)
	// 单个事件可能很大，放宽扫描缓冲
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		if err := emit(NormalizeFragment(payload)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
