package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextContent(t *testing.T) {
	assert.JSONEq(t, `{"text":"hello"}`, string(TextContent("hello")))
	assert.JSONEq(t, `{"text":"with \"quotes\""}`, string(TextContent(`with "quotes"`)))
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"JSON 对象原样保留", `{"answer":42}`, `{"answer":42}`},
		{"JSON 数组原样保留", `[1,2,3]`, `[1,2,3]`},
		{"纯文本包装成 text", "plain reply", `{"text":"plain reply"}`},
		{"残缺 JSON 当作纯文本", `{"broken":`, `{"text":"{\"broken\":"}`},
		{"JSON 标量当作纯文本", `42`, `{"text":"42"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(ParseContent(tt.raw)))
		})
	}
}

func TestStreamMeta(t *testing.T) {
	assert.JSONEq(t, `{"streamed":true}`, string(StreamMeta(true)))
	assert.JSONEq(t, `{"streamed":false}`, string(StreamMeta(false)))
}
