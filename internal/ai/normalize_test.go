package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFragment(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"纯文本原样返回", "Hello world", "Hello world"},
		{"JSON 字符串字面量", `"Hello"`, "Hello"},
		{"delta 字段", `{"delta":"He"}`, "He"},
		{"text 字段", `{"text":"llo"}`, "llo"},
		{"content 字段", `{"content":"!"}`, "!"},
		{"DashScope output.text", `{"output":{"text":"回复"}}`, "回复"},
		{"DashScope output.choices", `{"output":{"choices":[{"message":{"content":"回复"}}]}}`, "回复"},
		{"未知形态退化为原始 JSON", `{"weird":123}`, `{"weird":123}`},
		{"空白", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFragment(tt.raw))
		})
	}
}

func TestDecodeEventBody(t *testing.T) {
	body := strings.NewReader(
		"data: {\"delta\":\"He\"}\n" +
			"\n" +
			"data: {\"delta\":\"llo\"}\n" +
			": comment line ignored\n" +
			"data: [DONE]\n")

	var got []string
	err := decodeEventBody(context.Background(), body, func(fragment string) error {
		got = append(got, fragment)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, got)
}

func TestDecodeEventBody_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := decodeEventBody(ctx, strings.NewReader("data: x\n"), func(string) error {
		t.Fatal("should not emit after cancellation")
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
}
