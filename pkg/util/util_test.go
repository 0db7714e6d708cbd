package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)

	// 哈希值不会等于明文
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong-password", hash))
}

func TestHashPassword_DifferentSalts(t *testing.T) {
	// bcrypt 每次加盐，同一密码两次哈希结果不同
	h1, err := HashPassword("secret123")
	require.NoError(t, err)
	h2, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestGenerateUUID(t *testing.T) {
	id := GenerateUUID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, GenerateUUID())
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"短标题原样保留", "Hello", "Hello"},
		{"首尾空白被去除", "  Hello  ", "Hello"},
		{"恰好50字符不截断", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"超过50字符截断并加省略号", strings.Repeat("a", 51), strings.Repeat("a", 47) + "..."},
		{"长文本截断后总长为50", strings.Repeat("b", 200), strings.Repeat("b", 47) + "..."},
		{"中文按字符计数截断", strings.Repeat("请", 60), strings.Repeat("请", 47) + "..."},
		{"中文恰好50字符不截断", strings.Repeat("统", 50), strings.Repeat("统", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTitle(tt.prompt)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), TitleMaxLen)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateTitle_MultibyteBoundary(t *testing.T) {
	prompt := "请帮我写一份关于分布式系统一致性协议的详细技术调研报告，覆盖两阶段提交、Paxos 与 Raft 的对比分析"

	got := TruncateTitle(prompt)

	// 截断点必须落在字符边界上，标题始终是合法 UTF-8
	require.True(t, utf8.ValidString(got))
	assert.Equal(t, string([]rune(prompt)[:TitleMaxLen-3])+"...", got)
	assert.Equal(t, TitleMaxLen, utf8.RuneCountInString(got))
}
