package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-platform-server/internal/ai"
	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
)

// completeOnly 只支持一次性补全的 AI 提供商
type completeOnly struct {
	text string
	err  error
}

func (p *completeOnly) Complete(ctx context.Context, prompt string) (string, error) {
	return p.text, p.err
}

// streamOnly 只支持原生增量流的 AI 提供商
type streamOnly struct {
	fragments []string
	err       error
}

func (p *streamOnly) StreamInto(ctx context.Context, prompt string, emit func(string) error) error {
	for _, f := range p.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return p.err
}

// recordingRelay 记录编排器推送的事件序列
type recordingRelay struct {
	chunks []string
	dones  int
	errors []string
}

func (r *recordingRelay) Chunk(text string) error {
	r.chunks = append(r.chunks, text)
	return nil
}

func (r *recordingRelay) Done() error {
	r.dones++
	return nil
}

func (r *recordingRelay) Error(message string) error {
	r.errors = append(r.errors, message)
	return nil
}

func newTestChatService(t *testing.T, provider interface{}) (*ChatService, *gorm.DB, string) {
	t.Helper()

	db := setupTestDB(t)
	userID := createTestUser(t, db, "alice", "alice@example.com")

	svc := NewChatService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		ai.NewWithProvider(provider, 20, 0, zap.NewNop()),
		zap.NewNop(),
	)
	return svc, db, userID
}

func conversationMessages(t *testing.T, db *gorm.DB, conversationID string) []model.Message {
	t.Helper()

	messages, err := repository.NewMessageRepository(db).GetByConversationID(context.Background(), conversationID)
	require.NoError(t, err)
	return messages
}

func TestChat_NonStreaming(t *testing.T) {
	svc, db, userID := newTestChatService(t, &completeOnly{text: "4"})

	resp, err := svc.Chat(context.Background(), userID, &ChatRequest{Prompt: "2+2?"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ConversationID)
	assert.JSONEq(t, `{"text":"4"}`, string(resp.Reply))

	// 用户消息和助手消息各一条，按时间正序
	messages := conversationMessages(t, db, resp.ConversationID)
	require.Len(t, messages, 2)

	assert.Equal(t, model.MessageRoleUser, messages[0].Role)
	assert.JSONEq(t, `{"text":"2+2?"}`, string(messages[0].Content))

	assert.Equal(t, model.MessageRoleAssistant, messages[1].Role)
	assert.JSONEq(t, `{"text":"4"}`, string(messages[1].Content))
	assert.JSONEq(t, `{"streamed":false}`, string(messages[1].Meta))
}

func TestChat_StructuredReplyStoredAsIs(t *testing.T) {
	svc, db, userID := newTestChatService(t, &completeOnly{text: `{"answer":42}`})

	resp, err := svc.Chat(context.Background(), userID, &ChatRequest{Prompt: "meaning of life"})
	require.NoError(t, err)

	// 合法 JSON 回复原样存储，不再包一层 {text}
	messages := conversationMessages(t, db, resp.ConversationID)
	require.Len(t, messages, 2)
	assert.JSONEq(t, `{"answer":42}`, string(messages[1].Content))
}

func TestChat_TitleFromPrompt(t *testing.T) {
	svc, db, userID := newTestChatService(t, &completeOnly{text: "ok"})

	long := strings.Repeat("p", 80)
	resp, err := svc.Chat(context.Background(), userID, &ChatRequest{Prompt: long})
	require.NoError(t, err)

	conv, err := repository.NewConversationRepository(db).GetByIDAndUser(context.Background(), resp.ConversationID, userID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, strings.Repeat("p", 47)+"...", conv.Title)
}

func TestChat_ReusesOwnedConversation(t *testing.T) {
	svc, db, userID := newTestChatService(t, &completeOnly{text: "ok"})
	ctx := context.Background()

	first, err := svc.Chat(ctx, userID, &ChatRequest{Prompt: "round one"})
	require.NoError(t, err)

	second, err := svc.Chat(ctx, userID, &ChatRequest{
		Prompt:         "round two",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	messages := conversationMessages(t, db, first.ConversationID)
	assert.Len(t, messages, 4)

	// 别人的对话ID等同于不存在
	otherID := createTestUser(t, db, "bob", "bob@example.com")
	_, err = svc.Chat(ctx, otherID, &ChatRequest{
		Prompt:         "hijack",
		ConversationID: first.ConversationID,
	})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestChat_UpstreamFailureKeepsUserMessage(t *testing.T) {
	svc, db, userID := newTestChatService(t, &completeOnly{err: errors.New("bad gateway")})

	_, err := svc.Chat(context.Background(), userID, &ChatRequest{Prompt: "hello"})
	require.ErrorIs(t, err, ErrUpstreamFailed)

	// 对话已创建，用户消息已落库，只缺助手消息
	convs, listErr := repository.NewConversationRepository(db).ListByUser(context.Background(), userID)
	require.NoError(t, listErr)
	require.Len(t, convs, 1)

	messages := conversationMessages(t, db, convs[0].ID)
	require.Len(t, messages, 1)
	assert.Equal(t, model.MessageRoleUser, messages[0].Role)
}

func TestChatStream_PersistsAccumulatedReply(t *testing.T) {
	svc, db, userID := newTestChatService(t, &streamOnly{fragments: []string{"He", "llo", " world"}})
	relay := &recordingRelay{}

	convID, err := svc.ChatStream(context.Background(), userID, &ChatRequest{Prompt: "greet me", Stream: true}, relay)
	require.NoError(t, err)

	// 片段按序推送，结束恰好一个 done，没有 error
	assert.Equal(t, []string{"He", "llo", " world"}, relay.chunks)
	assert.Equal(t, 1, relay.dones)
	assert.Empty(t, relay.errors)

	// 累积全文作为助手消息落库，标记为流式
	messages := conversationMessages(t, db, convID)
	require.Len(t, messages, 2)
	assert.JSONEq(t, `{"text":"Hello world"}`, string(messages[1].Content))
	assert.JSONEq(t, `{"streamed":true}`, string(messages[1].Meta))
}

func TestChatStream_FailureDiscardsPartialText(t *testing.T) {
	svc, db, userID := newTestChatService(t, &streamOnly{
		fragments: []string{"par", "tial"},
		err:       errors.New("connection reset"),
	})
	relay := &recordingRelay{}

	convID, err := svc.ChatStream(context.Background(), userID, &ChatRequest{Prompt: "hello", Stream: true}, relay)
	require.NoError(t, err)

	// 恰好一个 error 事件，没有 done
	require.Len(t, relay.errors, 1)
	assert.Zero(t, relay.dones)

	// 部分文本被丢弃，只有用户消息落库
	messages := conversationMessages(t, db, convID)
	require.Len(t, messages, 1)
	assert.Equal(t, model.MessageRoleUser, messages[0].Role)
}

func TestChatStream_FallbackChunking(t *testing.T) {
	// 提供商只支持一次性补全，流式请求走分片回放
	text := strings.Repeat("a", 50)
	svc, _, userID := newTestChatService(t, &completeOnly{text: text})
	relay := &recordingRelay{}

	_, err := svc.ChatStream(context.Background(), userID, &ChatRequest{Prompt: "hello", Stream: true}, relay)
	require.NoError(t, err)

	assert.Greater(t, len(relay.chunks), 1)
	assert.Equal(t, text, strings.Join(relay.chunks, ""))
	assert.Equal(t, 1, relay.dones)
}

func TestChatHistory(t *testing.T) {
	svc, _, userID := newTestChatService(t, &completeOnly{text: "ok"})
	ctx := context.Background()

	_, err := svc.Chat(ctx, userID, &ChatRequest{Prompt: "first conversation"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, userID, &ChatRequest{Prompt: "second conversation"})
	require.NoError(t, err)

	convs, err := svc.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// 每个对话带完整消息日志
	for _, conv := range convs {
		assert.Len(t, conv.Messages, 2)
	}
}
