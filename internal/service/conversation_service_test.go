package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ai-platform-server/internal/model"
	"ai-platform-server/internal/repository"
)

func newTestConversationService(t *testing.T) (*ConversationService, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
	)
	return svc, db
}

func TestConversationCreate_DefaultTitle(t *testing.T) {
	svc, db := newTestConversationService(t)
	ctx := context.Background()
	userID := createTestUser(t, db, "alice", "alice@example.com")

	conv, err := svc.Create(ctx, userID, &CreateConversationRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)
	assert.NotEmpty(t, conv.ID)

	named, err := svc.Create(ctx, userID, &CreateConversationRequest{Title: "旅行计划"})
	require.NoError(t, err)
	assert.Equal(t, "旅行计划", named.Title)
}

func TestConversationOwnershipIsolation(t *testing.T) {
	svc, db := newTestConversationService(t)
	ctx := context.Background()
	aliceID := createTestUser(t, db, "alice", "alice@example.com")
	bobID := createTestUser(t, db, "bob", "bob@example.com")

	conv, err := svc.Create(ctx, aliceID, &CreateConversationRequest{Title: "私密对话"})
	require.NoError(t, err)

	// B 的任何读写删都看不到 A 的对话
	_, err = svc.Get(ctx, conv.ID, bobID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = svc.UpdateTitle(ctx, conv.ID, bobID, &UpdateTitleRequest{Title: "hijacked"})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	err = svc.Delete(ctx, conv.ID, bobID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	list, err := svc.List(ctx, bobID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// A 自己仍然能访问
	got, err := svc.Get(ctx, conv.ID, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "私密对话", got.Title)
}

func TestConversationUpdateTitle(t *testing.T) {
	svc, db := newTestConversationService(t)
	ctx := context.Background()
	userID := createTestUser(t, db, "alice", "alice@example.com")

	conv, err := svc.Create(ctx, userID, &CreateConversationRequest{})
	require.NoError(t, err)

	updated, err := svc.UpdateTitle(ctx, conv.ID, userID, &UpdateTitleRequest{Title: "新标题"})
	require.NoError(t, err)
	assert.Equal(t, "新标题", updated.Title)

	// 过长的标题被截断
	long := strings.Repeat("a", 80)
	updated, err = svc.UpdateTitle(ctx, conv.ID, userID, &UpdateTitleRequest{Title: long})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 47)+"...", updated.Title)
}

func TestConversationDelete_CascadesMessages(t *testing.T) {
	svc, db := newTestConversationService(t)
	ctx := context.Background()
	userID := createTestUser(t, db, "alice", "alice@example.com")
	messageRepo := repository.NewMessageRepository(db)

	conv, err := svc.Create(ctx, userID, &CreateConversationRequest{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, messageRepo.Create(ctx, &model.Message{
			ConversationID: conv.ID,
			Role:           model.MessageRoleUser,
			Content:        model.TextContent("hello"),
		}))
	}

	require.NoError(t, svc.Delete(ctx, conv.ID, userID))

	_, err = svc.Get(ctx, conv.ID, userID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	count, err := messageRepo.CountByConversationID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConversationList_PreviewAndCount(t *testing.T) {
	svc, db := newTestConversationService(t)
	ctx := context.Background()
	userID := createTestUser(t, db, "alice", "alice@example.com")
	messageRepo := repository.NewMessageRepository(db)

	conv, err := svc.Create(ctx, userID, &CreateConversationRequest{})
	require.NoError(t, err)

	require.NoError(t, messageRepo.Create(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        model.TextContent("first"),
	}))
	require.NoError(t, messageRepo.Create(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleAssistant,
		Content:        model.TextContent("second"),
	}))

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.Equal(t, int64(2), list[0].MessageCount)
	require.NotNil(t, list[0].LastMessage)
	assert.JSONEq(t, `{"text":"second"}`, string(list[0].LastMessage.Content))
}

// 消息日志只追加: N 次追加后恰好 N 条，按追加顺序返回
func TestMessageLog_AppendOnlyOrdering(t *testing.T) {
	_, db := newTestConversationService(t)
	ctx := context.Background()
	userID := createTestUser(t, db, "alice", "alice@example.com")
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	conv := &model.Conversation{UserID: userID, Title: "log"}
	require.NoError(t, convRepo.Create(ctx, conv))

	// 另一个对话的并发写入不影响本对话的日志
	other := &model.Conversation{UserID: userID, Title: "other"}
	require.NoError(t, convRepo.Create(ctx, other))

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		require.NoError(t, messageRepo.Create(ctx, &model.Message{
			ConversationID: conv.ID,
			Role:           model.MessageRoleUser,
			Content:        model.TextContent(text),
		}))
		require.NoError(t, messageRepo.Create(ctx, &model.Message{
			ConversationID: other.ID,
			Role:           model.MessageRoleUser,
			Content:        model.TextContent("noise"),
		}))
	}

	messages, err := messageRepo.GetByConversationID(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, len(texts))
	for i, text := range texts {
		assert.JSONEq(t, `{"text":"`+text+`"}`, string(messages[i].Content))
	}
}
