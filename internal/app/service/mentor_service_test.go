package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"
	"prepmate/internal/platform/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHistoryWindow = 10

type fakeConvoRepo struct {
	turns      []model.ConversationTurn
	appendErr  error // applied to every append
	recentErr  error
	deleteHits int
}

func (f *fakeConvoRepo) AppendTurn(ctx context.Context, t *model.ConversationTurn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append(f.turns, *t)
	return nil
}

func (f *fakeConvoRepo) RecentTurns(ctx context.Context, userID, topicKey string, limit int) ([]model.ConversationTurn, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	matching := f.matching(userID, topicKey)
	if len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching, nil
}

func (f *fakeConvoRepo) ListTurns(ctx context.Context, userID, topicKey string) ([]model.ConversationTurn, error) {
	return f.matching(userID, topicKey), nil
}

func (f *fakeConvoRepo) DeleteTurns(ctx context.Context, userID, topicKey string) error {
	f.deleteHits++
	kept := f.turns[:0]
	for _, t := range f.turns {
		if t.UserID != userID || t.TopicKey != topicKey {
			kept = append(kept, t)
		}
	}
	f.turns = kept
	return nil
}

func (f *fakeConvoRepo) matching(userID, topicKey string) []model.ConversationTurn {
	var out []model.ConversationTurn
	for _, t := range f.turns {
		if t.UserID == userID && t.TopicKey == topicKey {
			out = append(out, t)
		}
	}
	return out
}

// recordingGateway captures the request it was given.
type recordingGateway struct {
	fakeGateway
	lastSystem   string
	lastMessages []llm.Message
}

func (g *recordingGateway) Generate(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	g.lastSystem = systemPrompt
	g.lastMessages = messages
	return g.fakeGateway.Generate(ctx, systemPrompt, messages)
}

func TestSendMessage_EmptyMessageFailsValidationWithoutWrites(t *testing.T) {
	repo := &fakeConvoRepo{}
	svc := NewMentorService(repo, &fakeGateway{response: "hi"}, testHistoryWindow)

	_, err := svc.SendMessage(context.Background(), "u1", "two-sum", "   \n\t ", "")
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, repo.turns, "validation failure must cause zero persistence writes")

	_, err = svc.SendMessage(context.Background(), "", "two-sum", "help", "")
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = svc.SendMessage(context.Background(), "u1", "", "help", "")
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestSendMessage_PersistsBothTurns(t *testing.T) {
	repo := &fakeConvoRepo{}
	gw := &recordingGateway{fakeGateway: fakeGateway{response: "Try a hash map."}}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	reply, err := svc.SendMessage(context.Background(), "u1", "two-sum", "  I'm stuck on the nested loop.  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Try a hash map.", reply)

	require.Len(t, repo.turns, 2)
	assert.Equal(t, model.TurnRoleUser, repo.turns[0].Role)
	assert.Equal(t, "I'm stuck on the nested loop.", repo.turns[0].Content, "message is trimmed before persistence")
	assert.Equal(t, model.TurnRoleAssistant, repo.turns[1].Role)
	assert.Equal(t, "Try a hash map.", repo.turns[1].Content)
}

func TestSendMessage_UserTurnPersistFailureIsHard(t *testing.T) {
	repo := &fakeConvoRepo{appendErr: errors.New("db down")}
	gw := &fakeGateway{response: "unused"}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	_, err := svc.SendMessage(context.Background(), "u1", "two-sum", "hello", "")
	require.Error(t, err)
	assert.Equal(t, 0, gw.calls, "no generation after a lost user message")
}

func TestSendMessage_GatewayFailureReturnsFallback(t *testing.T) {
	repo := &fakeConvoRepo{}
	svc := NewMentorService(repo, &fakeGateway{err: errors.New("connection refused")}, testHistoryWindow)

	reply, err := svc.SendMessage(context.Background(), "u1", "two-sum", "hello", "")
	require.NoError(t, err, "gateway failure must not surface")
	assert.Equal(t, mentorFallbackReply, reply)

	// Only the user's turn is stored; the fallback is not history.
	require.Len(t, repo.turns, 1)
	assert.Equal(t, model.TurnRoleUser, repo.turns[0].Role)
}

func TestSendMessage_WindowBoundedAndChronological(t *testing.T) {
	repo := &fakeConvoRepo{}
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 30; i++ {
		role := model.TurnRoleUser
		if i%2 == 1 {
			role = model.TurnRoleAssistant
		}
		repo.turns = append(repo.turns, model.ConversationTurn{
			ID:        fmt.Sprintf("t%02d", i),
			UserID:    "u1",
			TopicKey:  "two-sum",
			Role:      role,
			Content:   fmt.Sprintf("turn %02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	gw := &recordingGateway{fakeGateway: fakeGateway{response: "ok"}}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	_, err := svc.SendMessage(context.Background(), "u1", "two-sum", "newest question", "")
	require.NoError(t, err)

	require.LessOrEqual(t, len(gw.lastMessages), testHistoryWindow, "context window must not exceed N turns")
	last := gw.lastMessages[len(gw.lastMessages)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "newest question", last.Content, "window always ends with the newest user message")
	for i := 1; i < len(gw.lastMessages)-1; i++ {
		assert.Less(t, gw.lastMessages[i-1].Content, gw.lastMessages[i].Content, "older turns come first")
	}
}

func TestSendMessage_HistoryReadFailureStillAnswers(t *testing.T) {
	repo := &fakeConvoRepo{recentErr: errors.New("read timeout")}
	gw := &recordingGateway{fakeGateway: fakeGateway{response: "ok"}}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	reply, err := svc.SendMessage(context.Background(), "u1", "two-sum", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	require.Len(t, gw.lastMessages, 1, "window degrades to just the new user message")
	assert.Equal(t, "hello", gw.lastMessages[0].Content)
}

func TestSendMessage_EditorContextEntersSystemPrompt(t *testing.T) {
	repo := &fakeConvoRepo{}
	gw := &recordingGateway{fakeGateway: fakeGateway{response: "ok"}}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	_, err := svc.SendMessage(context.Background(), "u1", "two-sum", "why does this fail?", "for i := range nums {")
	require.NoError(t, err)
	assert.Contains(t, gw.lastSystem, "for i := range nums {")

	_, err = svc.SendMessage(context.Background(), "u1", "two-sum", "and without context?", "")
	require.NoError(t, err)
	assert.Equal(t, mentorSystemPrompt, gw.lastSystem)
}

func TestStreamMessage_DeliversChunksAndPersists(t *testing.T) {
	repo := &fakeConvoRepo{}
	svc := NewMentorService(repo, &fakeGateway{response: "abc"}, testHistoryWindow)

	var got []string
	reply, err := svc.StreamMessage(context.Background(), "u1", "two-sum", "stream please", "", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", reply)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	require.Len(t, repo.turns, 2)
	assert.Equal(t, "abc", repo.turns[1].Content)
}

func TestStreamMessage_GatewayFailureEmitsFallback(t *testing.T) {
	repo := &fakeConvoRepo{}
	svc := NewMentorService(repo, &fakeGateway{err: errors.New("boom")}, testHistoryWindow)

	var got []string
	reply, err := svc.StreamMessage(context.Background(), "u1", "two-sum", "stream please", "", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mentorFallbackReply, reply)
	assert.Equal(t, []string{mentorFallbackReply}, got)
	require.Len(t, repo.turns, 1, "only the user turn persists on a failed stream")
}

func TestClear_IsIdempotent(t *testing.T) {
	repo := &fakeConvoRepo{}
	svc := NewMentorService(repo, &fakeGateway{}, testHistoryWindow)

	require.NoError(t, svc.Clear(context.Background(), "u1", "two-sum"))
	require.NoError(t, svc.Clear(context.Background(), "u1", "two-sum"))
	assert.Equal(t, 2, repo.deleteHits)

	history, err := svc.History(context.Background(), "u1", "two-sum")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear_RemovesOnlyTheTargetConversation(t *testing.T) {
	repo := &fakeConvoRepo{}
	gw := &fakeGateway{response: "ok"}
	svc := NewMentorService(repo, gw, testHistoryWindow)

	_, err := svc.SendMessage(context.Background(), "u1", "two-sum", "a", "")
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), "u1", "merge-sort", "b", "")
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), "u2", "two-sum", "c", "")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), "u1", "two-sum"))

	remaining, err := svc.History(context.Background(), "u1", "merge-sort")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
	other, err := svc.History(context.Background(), "u2", "two-sum")
	require.NoError(t, err)
	assert.Len(t, other, 2)
	cleared, err := svc.History(context.Background(), "u1", "two-sum")
	require.NoError(t, err)
	assert.Empty(t, cleared)
}
