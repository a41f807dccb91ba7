package service

import (
	"context"
	"log"
	"strings"
	"time"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"
	"prepmate/internal/domain/repository"
	"prepmate/internal/platform/llm"

	"github.com/google/uuid"
)

// MentorService keeps a bounded, ordered chat history per (user, topic)
// and turns it into generation requests. The user's own message is the
// only load-bearing write: losing it silently is unacceptable, so that
// persistence failure propagates. Everything downstream degrades.
type MentorService struct {
	convoRepo repository.ConversationRepository
	gateway   llm.Gateway

	// historyWindow is the number of most recent turns supplied to the
	// generator, oldest to newest.
	historyWindow int
}

func NewMentorService(convoRepo repository.ConversationRepository, gateway llm.Gateway, historyWindow int) *MentorService {
	return &MentorService{
		convoRepo:     convoRepo,
		gateway:       gateway,
		historyWindow: historyWindow,
	}
}

func (s *MentorService) validate(userID, topicKey, message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if userID == "" || topicKey == "" || trimmed == "" {
		return "", common.Errorf("user, topic and message are required: %w", common.ErrValidation)
	}
	return trimmed, nil
}

// SendMessage appends the user's message to the conversation, asks the
// generator for a reply over the recent context window, persists the
// reply best-effort and returns it. A gateway failure yields the fixed
// fallback reply, never an error.
func (s *MentorService) SendMessage(ctx context.Context, userID, topicKey, message, editorContext string) (string, error) {
	trimmed, err := s.validate(userID, topicKey, message)
	if err != nil {
		return "", err
	}

	userTurn := &model.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		TopicKey:  topicKey,
		Role:      model.TurnRoleUser,
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.convoRepo.AppendTurn(ctx, userTurn); err != nil {
		return "", common.Errorf("failed to persist user message: %w", err)
	}

	messages := s.contextWindow(ctx, userTurn)

	reply, err := s.gateway.Generate(ctx, s.systemPrompt(editorContext), messages)
	if err != nil {
		log.Printf("WARN: mentor generation failed for user %s topic %s: %v", userID, topicKey, err)
		return mentorFallbackReply, nil
	}

	s.persistAssistantTurn(ctx, userID, topicKey, reply)
	return reply, nil
}

// StreamMessage is the streaming variant of SendMessage. Fragments are
// delivered through emit as they arrive; the accumulated reply is
// persisted after end-of-stream and returned. A gateway failure before
// any fragment degrades to the fixed fallback reply; a failure mid-stream
// keeps whatever was already delivered.
func (s *MentorService) StreamMessage(ctx context.Context, userID, topicKey, message, editorContext string, emit func(chunk string) error) (string, error) {
	trimmed, err := s.validate(userID, topicKey, message)
	if err != nil {
		return "", err
	}

	userTurn := &model.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		TopicKey:  topicKey,
		Role:      model.TurnRoleUser,
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.convoRepo.AppendTurn(ctx, userTurn); err != nil {
		return "", common.Errorf("failed to persist user message: %w", err)
	}

	messages := s.contextWindow(ctx, userTurn)

	chunks, errs := s.gateway.GenerateStream(ctx, s.systemPrompt(editorContext), messages)
	var reply strings.Builder
	for chunk := range chunks {
		reply.WriteString(chunk)
		if err := emit(chunk); err != nil {
			// Client went away; keep draining so the goroutine exits,
			// then persist what was generated.
			log.Printf("WARN: mentor stream consumer gone for user %s: %v", userID, err)
			for range chunks {
			}
			break
		}
	}
	if err := <-errs; err != nil {
		log.Printf("WARN: mentor stream failed for user %s topic %s: %v", userID, topicKey, err)
		if reply.Len() == 0 {
			if emitErr := emit(mentorFallbackReply); emitErr != nil {
				log.Printf("WARN: mentor stream fallback emit: %v", emitErr)
			}
			return mentorFallbackReply, nil
		}
	}

	s.persistAssistantTurn(ctx, userID, topicKey, reply.String())
	return reply.String(), nil
}

// History returns the full conversation, oldest to newest.
func (s *MentorService) History(ctx context.Context, userID, topicKey string) ([]model.ConversationTurn, error) {
	if userID == "" || topicKey == "" {
		return nil, common.Errorf("user and topic are required: %w", common.ErrValidation)
	}
	return s.convoRepo.ListTurns(ctx, userID, topicKey)
}

// Clear deletes the conversation. Clearing an empty conversation is a
// no-op success.
func (s *MentorService) Clear(ctx context.Context, userID, topicKey string) error {
	if userID == "" || topicKey == "" {
		return common.Errorf("user and topic are required: %w", common.ErrValidation)
	}
	return s.convoRepo.DeleteTurns(ctx, userID, topicKey)
}

// contextWindow loads the recent turns for the conversation and converts
// them to gateway messages. The just-written user turn is appended
// in-memory when the read misses it, so the request always ends with the
// newest user message even if the store lags or the read fails.
func (s *MentorService) contextWindow(ctx context.Context, userTurn *model.ConversationTurn) []llm.Message {
	turns, err := s.convoRepo.RecentTurns(ctx, userTurn.UserID, userTurn.TopicKey, s.historyWindow)
	if err != nil {
		log.Printf("WARN: failed to load history for user %s topic %s: %v", userTurn.UserID, userTurn.TopicKey, err)
		turns = nil
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	if len(messages) == 0 || messages[len(messages)-1].Content != userTurn.Content || messages[len(messages)-1].Role != llm.RoleUser {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userTurn.Content})
		if len(messages) > s.historyWindow && s.historyWindow > 0 {
			messages = messages[len(messages)-s.historyWindow:]
		}
	}
	return messages
}

func (s *MentorService) systemPrompt(editorContext string) string {
	if strings.TrimSpace(editorContext) == "" {
		return mentorSystemPrompt
	}
	return mentorSystemPrompt + "\n\nCandidate's current editor buffer:\n```\n" + editorContext + "\n```"
}

func (s *MentorService) persistAssistantTurn(ctx context.Context, userID, topicKey, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	turn := &model.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		TopicKey:  topicKey,
		Role:      model.TurnRoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	// Best-effort: the caller already has the reply in hand.
	if err := s.convoRepo.AppendTurn(ctx, turn); err != nil {
		log.Printf("WARN: failed to persist assistant reply for user %s topic %s: %v", userID, topicKey, err)
	}
}
