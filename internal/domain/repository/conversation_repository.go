package repository

import (
	"context"
	"database/sql"
	"fmt"

	"prepmate/internal/domain/model"
)

type ConversationRepository interface {
	AppendTurn(ctx context.Context, turn *model.ConversationTurn) error

	// RecentTurns returns at most limit turns for the conversation,
	// ordered oldest to newest.
	RecentTurns(ctx context.Context, userID, topicKey string, limit int) ([]model.ConversationTurn, error)

	// ListTurns returns the full conversation, oldest to newest.
	ListTurns(ctx context.Context, userID, topicKey string) ([]model.ConversationTurn, error)

	// DeleteTurns removes the whole conversation. Deleting an empty
	// conversation is a no-op success.
	DeleteTurns(ctx context.Context, userID, topicKey string) error
}

type pgConversationRepository struct {
	db *sql.DB
}

func NewPgConversationRepository(db *sql.DB) ConversationRepository {
	return &pgConversationRepository{db: db}
}

func (r *pgConversationRepository) AppendTurn(ctx context.Context, t *model.ConversationTurn) error {
	query := `INSERT INTO conversation_turns (id, user_id, topic_key, role, content, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TopicKey, t.Role, t.Content, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgConversationRepository.AppendTurn: %w", err)
	}
	return nil
}

func (r *pgConversationRepository) RecentTurns(ctx context.Context, userID, topicKey string, limit int) ([]model.ConversationTurn, error) {
	// Newest N selected first, then re-ordered chronologically.
	query := `SELECT id, user_id, topic_key, role, content, created_at FROM (
	            SELECT id, user_id, topic_key, role, content, created_at
	            FROM conversation_turns
	            WHERE user_id = $1 AND topic_key = $2
	            ORDER BY created_at DESC
	            LIMIT $3
	          ) recent ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, topicKey, limit)
	if err != nil {
		return nil, fmt.Errorf("pgConversationRepository.RecentTurns query: %w", err)
	}
	defer rows.Close()

	turns := []model.ConversationTurn{}
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.TopicKey, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgConversationRepository.RecentTurns scan: %w", err)
		}
		turns = append(turns, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgConversationRepository.RecentTurns rows.Err: %w", err)
	}
	return turns, nil
}

func (r *pgConversationRepository) ListTurns(ctx context.Context, userID, topicKey string) ([]model.ConversationTurn, error) {
	query := `SELECT id, user_id, topic_key, role, content, created_at
	          FROM conversation_turns
	          WHERE user_id = $1 AND topic_key = $2
	          ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, topicKey)
	if err != nil {
		return nil, fmt.Errorf("pgConversationRepository.ListTurns query: %w", err)
	}
	defer rows.Close()

	turns := []model.ConversationTurn{}
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.TopicKey, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgConversationRepository.ListTurns scan: %w", err)
		}
		turns = append(turns, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgConversationRepository.ListTurns rows.Err: %w", err)
	}
	return turns, nil
}

func (r *pgConversationRepository) DeleteTurns(ctx context.Context, userID, topicKey string) error {
	query := `DELETE FROM conversation_turns WHERE user_id = $1 AND topic_key = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, topicKey); err != nil {
		return fmt.Errorf("pgConversationRepository.DeleteTurns: %w", err)
	}
	return nil
}
