package store

import (
	"context"
	"fmt"
	"time"
)

// InsertChatMessage appends to the chat log. Rows are never updated; the
// table rejects UPDATE and DELETE.
func (s queries) InsertChatMessage(ctx context.Context, msg ChatMessage) error {
	actions := msg.Actions
	if len(actions) == 0 {
		actions = []byte("[]")
	}
	var createdAt *time.Time
	if !msg.CreatedAt.IsZero() {
		createdAt = &msg.CreatedAt
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chat_messages (id, board_id, board_name, user_id, message, response, actions, created_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7::jsonb, COALESCE($8::timestamptz, now()))
	`, msg.ID, msg.BoardID, msg.BoardName, msg.UserID, msg.Message, msg.Response, string(actions), createdAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the latest limit messages of one conversation,
// oldest first. A nil boardID selects the global conversation.
func (s queries) ListChatMessages(ctx context.Context, userID string, boardID *string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, board_id, board_name, user_id, message, response, actions, created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE user_id = $1 AND board_id IS NOT DISTINCT FROM $2::uuid
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY created_at, id
	`, userID, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var msg ChatMessage
		var actions []byte
		if err := rows.Scan(&msg.ID, &msg.BoardID, &msg.BoardName, &msg.UserID, &msg.Message, &msg.Response, &actions, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Actions = actions
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
