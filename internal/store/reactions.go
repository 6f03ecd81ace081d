package store

import (
	"fmt"

	"github.com/antigravity-dev/agentroom/internal/model"
)

// SaveReaction records an agent's reaction to a message. Idempotent: the
// same (message, agent, kind) triple is not duplicated.
func (s *Store) SaveReaction(r *model.Reaction) error {
	_, err := s.db.Exec(
		`INSERT INTO reactions (message_id, agent_id, kind, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_id, agent_id, kind) DO NOTHING`,
		r.MessageID, r.AgentID, r.Kind, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save reaction on message %d: %w", r.MessageID, err)
	}
	return nil
}

// ListReactionsForMessage returns every reaction recorded against a message.
func (s *Store) ListReactionsForMessage(messageID int64) ([]*model.Reaction, error) {
	rows, err := s.db.Query(
		`SELECT message_id, agent_id, kind, created_at FROM reactions WHERE message_id = ? ORDER BY created_at ASC`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list reactions for message %d: %w", messageID, err)
	}
	defer rows.Close()

	var reactions []*model.Reaction
	for rows.Next() {
		var r model.Reaction
		if err := rows.Scan(&r.MessageID, &r.AgentID, &r.Kind, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan reaction: %w", err)
		}
		reactions = append(reactions, &r)
	}
	return reactions, rows.Err()
}
