package store

import (
	"fmt"

	"github.com/antigravity-dev/agentroom/internal/model"
)

// SaveActionRecord appends one entry to an agent's recent-action ring and
// trims the ring to ringSize, keeping only the most recent entries.
func (s *Store) SaveActionRecord(r *model.ActionRecord, ringSize int) error {
	_, err := s.db.Exec(
		`INSERT INTO recent_actions (agent_id, action, summary, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.AgentID, r.Action, r.Summary, r.Result, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save action record for %s: %w", r.AgentID, err)
	}
	if ringSize <= 0 {
		return nil
	}
	_, err = s.db.Exec(`
		DELETE FROM recent_actions WHERE agent_id = ? AND id NOT IN (
			SELECT id FROM recent_actions WHERE agent_id = ? ORDER BY id DESC LIMIT ?
		)`, r.AgentID, r.AgentID, ringSize,
	)
	if err != nil {
		return fmt.Errorf("store: trim action records for %s: %w", r.AgentID, err)
	}
	return nil
}

// ListRecentActionsForAgent returns an agent's recent-action ring, oldest first.
func (s *Store) ListRecentActionsForAgent(agentID string) ([]model.ActionRecord, error) {
	rows, err := s.db.Query(
		`SELECT agent_id, action, summary, result, created_at FROM recent_actions WHERE agent_id = ? ORDER BY id ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list recent actions for %s: %w", agentID, err)
	}
	defer rows.Close()

	var records []model.ActionRecord
	for rows.Next() {
		var r model.ActionRecord
		if err := rows.Scan(&r.AgentID, &r.Action, &r.Summary, &r.Result, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan action record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
