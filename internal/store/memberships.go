package store

import (
	"database/sql"
	"fmt"

	"github.com/antigravity-dev/agentroom/internal/model"
)

const membershipCols = `agent_id, room_id, joined_at, last_message_id, last_response_time,
	last_response_word_count, attention_pct, is_dynamic, is_self_room`

// GetMembership loads one agent's membership in one room, or (nil, nil) if absent.
func (s *Store) GetMembership(agentID, roomID string) (*model.Membership, error) {
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM memberships WHERE agent_id = ? AND room_id = ?`, agentID, roomID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get membership %s/%s: %w", agentID, roomID, err)
	}
	return m, nil
}

// ListMembershipsForAgent returns every room an agent belongs to.
func (s *Store) ListMembershipsForAgent(agentID string) ([]*model.Membership, error) {
	return s.queryMemberships(`SELECT `+membershipCols+` FROM memberships WHERE agent_id = ? ORDER BY joined_at ASC`, agentID)
}

// ListMembersOfRoom returns every membership row for a room (its roster).
func (s *Store) ListMembersOfRoom(roomID string) ([]*model.Membership, error) {
	return s.queryMemberships(`SELECT `+membershipCols+` FROM memberships WHERE room_id = ? ORDER BY joined_at ASC`, roomID)
}

// SaveMembership inserts or updates a membership row by (agent_id, room_id).
func (s *Store) SaveMembership(m *model.Membership) error {
	var lastResponseTime any
	if m.LastResponseTime != nil {
		lastResponseTime = m.LastResponseTime.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO memberships (agent_id, room_id, joined_at, last_message_id, last_response_time,
			last_response_word_count, attention_pct, is_dynamic, is_self_room)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, room_id) DO UPDATE SET
			last_message_id=excluded.last_message_id,
			last_response_time=excluded.last_response_time,
			last_response_word_count=excluded.last_response_word_count,
			attention_pct=excluded.attention_pct,
			is_dynamic=excluded.is_dynamic,
			is_self_room=excluded.is_self_room`,
		m.AgentID, m.RoomID, m.JoinedAt.UTC(), m.LastMessageID, lastResponseTime,
		m.LastResponseWordCount, m.AttentionPct, m.IsDynamic, m.IsSelfRoom,
	)
	if err != nil {
		return fmt.Errorf("store: save membership %s/%s: %w", m.AgentID, m.RoomID, err)
	}
	return nil
}

// DeleteMembership removes one agent's membership in one room.
func (s *Store) DeleteMembership(agentID, roomID string) error {
	_, err := s.db.Exec(`DELETE FROM memberships WHERE agent_id = ? AND room_id = ?`, agentID, roomID)
	if err != nil {
		return fmt.Errorf("store: delete membership %s/%s: %w", agentID, roomID, err)
	}
	return nil
}

func scanMembership(row scanner) (*model.Membership, error) {
	var m model.Membership
	var lastResponseTime sql.NullTime
	if err := row.Scan(
		&m.AgentID, &m.RoomID, &m.JoinedAt, &m.LastMessageID, &lastResponseTime,
		&m.LastResponseWordCount, &m.AttentionPct, &m.IsDynamic, &m.IsSelfRoom,
	); err != nil {
		return nil, err
	}
	if lastResponseTime.Valid {
		t := lastResponseTime.Time
		m.LastResponseTime = &t
	}
	return &m, nil
}

func (s *Store) queryMemberships(query string, args ...any) ([]*model.Membership, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
