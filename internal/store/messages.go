package store

import (
	"database/sql"
	"fmt"

	"github.com/antigravity-dev/agentroom/internal/model"
)

const messageCols = `id, room_id, sender_id, sender_name, body, type, reply_to_id, sequence, created_at`

// NextSequence returns the next monotonic sequence number for a room's
// message stream (max(sequence)+1, or 1 for an empty room).
func (s *Store) NextSequence(roomID string) (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(sequence) FROM messages WHERE room_id = ?`, roomID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("store: next sequence for %s: %w", roomID, err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

// SaveMessage inserts a new message and returns it with its assigned id.
func (s *Store) SaveMessage(m *model.Message) (*model.Message, error) {
	msgType := m.Type
	if msgType == "" {
		msgType = "text"
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (room_id, sender_id, sender_name, body, type, reply_to_id, sequence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RoomID, m.SenderID, m.SenderName, m.Body, msgType, m.ReplyToID, m.Sequence, m.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: save message in %s: %w", m.RoomID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: save message last insert id: %w", err)
	}
	saved := *m
	saved.ID = id
	saved.Type = msgType
	return &saved, nil
}

// GetMessageByID loads one message, or (nil, nil) if not found.
func (s *Store) GetMessageByID(id int64) (*model.Message, error) {
	row := s.db.QueryRow(`SELECT `+messageCols+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message %d: %w", id, err)
	}
	return m, nil
}

// ListMessagesForRoom returns every message in a room, oldest first.
func (s *Store) ListMessagesForRoom(roomID string) ([]*model.Message, error) {
	return s.queryMessages(`SELECT `+messageCols+` FROM messages WHERE room_id = ? ORDER BY sequence ASC`, roomID)
}

// ListMessagesForRoomSince returns messages in a room with sequence strictly
// greater than the given value, oldest first.
func (s *Store) ListMessagesForRoomSince(roomID string, sinceSequence int64) ([]*model.Message, error) {
	return s.queryMessages(`SELECT `+messageCols+` FROM messages WHERE room_id = ? AND sequence > ? ORDER BY sequence ASC`, roomID, sinceSequence)
}

// ClearMessagesForRoom deletes every message in a room (used when a room is reset).
func (s *Store) ClearMessagesForRoom(roomID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("store: clear messages for %s: %w", roomID, err)
	}
	return nil
}

func scanMessage(row scanner) (*model.Message, error) {
	var m model.Message
	var replyToID sql.NullInt64
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Body, &m.Type, &replyToID, &m.Sequence, &m.CreatedAt); err != nil {
		return nil, err
	}
	if replyToID.Valid {
		v := replyToID.Int64
		m.ReplyToID = &v
	}
	return &m, nil
}

func (s *Store) queryMessages(query string, args ...any) ([]*model.Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
