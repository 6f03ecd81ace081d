package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/antigravity-dev/agentroom/internal/model"
)

const agentCols = `id, name, background_prompt, kind, model, temperature, status, heartbeat_interval_ms,
	token_budget, knowledge_pct, recent_actions_pct, rooms_pct, room_wpm, can_create_agents,
	over_budget, sleep_until, self_concept_json, room_billboard, created_at`

// GetAgent loads an agent by id, or (nil, nil) if not found.
func (s *Store) GetAgent(id string) (*model.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE id = ?`, id)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent %s: %w", id, err)
	}
	return agent, nil
}

// GetArchitect loads the singleton Architect agent.
func (s *Store) GetArchitect() (*model.Agent, error) {
	return s.GetAgent(model.ArchitectID)
}

// ListAgents returns every agent, including the Architect.
func (s *Store) ListAgents() ([]*model.Agent, error) {
	return s.queryAgents(`SELECT ` + agentCols + ` FROM agents ORDER BY created_at ASC`)
}

// ListAIAgents returns every agent except the Architect.
func (s *Store) ListAIAgents() ([]*model.Agent, error) {
	return s.queryAgents(`SELECT `+agentCols+` FROM agents WHERE id != ? ORDER BY created_at ASC`, model.ArchitectID)
}

// SaveAgent inserts or updates an agent by id.
func (s *Store) SaveAgent(a *model.Agent) error {
	var sleepUntil any
	if a.SleepUntil != nil {
		sleepUntil = a.SleepUntil.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, background_prompt, kind, model, temperature, status, heartbeat_interval_ms,
			token_budget, knowledge_pct, recent_actions_pct, rooms_pct, room_wpm, can_create_agents,
			over_budget, sleep_until, self_concept_json, room_billboard, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			background_prompt=excluded.background_prompt,
			kind=excluded.kind,
			model=excluded.model,
			temperature=excluded.temperature,
			status=excluded.status,
			heartbeat_interval_ms=excluded.heartbeat_interval_ms,
			token_budget=excluded.token_budget,
			knowledge_pct=excluded.knowledge_pct,
			recent_actions_pct=excluded.recent_actions_pct,
			rooms_pct=excluded.rooms_pct,
			room_wpm=excluded.room_wpm,
			can_create_agents=excluded.can_create_agents,
			over_budget=excluded.over_budget,
			sleep_until=excluded.sleep_until,
			self_concept_json=excluded.self_concept_json,
			room_billboard=excluded.room_billboard`,
		a.ID, a.Name, a.BackgroundPrompt, string(a.Kind), a.Model, a.Temperature, string(a.Status),
		a.HeartbeatInterval.Milliseconds(), a.TokenBudget, a.KnowledgePct, a.RecentActionsPct, a.RoomsPct,
		a.RoomWPM, a.CanCreateAgents, a.OverBudget, sleepUntil, a.SelfConceptJSON, a.RoomBillboard,
		agentCreatedAt(a),
	)
	if err != nil {
		return fmt.Errorf("store: save agent %s: %w", a.ID, err)
	}
	return nil
}

func agentCreatedAt(a *model.Agent) time.Time {
	if a.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return a.CreatedAt.UTC()
}

// DeleteAgent removes an agent and cascades to its memberships and messages
// (memberships/messages reference agents.id with ON DELETE CASCADE).
func (s *Store) DeleteAgent(id string) error {
	_, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete agent %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*model.Agent, error) {
	var a model.Agent
	var kind, status string
	var heartbeatMS int64
	var sleepUntil sql.NullTime
	var temperature float64
	if err := row.Scan(
		&a.ID, &a.Name, &a.BackgroundPrompt, &kind, &a.Model, &temperature, &status, &heartbeatMS,
		&a.TokenBudget, &a.KnowledgePct, &a.RecentActionsPct, &a.RoomsPct, &a.RoomWPM, &a.CanCreateAgents,
		&a.OverBudget, &sleepUntil, &a.SelfConceptJSON, &a.RoomBillboard, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Kind = model.Kind(kind)
	a.Status = model.Status(status)
	a.Temperature = temperature
	a.HeartbeatInterval = time.Duration(heartbeatMS) * time.Millisecond
	if sleepUntil.Valid {
		t := sleepUntil.Time
		a.SleepUntil = &t
	}
	return &a, nil
}

func (s *Store) queryAgents(query string, args ...any) ([]*model.Agent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query agents: %w", err)
	}
	defer rows.Close()

	var agents []*model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
