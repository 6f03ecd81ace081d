// Package model defines the shared entity types for agents, rooms,
// memberships, messages, and recent-action records.
package model

import "time"

// Status is an agent's current scheduling state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusThinking Status = "thinking"
	StatusTyping   Status = "typing"
	StatusSleeping Status = "sleeping"
	StatusRetired  Status = "retired"
)

// Kind distinguishes a human-voiced persona from a task-focused bot; it
// only shapes which behavioral instructions the HUD's meta section uses.
type Kind string

const (
	KindPersona Kind = "persona"
	KindBot     Kind = "bot"
)

// ArchitectID is the well-known id of the singleton Architect agent, which
// doubles as its own room id (agents are rooms, per the design note).
const ArchitectID = "architect"

// Agent is both a chat participant and, by id, the room it owns.
type Agent struct {
	ID                string
	Name              string
	BackgroundPrompt  string
	Kind              Kind
	Model             string
	Temperature       float64
	Status            Status
	HeartbeatInterval time.Duration
	TokenBudget       int
	KnowledgePct      int
	RecentActionsPct  int
	RoomsPct          int
	RoomWPM           int
	CanCreateAgents   bool
	OverBudget        bool
	SleepUntil        *time.Time
	SelfConceptJSON   string // serialized knowledge.Document
	RoomBillboard     string
	CreatedAt         time.Time
}

// IsArchitect reports whether this agent is the singleton Architect.
func (a *Agent) IsArchitect() bool {
	return a.ID == ArchitectID
}

// IsAsleep reports whether the agent is currently within a sleep window.
func (a *Agent) IsAsleep(now time.Time) bool {
	return a.SleepUntil != nil && now.Before(*a.SleepUntil)
}
