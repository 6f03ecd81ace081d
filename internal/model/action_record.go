package model

import "time"

// ActionRecord is one entry in an agent's recent-actions ring: a compact,
// already-truncated summary of something the agent itself did recently.
// The HUD renders these back to the agent as a memory of its own behavior.
type ActionRecord struct {
	AgentID   string
	Action    string // e.g. "message", "message.react", "agent.create", "timing.sleep", "llm.send"
	Summary   string // short, type-specific description, already truncated
	Result    string // "ok", "queued", or "error: ..."
	CreatedAt time.Time
}
