// Package hud assembles the bounded-token context document (the HUD) an
// agent sees on each tick: fixed system/meta sections, the agent's own
// knowledge and recent-action history, and a per-room slice of message
// history sized by attention share. Grounded on hud_service.py's
// build_hud_multi_room and the budgeting helpers it calls.
package hud

import "time"

// Document is the composite HUD payload handed to the serializer.
type Document struct {
	System     System          `json:"system"`
	Meta       Meta            `json:"meta"`
	Agents     []AgentView     `json:"agents"`
	AgentRooms []AgentRoomView `json:"agent_rooms"`
	Warnings   []Warning       `json:"warnings,omitempty"`
}

// System carries fixed directives and the agent's own identity.
type System struct {
	Directives  string     `json:"directives"`
	YourAgentID string     `json:"your_agent_id"`
	Memory      MemorySize `json:"memory"`
}

// MemorySize is the top-level {total, free} summary shown to the agent.
type MemorySize struct {
	Total int `json:"total"`
	Free  int `json:"free"`
}

// Meta carries current time, behavioral instructions, and the catalog.
type Meta struct {
	CurrentTime       string           `json:"current_time"`
	Instructions      string           `json:"instructions"`
	AvailableActions  []ActionCatalog  `json:"available_actions"`
	ResponseFormat    string           `json:"response_format"`
}

// ActionCatalog is one entry in the permission-gated available-actions list.
type ActionCatalog struct {
	Name     string   `json:"name"`
	Inputs   []string `json:"inputs"`
	Requires string   `json:"requires,omitempty"`
}

// AgentView is the agent's own self-state: identity, knowledge, history.
type AgentView struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	Model          string         `json:"model"`
	Seed           string         `json:"seed"`
	Knowledge      map[string]any `json:"knowledge"`
	RecentActions  []ActionEntry  `json:"recent_actions"`
}

// ActionEntry is one entry of the recent-action ring rendered into the HUD.
type ActionEntry struct {
	Action  string `json:"action"`
	Summary string `json:"summary"`
	Result  string `json:"result"`
}

// AgentRoomView is one membership's room, rendered with its truncated
// message tail.
type AgentRoomView struct {
	AgentID   string            `json:"agent_id"`
	Members   []string          `json:"members"`
	Messages  []MessageView     `json:"messages"`
	Billboard string            `json:"billboard,omitempty"`
}

// MessageView is the shape a message takes inside a room's tail.
type MessageView struct {
	ID             int64   `json:"id"`
	Timestamp      string  `json:"timestamp"`
	SenderAgentID  string  `json:"sender_agent_id"`
	SenderName     string  `json:"sender_name"`
	Content        string  `json:"content"`
	Type           string  `json:"type"`
	ReplyTo        *int64  `json:"reply_to,omitempty"`
}

// Warning is one entry of the warnings section.
type Warning struct {
	Level   string `json:"level"`
	Area    string `json:"area"`
	Message string `json:"message"`
	Usage   string `json:"usage,omitempty"`
	Budget  string `json:"budget,omitempty"`
	Note    string `json:"note,omitempty"`
}

func isoNow(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
