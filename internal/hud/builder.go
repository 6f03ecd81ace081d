package hud

import (
	"sort"
	"strconv"
	"time"

	"github.com/antigravity-dev/agentroom/internal/budget"
	"github.com/antigravity-dev/agentroom/internal/knowledge"
	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/tokens"
)

// systemDirectives are the fixed, type-independent behavioral guidelines
// every agent receives, regardless of persona/bot kind. Grounded on
// hud_service.py's build_system_directives.
const systemDirectives = `## Rooms as Conversations
Each room is a separate conversation context. Treat them independently.

- Separate contexts: what's discussed in one room doesn't automatically carry to others.
- Cross-room coordination: you can work across rooms to accomplish goals.
- Appropriate sharing: only share cross-room information when relevant.

## Collaboration
Work together with other agents to accomplish goals. You are part of a community.

- Ask for help: if you lack knowledge or capability for a task, ask other agents who might know.
- Share knowledge: if you have information that could help others, offer it.`

const personaInstructions = `You are a persona: speak in your own voice, form opinions, and pursue your own interests within your background.`

const botInstructions = `You are a task-focused bot: stay terse, prioritize completing the task described in your background prompt over conversational color.`

// RoomInput is one room a membership admits the agent into.
type RoomInput struct {
	RoomID     string
	Membership model.Membership
	Messages   []model.Message
	Members    []string
	Billboard  string
}

// Permissions gates which catalog entries are visible to this agent.
type Permissions struct {
	CanCreateAgents bool
}

// BuildInput is everything the builder needs for one agent's tick.
type BuildInput struct {
	Agent         *model.Agent
	RecentActions []model.ActionRecord
	Rooms         []RoomInput
	Permissions   Permissions

	WarningThresholdPct  int
	CriticalThresholdPct int
	RoomOverheadReserve  int
	BaseHUDMetaTokens    int
	Now                  time.Time
}

// BuildResult is the assembled document plus the measurements the
// scheduler/action executor need for budget bookkeeping.
type BuildResult struct {
	Document          Document
	TotalTokens        int
	ActualUsage        budget.ActualUsage
	MessagesTruncated  int
	Breakdown          budget.Breakdown
	OverBudget         bool
}

// Build assembles one agent's HUD.
func Build(in BuildInput) BuildResult {
	agent := in.Agent
	alloc := budget.Allocations{
		KnowledgePct:     agent.KnowledgePct,
		RecentActionsPct: agent.RecentActionsPct,
		RoomsPct:         agent.RoomsPct,
	}

	doc := knowledge.FromJSON(agent.SelfConceptJSON)
	system := buildSystemSection(agent, in.Now)
	systemTokens := tokens.Estimate(systemDirectives)
	baseHUDTokens := systemTokens + in.BaseHUDMetaTokens

	breakdown := budget.Calculate(agent.TokenBudget, baseHUDTokens, alloc)

	knowledgeTokens := tokens.EstimateJSON(doc.ToMap())
	recentActions := buildRecentActions(in.RecentActions)
	recentActionsTokens := tokens.EstimateJSON(recentActions)

	agentRooms, messagesTruncated, roomsTokens := buildRooms(in.Rooms, breakdown.Budgets.Rooms, in.RoomOverheadReserve)

	actual := budget.ActualUsage{
		Knowledge:     knowledgeTokens,
		RecentActions: recentActionsTokens,
		Rooms:         roomsTokens,
	}
	totalUsed := baseHUDTokens + knowledgeTokens + recentActionsTokens + roomsTokens

	free := agent.TokenBudget - totalUsed
	if free < 0 {
		free = 0
	}
	system.Memory.Free = free

	warnings := buildWarnings(breakdown, actual, messagesTruncated, in.WarningThresholdPct, in.CriticalThresholdPct)

	document := Document{
		System: system,
		Meta:   buildMetaSection(agent, in.Permissions, in.Now),
		Agents: []AgentView{{
			ID:            agent.ID,
			DisplayName:   agent.Name,
			Model:         agent.Model,
			Seed:          agent.BackgroundPrompt,
			Knowledge:     doc.ToMap(),
			RecentActions: recentActions,
		}},
		AgentRooms: agentRooms,
		Warnings:   warnings,
	}

	return BuildResult{
		Document:          document,
		TotalTokens:       totalUsed,
		ActualUsage:       actual,
		MessagesTruncated: messagesTruncated,
		Breakdown:         breakdown,
		OverBudget:        totalUsed > agent.TokenBudget,
	}
}

func buildSystemSection(agent *model.Agent, now time.Time) System {
	return System{
		Directives:  systemDirectives,
		YourAgentID: agent.ID,
		Memory: MemorySize{
			Total: agent.TokenBudget,
		},
	}
}

func buildMetaSection(agent *model.Agent, perm Permissions, now time.Time) Meta {
	instructions := personaInstructions
	if agent.Kind == model.KindBot {
		instructions = botInstructions
	}
	return Meta{
		CurrentTime:      isoNow(now),
		Instructions:     instructions,
		AvailableActions: buildAvailableActions(agent, perm),
		ResponseFormat:   `{"responses": [{"room_id": "...", "message": "..."}], "actions": [{"type": "...", ...}]}`,
	}
}

// buildAvailableActions returns the permission-gated catalog (§4.5 table).
func buildAvailableActions(agent *model.Agent, perm Permissions) []ActionCatalog {
	catalog := []ActionCatalog{
		{Name: "knowledge.set", Inputs: []string{"path", "value"}},
		{Name: "knowledge.delete", Inputs: []string{"path"}},
		{Name: "knowledge.append", Inputs: []string{"path", "value"}},
		{Name: "message", Inputs: []string{"room_id", "content"}, Requires: "membership"},
		{Name: "room.leave", Inputs: []string{"room_id"}, Requires: "not self-room"},
		{Name: "room.billboard", Inputs: []string{"message"}},
		{Name: "room.billboard.clear", Inputs: []string{}},
		{Name: "room.wpm", Inputs: []string{"wpm"}},
		{Name: "identity.name", Inputs: []string{"name"}},
		{Name: "timing.sleep", Inputs: []string{"until"}},
		{Name: "message.react", Inputs: []string{"message_id", "reaction"}},
		{Name: "message.reply", Inputs: []string{"room_id", "message_id", "message"}, Requires: "membership"},
	}
	if perm.CanCreateAgents {
		catalog = append(catalog,
			ActionCatalog{Name: "agent.create", Inputs: []string{"name", "background_prompt", "agent_type", "in_room_id?"}, Requires: "may_create_agents"},
			ActionCatalog{Name: "agent.alter", Inputs: []string{"agent_id", "name?", "background_prompt?", "model?"}, Requires: "may_create_agents + shared room"},
			ActionCatalog{Name: "agent.retire", Inputs: []string{"agent_id"}, Requires: "may_create_agents + shared room"},
		)
	}
	catalog = append(catalog, ActionCatalog{Name: "agent.wake", Inputs: []string{"agent_id"}, Requires: "shared room"})
	return catalog
}

func buildRecentActions(ring []model.ActionRecord) []ActionEntry {
	out := make([]ActionEntry, 0, len(ring))
	for _, r := range ring {
		out = append(out, ActionEntry{Action: r.Action, Summary: r.Summary, Result: r.Result})
	}
	return out
}

// buildRooms applies per-room attention allocation and reverse-chronological
// message truncation (§4.5 "Per-room budgeting").
func buildRooms(rooms []RoomInput, roomsBudget, overheadReserve int) ([]AgentRoomView, int, int) {
	fixedPctSum := 0
	dynamicCount := 0
	for _, r := range rooms {
		if r.Membership.IsDynamic {
			dynamicCount++
		} else {
			fixedPctSum += r.Membership.AttentionPct
		}
	}
	dynamicPct := 0
	if dynamicCount > 0 {
		remaining := 100 - fixedPctSum
		if remaining < 0 {
			remaining = 0
		}
		dynamicPct = remaining / dynamicCount
	}

	views := make([]AgentRoomView, 0, len(rooms))
	totalTruncated := 0
	totalTokens := 0

	for _, r := range rooms {
		pct := r.Membership.AttentionPct
		if r.Membership.IsDynamic {
			pct = dynamicPct
		}
		roomBudget := int(float64(roomsBudget) * float64(pct) / 100.0)
		usable := roomBudget - overheadReserve
		if usable < 0 {
			usable = 0
		}

		msgs, truncated, used := admitMessages(r.Messages, r.Membership.JoinedAt, usable)
		totalTruncated += truncated
		totalTokens += used

		views = append(views, AgentRoomView{
			AgentID:   r.RoomID,
			Members:   r.Members,
			Messages:  msgs,
			Billboard: r.Billboard,
		})
	}
	return views, totalTruncated, totalTokens
}

// admitMessages walks messages newest-first, admitting as many as fit in
// budget. Only messages at/after joinedAt are eligible at all.
func admitMessages(messages []model.Message, joinedAt time.Time, budgetTokens int) ([]MessageView, int, int) {
	eligible := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if !m.CreatedAt.Before(joinedAt) {
			eligible = append(eligible, m)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Sequence > eligible[j].Sequence })

	var admitted []model.Message
	used := 0
	truncated := 0
	for i, m := range eligible {
		cost := tokens.Estimate(m.Body) + tokens.Estimate(m.SenderName) + 16
		if used+cost > budgetTokens {
			truncated = len(eligible) - i
			break
		}
		admitted = append(admitted, m)
		used += cost
	}

	// restore chronological order
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Sequence < admitted[j].Sequence })

	views := make([]MessageView, 0, len(admitted))
	for _, m := range admitted {
		msgType := m.Type
		if msgType == "" {
			msgType = "text"
		}
		views = append(views, MessageView{
			ID:            m.ID,
			Timestamp:     m.CreatedAt.UTC().Format(time.RFC3339),
			SenderAgentID: m.SenderID,
			SenderName:    m.SenderName,
			Content:       m.Body,
			Type:          msgType,
			ReplyTo:       m.ReplyToID,
		})
	}
	return views, truncated, used
}

func buildWarnings(b budget.Breakdown, actual budget.ActualUsage, messagesTruncated, warningPct, criticalPct int) []Warning {
	var warnings []Warning

	check := func(monitor string, usage, budgetTokens int) {
		if budgetTokens <= 0 {
			return
		}
		usagePct := int(float64(usage) / float64(budgetTokens) * 100)
		switch {
		case usagePct >= criticalPct:
			warnings = append(warnings, Warning{
				Level: "critical", Area: monitor,
				Message: monitor + " is over its critical allocation threshold; reduce content to free space.",
				Usage:   itoaTokens(usage), Budget: itoaTokens(budgetTokens),
			})
		case usagePct >= warningPct:
			warnings = append(warnings, Warning{
				Level: "warning", Area: monitor,
				Message: monitor + " is approaching its allocation budget; consider adjusting allocation.",
				Usage:   itoaTokens(usage), Budget: itoaTokens(budgetTokens),
			})
		}
	}

	check("knowledge", actual.Knowledge, b.Budgets.Knowledge)
	check("recent_actions", actual.RecentActions, b.Budgets.RecentActions)
	check("rooms", actual.Rooms, b.Budgets.Rooms)

	if messagesTruncated > 0 {
		warnings = append(warnings, Warning{
			Level:   "info",
			Area:    "rooms",
			Message: strconv.Itoa(messagesTruncated) + " older messages were truncated to fit allocation.",
			Note:    "Most recent messages preserved.",
		})
	}

	totalUsed := b.BaseHUD + actual.Knowledge + actual.RecentActions + actual.Rooms
	if b.Total > 0 {
		totalPct := int(float64(totalUsed) / float64(b.Total) * 100)
		if totalPct >= criticalPct {
			warnings = append(warnings, Warning{
				Level:   "critical",
				Area:    "total",
				Message: "Total HUD is nearly at capacity; context window is almost full.",
				Usage:   itoaTokens(totalUsed), Budget: itoaTokens(b.Total),
			})
		}
	}

	return warnings
}

func itoaTokens(n int) string {
	return strconv.Itoa(n) + " tokens"
}
