package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/antigravity-dev/agentroom/internal/action"
	"github.com/antigravity-dev/agentroom/internal/hud"
	"github.com/antigravity-dev/agentroom/internal/knowledge"
	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/room"
	"github.com/antigravity-dev/agentroom/internal/scheduler"
	"github.com/antigravity-dev/agentroom/internal/wire"
)

func parseMessageID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (e *Engine) tick(ctx context.Context, agentID string) {
	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		e.logger.Error("orchestrator: load agent", "agent_id", agentID, "error", err)
		return
	}
	if agent == nil || agent.IsArchitect() {
		return
	}

	if err := e.rooms.SetStatus(agentID, model.StatusThinking); err != nil {
		e.logger.Error("orchestrator: set thinking", "agent_id", agentID, "error", err)
		return
	}

	result, err := e.buildHUD(agent)
	if err != nil {
		e.logger.Error("orchestrator: build hud", "agent_id", agentID, "error", err)
		e.settle(agentID, agent)
		return
	}
	agent.OverBudget = result.OverBudget

	format := e.responseFormat()
	input, err := serializeDocument(result.Document, format)
	if err != nil {
		e.logger.Error("orchestrator: serialize hud", "agent_id", agentID, "error", err)
		e.settle(agentID, agent)
		return
	}

	if err := e.rooms.SetStatus(agentID, model.StatusTyping); err != nil {
		e.logger.Error("orchestrator: set typing", "agent_id", agentID, "error", err)
	}

	text, responseID, _, err := e.llm.Send(ctx, agent.Model, agent.BackgroundPrompt, input, e.lastResponseID(agentID))
	if err != nil {
		e.logger.Warn("orchestrator: llm send failed", "agent_id", agentID, "error", err)
		e.recordOutcome(agentID, action.Outcome{Action: "llm.send", Summary: "", Result: "error: " + err.Error()})
		e.settle(agentID, agent)
		return
	}
	e.setLastResponseID(agentID, responseID)

	parsed := wire.ParseReply(text, format)

	actions := parsed.Actions
	for _, r := range parsed.Responses {
		actions = append(actions, map[string]any{"type": "message", "room_id": fmt.Sprint(r.RoomID), "content": r.Message})
	}

	doc := knowledge.FromJSON(agent.SelfConceptJSON)
	deps := e.buildDeps(agent)
	applied := action.Apply(deps, doc, actions)

	if docJSON, err := applied.Document.ToJSON(); err == nil {
		agent.SelfConceptJSON = docJSON
	}

	e.applyPending(ctx, agent, applied.Pending)

	for _, outcome := range applied.Outcomes {
		e.recordOutcome(agentID, outcome)
	}

	agent.HeartbeatInterval = scheduler.Decay(agent.HeartbeatInterval)
	e.settle(agentID, agent)
}

// settle persists the agent's final state and sets its resting status.
func (e *Engine) settle(agentID string, agent *model.Agent) {
	status := model.StatusIdle
	now := time.Now().UTC()
	if agent.SleepUntil != nil && agent.SleepUntil.After(now) {
		status = model.StatusSleeping
	}
	agent.Status = status
	if err := e.store.SaveAgent(agent); err != nil {
		e.logger.Error("orchestrator: save agent", "agent_id", agentID, "error", err)
		return
	}
	if err := e.rooms.SetStatus(agentID, status); err != nil {
		e.logger.Error("orchestrator: set resting status", "agent_id", agentID, "error", err)
	}
}

func (e *Engine) recordOutcome(agentID string, outcome action.Outcome) {
	cfg := e.cfg.Get()
	if err := e.store.SaveActionRecord(&model.ActionRecord{
		AgentID:   agentID,
		Action:    outcome.Action,
		Summary:   outcome.Summary,
		Result:    outcome.Result,
		CreatedAt: time.Now().UTC(),
	}, cfg.Agents.RecentActionRingSize); err != nil {
		e.logger.Error("orchestrator: save action record", "agent_id", agentID, "error", err)
	}
}

func (e *Engine) buildHUD(agent *model.Agent) (hud.BuildResult, error) {
	cfg := e.cfg.Get()

	memberships, err := e.store.ListMembershipsForAgent(agent.ID)
	if err != nil {
		return hud.BuildResult{}, fmt.Errorf("list memberships: %w", err)
	}

	recentActions, err := e.store.ListRecentActionsForAgent(agent.ID)
	if err != nil {
		return hud.BuildResult{}, fmt.Errorf("list recent actions: %w", err)
	}

	rooms := make([]hud.RoomInput, 0, len(memberships))
	for _, m := range memberships {
		roomAgent, err := e.store.GetAgent(m.RoomID)
		if err != nil {
			return hud.BuildResult{}, fmt.Errorf("load room %s: %w", m.RoomID, err)
		}
		if roomAgent == nil {
			continue
		}

		roster, err := e.store.ListMembersOfRoom(m.RoomID)
		if err != nil {
			return hud.BuildResult{}, fmt.Errorf("list roster %s: %w", m.RoomID, err)
		}
		members := make([]string, 0, len(roster))
		for _, r := range roster {
			members = append(members, r.AgentID)
		}

		messages, err := e.store.ListMessagesForRoomSince(m.RoomID, 0)
		if err != nil {
			return hud.BuildResult{}, fmt.Errorf("list messages %s: %w", m.RoomID, err)
		}
		msgs := make([]model.Message, 0, len(messages))
		for _, msg := range messages {
			msgs = append(msgs, *msg)
		}

		rooms = append(rooms, hud.RoomInput{
			RoomID:     m.RoomID,
			Membership: *m,
			Messages:   msgs,
			Members:    members,
			Billboard:  roomAgent.RoomBillboard,
		})
	}

	result := hud.Build(hud.BuildInput{
		Agent:                agent,
		RecentActions:        recentActions,
		Rooms:                rooms,
		Permissions:          hud.Permissions{CanCreateAgents: agent.CanCreateAgents},
		WarningThresholdPct:  cfg.Agents.WarningThresholdPct,
		CriticalThresholdPct: cfg.Agents.CriticalThresholdPct,
		RoomOverheadReserve:  cfg.Agents.RoomOverheadReserve,
		BaseHUDMetaTokens:    cfg.Agents.BaseHUDMetaTokens,
		Now:                  time.Now().UTC(),
	})
	return result, nil
}

func (e *Engine) buildDeps(agent *model.Agent) action.Deps {
	cfg := e.cfg.Get()
	return action.Deps{
		Agent:      agent,
		OverBudget: agent.OverBudget,
		IsMemberOfRoom: func(roomID string) bool {
			m, err := e.store.GetMembership(agent.ID, roomID)
			return err == nil && m != nil
		},
		SharesRoomWithAgent: func(targetID string) bool {
			mine, err := e.store.ListMembershipsForAgent(agent.ID)
			if err != nil {
				return false
			}
			theirs, err := e.store.ListMembershipsForAgent(targetID)
			if err != nil {
				return false
			}
			rooms := make(map[string]bool, len(mine))
			for _, m := range mine {
				rooms[m.RoomID] = true
			}
			for _, m := range theirs {
				if rooms[m.RoomID] {
					return true
				}
			}
			return false
		},
		TargetAsleep: func(targetID string) bool {
			target, err := e.store.GetAgent(targetID)
			if err != nil || target == nil {
				return false
			}
			return target.IsAsleep(time.Now().UTC())
		},
		ModelAllowed: func(m string) bool {
			for _, allowed := range cfg.Models.Allowed {
				if allowed == m {
					return true
				}
			}
			return false
		},
		DefaultModel: cfg.Models.Default,
	}
}

// applyPending executes every deferred effect produced by pass one of the
// action pipeline: membership changes, room leaves, billboard updates,
// wakes, paced message sends, agent lifecycle changes, sleep, and the
// reaction-driven heartbeat nudge.
func (e *Engine) applyPending(ctx context.Context, agent *model.Agent, pending action.Pending) {
	cfg := e.cfg.Get()

	for _, c := range pending.AttentionChanges {
		m, err := e.store.GetMembership(agent.ID, c.RoomID)
		if err != nil || m == nil {
			continue
		}
		m.AttentionPct = c.Pct
		_ = e.store.SaveMembership(m)
	}

	for _, l := range pending.RoomLeaves {
		if err := e.rooms.Leave(agent.ID, l.RoomID); err != nil {
			e.logger.Warn("orchestrator: leave room", "agent_id", agent.ID, "room_id", l.RoomID, "error", err)
		}
	}

	for _, b := range pending.BillboardSets {
		agent.RoomBillboard = b.Message
	}
	for range pending.BillboardClears {
		agent.RoomBillboard = ""
	}

	for _, targetID := range pending.Wakes {
		target, err := e.store.GetAgent(targetID)
		if err != nil || target == nil {
			continue
		}
		target.SleepUntil = nil
		_ = e.store.SaveAgent(target)
	}

	for _, s := range pending.Sleeps {
		until := s.Until
		agent.SleepUntil = &until
	}

	for _, send := range pending.Messages {
		e.sendMessagePaced(ctx, agent, send)
	}

	for _, create := range pending.AgentCreates {
		_, err := e.rooms.CreateAgent(room.CreateAgentParams{
			Name:              create.Name,
			BackgroundPrompt:  create.BackgroundPrompt,
			Model:             cfg.Models.Default,
			Kind:              model.Kind(create.AgentType),
			InRoomID:          create.InRoomID,
			TokenBudget:       cfg.Agents.TokenBudget,
			KnowledgePct:      cfg.Agents.KnowledgePct,
			RecentActionsPct:  cfg.Agents.RecentActionsPct,
			RoomsPct:          cfg.Agents.RoomsPct,
			RoomWPM:           cfg.Agents.DefaultRoomWPM,
			HeartbeatInterval: cfg.Agents.HeartbeatMin.Duration,
		})
		if err != nil {
			e.logger.Warn("orchestrator: create agent", "agent_id", agent.ID, "name", create.Name, "error", err)
		}
	}

	for _, alter := range pending.AgentAlters {
		target, err := e.store.GetAgent(alter.TargetID)
		if err != nil || target == nil {
			continue
		}
		if alter.Name != "" {
			target.Name = alter.Name
		}
		if alter.BackgroundPrompt != "" {
			target.BackgroundPrompt = alter.BackgroundPrompt
		}
		if alter.Model != "" {
			target.Model = alter.Model
		}
		_ = e.store.SaveAgent(target)
	}

	for _, targetID := range pending.AgentRetires {
		if err := e.rooms.DeleteAgent(targetID); err != nil {
			e.logger.Warn("orchestrator: retire agent", "agent_id", agent.ID, "target_id", targetID, "error", err)
		}
	}

	for _, r := range pending.Reactions {
		e.applyReaction(agent.ID, r)
	}
}

// sendMessagePaced sends a queued message as one or more room messages,
// splitting on blank-line boundaries and pacing each chunk by the earned
// words since the room membership's last response at the room's WPM, per
// spec.md §4.6's message send ordering. The membership's last-sequence,
// last-response-time, and last-response-word-count are updated after each
// chunk so the next send (this tick or a later one) paces off it.
func (e *Engine) sendMessagePaced(ctx context.Context, agent *model.Agent, send action.MessageSend) {
	chunks := splitMessageChunks(send.Content)
	for i, chunk := range chunks {
		membership, err := e.store.GetMembership(agent.ID, send.RoomID)
		if err != nil || membership == nil {
			e.logger.Warn("orchestrator: send message: no membership", "agent_id", agent.ID, "room_id", send.RoomID)
			return
		}

		words := wordCount(chunk)
		wait := typingWait(membership.LastResponseTime, words, agent.RoomWPM)
		if wait > 0 {
			if err := e.rooms.SetStatus(agent.ID, model.StatusTyping); err != nil {
				e.logger.Warn("orchestrator: set typing", "agent_id", agent.ID, "error", err)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		var replyTo *int64
		if i == 0 {
			replyTo = send.ReplyToID
		}
		saved, err := e.rooms.SendMessage(send.RoomID, agent.ID, chunk, replyTo)
		if err != nil {
			e.logger.Warn("orchestrator: send message", "agent_id", agent.ID, "room_id", send.RoomID, "error", err)
			return
		}

		now := time.Now().UTC()
		membership.LastMessageID = saved.Sequence
		membership.LastResponseTime = &now
		membership.LastResponseWordCount = words
		if err := e.store.SaveMembership(membership); err != nil {
			e.logger.Warn("orchestrator: save membership pacing", "agent_id", agent.ID, "room_id", send.RoomID, "error", err)
		}
	}
}

// applyReaction records the reaction and nudges the reacted-to message's
// sender's heartbeat interval: thumbs_up speeds them up, thumbs_down slows
// them down. The only implicit cross-agent scheduling input (spec.md §4.6).
func (e *Engine) applyReaction(reactorID string, r action.Reaction) {
	msgID, err := parseMessageID(r.MessageID)
	if err != nil {
		return
	}
	if err := e.store.SaveReaction(&model.Reaction{
		MessageID: msgID, AgentID: reactorID, Kind: r.Kind, CreatedAt: time.Now().UTC(),
	}); err != nil {
		e.logger.Warn("orchestrator: save reaction", "agent_id", reactorID, "error", err)
		return
	}

	if r.Kind != "thumbs_up" && r.Kind != "thumbs_down" {
		return
	}
	msg, err := e.store.GetMessageByID(msgID)
	if err != nil || msg == nil || msg.SenderID == reactorID {
		return
	}
	sender, err := e.store.GetAgent(msg.SenderID)
	if err != nil || sender == nil {
		return
	}
	if r.Kind == "thumbs_up" {
		sender.HeartbeatInterval = scheduler.NudgeUp(sender.HeartbeatInterval)
	} else {
		sender.HeartbeatInterval = scheduler.NudgeDown(sender.HeartbeatInterval)
	}
	_ = e.store.SaveAgent(sender)
}
