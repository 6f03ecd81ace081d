// Package room implements the Room Service: agent lifecycle (agents are
// rooms) and membership management, with synchronous callback fan-out on
// membership, status, and room changes. Grounded on the teacher's service
// construction pattern (func New(cfg, store, logger) *Thing) throughout
// internal/chief and internal/scheduler.
package room

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/store"
	"github.com/google/uuid"
)

// SystemSenderID marks messages emitted by the Room Service itself rather
// than by an agent.
const SystemSenderID = "system"

// Listener receives synchronous notifications of room-affecting events.
type Listener interface {
	OnMembershipChanged(agentID, roomID string)
	OnStatusChanged(agentID string, status model.Status)
	OnRoomChanged(roomID string)
}

// Service is the Room Service: agent creation/deletion and membership
// join/leave, each agent doubling as the room it owns.
type Service struct {
	store     *store.Store
	logger    *slog.Logger
	listeners []Listener
}

// New builds a Room Service over the given store.
func New(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// AddListener registers a listener for membership/status/room events.
func (svc *Service) AddListener(l Listener) {
	svc.listeners = append(svc.listeners, l)
}

func (svc *Service) notifyMembership(agentID, roomID string) {
	for _, l := range svc.listeners {
		l.OnMembershipChanged(agentID, roomID)
	}
}

func (svc *Service) notifyStatus(agentID string, status model.Status) {
	for _, l := range svc.listeners {
		l.OnStatusChanged(agentID, status)
	}
}

func (svc *Service) notifyRoom(roomID string) {
	for _, l := range svc.listeners {
		l.OnRoomChanged(roomID)
	}
}

// CreateAgentParams describes a new agent to persist.
type CreateAgentParams struct {
	Name             string
	BackgroundPrompt string
	Model            string
	Kind             model.Kind
	InRoomID         string // optional: also join this room on creation
	TokenBudget      int
	KnowledgePct     int
	RecentActionsPct int
	RoomsPct         int
	RoomWPM          int
	CanCreateAgents  bool
	HeartbeatInterval time.Duration
}

// CreateAgent persists a new agent, creates its self-membership (attention
// 100 if solo, 50 if also joining another room), optionally joins in_room
// at attention 50, and emits a system "has joined" message into that room.
func (svc *Service) CreateAgent(p CreateAgentParams) (*model.Agent, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	agent := &model.Agent{
		ID:                id,
		Name:              p.Name,
		BackgroundPrompt:  p.BackgroundPrompt,
		Kind:              p.Kind,
		Model:             p.Model,
		Status:            model.StatusIdle,
		HeartbeatInterval: p.HeartbeatInterval,
		TokenBudget:       p.TokenBudget,
		KnowledgePct:      p.KnowledgePct,
		RecentActionsPct:  p.RecentActionsPct,
		RoomsPct:          p.RoomsPct,
		RoomWPM:           p.RoomWPM,
		CanCreateAgents:   p.CanCreateAgents,
		SelfConceptJSON:   "{}",
		CreatedAt:         now,
	}
	if err := svc.store.SaveAgent(agent); err != nil {
		return nil, fmt.Errorf("room: create agent %s: %w", p.Name, err)
	}

	selfAttention := 100
	if p.InRoomID != "" {
		selfAttention = 50
	}
	if err := svc.store.SaveMembership(&model.Membership{
		AgentID: id, RoomID: id, JoinedAt: now, AttentionPct: selfAttention, IsSelfRoom: true,
	}); err != nil {
		return nil, fmt.Errorf("room: create self-membership for %s: %w", id, err)
	}
	svc.notifyMembership(id, id)

	if p.InRoomID != "" {
		tail, err := svc.store.NextSequence(p.InRoomID)
		if err != nil {
			return nil, fmt.Errorf("room: snapshot tail of %s: %w", p.InRoomID, err)
		}
		if err := svc.store.SaveMembership(&model.Membership{
			AgentID: id, RoomID: p.InRoomID, JoinedAt: now, AttentionPct: 50, LastMessageID: tail - 1,
		}); err != nil {
			return nil, fmt.Errorf("room: join %s to %s: %w", id, p.InRoomID, err)
		}
		svc.notifyMembership(id, p.InRoomID)

		if err := svc.emitSystemMessage(p.InRoomID, fmt.Sprintf("%s has joined", p.Name)); err != nil {
			return nil, err
		}
	}

	return agent, nil
}

// Join adds an agent to a room. Idempotent: an existing membership is
// returned unchanged. The membership snapshots the room's current tail
// sequence so the HUD never replays pre-join history.
func (svc *Service) Join(agentID, roomID string) (*model.Membership, error) {
	existing, err := svc.store.GetMembership(agentID, roomID)
	if err != nil {
		return nil, fmt.Errorf("room: join lookup %s/%s: %w", agentID, roomID, err)
	}
	if existing != nil {
		return existing, nil
	}

	tail, err := svc.store.NextSequence(roomID)
	if err != nil {
		return nil, fmt.Errorf("room: join snapshot tail of %s: %w", roomID, err)
	}

	m := &model.Membership{
		AgentID: agentID, RoomID: roomID, JoinedAt: time.Now().UTC(),
		LastMessageID: tail - 1, IsDynamic: true,
	}
	if err := svc.store.SaveMembership(m); err != nil {
		return nil, fmt.Errorf("room: join %s/%s: %w", agentID, roomID, err)
	}
	svc.notifyMembership(agentID, roomID)

	agent, err := svc.store.GetAgent(agentID)
	if err != nil {
		return nil, fmt.Errorf("room: join lookup agent %s: %w", agentID, err)
	}
	name := agentID
	if agent != nil {
		name = agent.Name
	}
	if err := svc.emitSystemMessage(roomID, fmt.Sprintf("%s has joined", name)); err != nil {
		return nil, err
	}

	return m, nil
}

// Leave removes an agent from a room. Forbidden for an agent's own self-room.
func (svc *Service) Leave(agentID, roomID string) error {
	if agentID == roomID {
		return fmt.Errorf("room: leave: %s cannot leave its own self-room", agentID)
	}

	if err := svc.store.DeleteMembership(agentID, roomID); err != nil {
		return fmt.Errorf("room: leave %s/%s: %w", agentID, roomID, err)
	}
	svc.notifyMembership(agentID, roomID)

	agent, err := svc.store.GetAgent(agentID)
	if err != nil {
		return fmt.Errorf("room: leave lookup agent %s: %w", agentID, err)
	}
	name := agentID
	if agent != nil {
		name = agent.Name
	}
	return svc.emitSystemMessage(roomID, fmt.Sprintf("%s has left", name))
}

// DeleteAgent removes an agent and cascades to its self-room memberships,
// other agents' memberships of that room, and its own memberships
// elsewhere. Forbidden for the Architect.
func (svc *Service) DeleteAgent(id string) error {
	if id == model.ArchitectID {
		return fmt.Errorf("room: delete agent: the Architect cannot be deleted")
	}
	if err := svc.store.DeleteAgent(id); err != nil {
		return fmt.Errorf("room: delete agent %s: %w", id, err)
	}
	svc.notifyRoom(id)
	svc.notifyStatus(id, model.StatusRetired)
	return nil
}

// SetStatus updates an agent's scheduling status and fans the change out.
func (svc *Service) SetStatus(id string, status model.Status) error {
	agent, err := svc.store.GetAgent(id)
	if err != nil {
		return fmt.Errorf("room: set status lookup %s: %w", id, err)
	}
	if agent == nil {
		return fmt.Errorf("room: set status: agent %s not found", id)
	}
	agent.Status = status
	if err := svc.store.SaveAgent(agent); err != nil {
		return fmt.Errorf("room: set status save %s: %w", id, err)
	}
	svc.notifyStatus(id, status)
	return nil
}

// SendMessage posts an agent-authored message into a room and fans out the
// room-change notification. Membership/permission checks happen upstream in
// the action executor; this is pure persistence plus notification.
// sender_name is denormalized from the sender's current display name at
// send time, mirroring room_service.py's send_message.
func (svc *Service) SendMessage(roomID, senderID, content string, replyToID *int64) (*model.Message, error) {
	senderName := senderID
	if agent, err := svc.store.GetAgent(senderID); err == nil && agent != nil {
		senderName = agent.Name
	}
	seq, err := svc.store.NextSequence(roomID)
	if err != nil {
		return nil, fmt.Errorf("room: message sequence for %s: %w", roomID, err)
	}
	saved, err := svc.store.SaveMessage(&model.Message{
		RoomID: roomID, SenderID: senderID, SenderName: senderName, Body: content, Type: "text", ReplyToID: replyToID,
		Sequence: seq, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("room: send message in %s: %w", roomID, err)
	}
	svc.notifyRoom(roomID)
	return saved, nil
}

// emitSystemMessage appends a system message (type=system, e.g. a join or
// leave notice) to a room and fans out the room-change notification.
func (svc *Service) emitSystemMessage(roomID, body string) error {
	seq, err := svc.store.NextSequence(roomID)
	if err != nil {
		return fmt.Errorf("room: system message sequence for %s: %w", roomID, err)
	}
	_, err = svc.store.SaveMessage(&model.Message{
		RoomID: roomID, SenderID: SystemSenderID, SenderName: "System", Body: body, Type: "system",
		Sequence: seq, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("room: emit system message in %s: %w", roomID, err)
	}
	svc.notifyRoom(roomID)
	return nil
}
