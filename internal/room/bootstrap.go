package room

import (
	"fmt"
	"time"

	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/model"
)

// DefaultAgentDefaults are applied to bootstrap agents when the caller
// doesn't override them (e.g. persona seeds, which only specify identity).
type DefaultAgentDefaults struct {
	TokenBudget       int
	KnowledgePct      int
	RecentActionsPct  int
	RoomsPct          int
	RoomWPM           int
	HeartbeatInterval time.Duration
}

// EnsureArchitect creates the singleton Architect agent if it doesn't
// already exist. Mirrors room_service.py's _ensure_architect.
func (svc *Service) EnsureArchitect(defaults DefaultAgentDefaults) error {
	existing, err := svc.store.GetArchitect()
	if err != nil {
		return fmt.Errorf("room: ensure architect: %w", err)
	}
	if existing != nil {
		return nil
	}

	architect := &model.Agent{
		ID:                model.ArchitectID,
		Name:              "Architect",
		BackgroundPrompt:  "You are the Architect, a singleton coordinator agent excluded from the normal polling cycle.",
		Kind:              model.KindBot,
		Status:            model.StatusIdle,
		HeartbeatInterval: defaults.HeartbeatInterval,
		TokenBudget:       defaults.TokenBudget,
		KnowledgePct:      defaults.KnowledgePct,
		RecentActionsPct:  defaults.RecentActionsPct,
		RoomsPct:          defaults.RoomsPct,
		RoomWPM:           defaults.RoomWPM,
		CanCreateAgents:   true,
		SelfConceptJSON:   "{}",
		CreatedAt:         time.Now().UTC(),
	}
	if err := svc.store.SaveAgent(architect); err != nil {
		return fmt.Errorf("room: ensure architect save: %w", err)
	}
	if err := svc.store.SaveMembership(&model.Membership{
		AgentID: model.ArchitectID, RoomID: model.ArchitectID, JoinedAt: architect.CreatedAt,
		AttentionPct: 100, IsSelfRoom: true,
	}); err != nil {
		return fmt.Errorf("room: ensure architect self-membership: %w", err)
	}
	return nil
}

// EnsurePersonaSeeds creates any persona-seed agents that don't already
// exist by name, optionally joining each into a named room. Mirrors
// room_service.py's _ensure_self_room_memberships bootstrap path.
func (svc *Service) EnsurePersonaSeeds(seeds []config.PersonaSeed, defaults DefaultAgentDefaults) error {
	if len(seeds) == 0 {
		return nil
	}

	existingByName := make(map[string]bool)
	agents, err := svc.store.ListAIAgents()
	if err != nil {
		return fmt.Errorf("room: ensure persona seeds list: %w", err)
	}
	for _, a := range agents {
		existingByName[a.Name] = true
	}

	created := make(map[string]string) // name -> id
	for _, seed := range seeds {
		if existingByName[seed.Name] {
			continue
		}

		kind := model.Kind(seed.Kind)
		if kind == "" {
			kind = model.KindPersona
		}

		var inRoomID string
		if seed.JoinRoomName != "" {
			if id, ok := created[seed.JoinRoomName]; ok {
				inRoomID = id
			}
		}

		agent, err := svc.CreateAgent(CreateAgentParams{
			Name:              seed.Name,
			BackgroundPrompt:  seed.BackgroundPrompt,
			Model:             seed.Model,
			Kind:              kind,
			InRoomID:          inRoomID,
			CanCreateAgents:   seed.MayCreateAgents,
			TokenBudget:       defaults.TokenBudget,
			KnowledgePct:      defaults.KnowledgePct,
			RecentActionsPct:  defaults.RecentActionsPct,
			RoomsPct:          defaults.RoomsPct,
			RoomWPM:           defaults.RoomWPM,
			HeartbeatInterval: defaults.HeartbeatInterval,
		})
		if err != nil {
			return fmt.Errorf("room: ensure persona seed %s: %w", seed.Name, err)
		}
		created[seed.Name] = agent.ID
	}
	return nil
}
