package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/scheduler"
	"github.com/antigravity-dev/agentroom/internal/store"
)

// Source adapts the store to scheduler.AgentSource: every non-Architect,
// non-asleep agent with at least one membership is pollable. The Architect
// is excluded from the normal polling cycle per spec.md §4.7.
type Source struct {
	store *store.Store
}

// NewSource builds a scheduler.AgentSource backed by the store.
func NewSource(s *store.Store) *Source {
	return &Source{store: s}
}

func (s *Source) PollableAgents(ctx context.Context) ([]scheduler.PollableAgent, error) {
	agents, err := s.store.ListAIAgents()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list pollable agents: %w", err)
	}

	now := time.Now().UTC()
	out := make([]scheduler.PollableAgent, 0, len(agents))
	for _, a := range agents {
		if a.Status == model.StatusRetired {
			continue
		}
		if a.IsAsleep(now) {
			continue
		}
		out = append(out, scheduler.PollableAgent{
			ID:                a.ID,
			HeartbeatInterval: a.HeartbeatInterval,
			Model:             a.Model,
		})
	}
	return out, nil
}
