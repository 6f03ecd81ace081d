package store

import (
	"testing"
	"time"

	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetAgentRoundTrip(t *testing.T) {
	s := openTest(t)
	a := &model.Agent{
		ID: "3", Name: "Watcher", Kind: model.KindPersona, Model: "claude-sonnet-4-5",
		TokenBudget: 8000, KnowledgePct: 30, RecentActionsPct: 10, RoomsPct: 60,
		HeartbeatInterval: 3 * time.Second, SelfConceptJSON: `{"mood":"curious"}`,
	}
	require.NoError(t, s.SaveAgent(a))

	got, err := s.GetAgent("3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Watcher", got.Name)
	assert.Equal(t, model.KindPersona, got.Kind)
	assert.Equal(t, 3*time.Second, got.HeartbeatInterval)
	assert.Equal(t, `{"mood":"curious"}`, got.SelfConceptJSON)
}

func TestGetAgentMissingReturnsNilNil(t *testing.T) {
	s := openTest(t)
	got, err := s.GetAgent("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveAgentUpsertsOnConflict(t *testing.T) {
	s := openTest(t)
	a := &model.Agent{ID: "3", Name: "Watcher", TokenBudget: 8000}
	require.NoError(t, s.SaveAgent(a))

	a.Name = "Renamed"
	a.TokenBudget = 9000
	require.NoError(t, s.SaveAgent(a))

	got, err := s.GetAgent("3")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 9000, got.TokenBudget)
}

func TestListAIAgentsExcludesArchitect(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: model.ArchitectID, Name: "Architect"}))
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))

	ai, err := s.ListAIAgents()
	require.NoError(t, err)
	require.Len(t, ai, 1)
	assert.Equal(t, "3", ai[0].ID)

	all, err := s.ListAgents()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteAgentCascadesMembershipsAndMessages(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "9", Name: "Other"}))
	require.NoError(t, s.SaveMembership(&model.Membership{AgentID: "9", RoomID: "3", JoinedAt: time.Now()}))
	_, err := s.SaveMessage(&model.Message{RoomID: "3", SenderID: "9", Body: "hi", Sequence: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAgent("3"))

	m, err := s.GetMembership("9", "3")
	require.NoError(t, err)
	assert.Nil(t, m)

	msgs, err := s.ListMessagesForRoom("3")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMembershipSaveAndListRoundTrip(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "9", Name: "Other"}))

	now := time.Now()
	require.NoError(t, s.SaveMembership(&model.Membership{
		AgentID: "9", RoomID: "3", JoinedAt: now, AttentionPct: 50, IsDynamic: true,
	}))

	members, err := s.ListMembersOfRoom("3")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "9", members[0].AgentID)
	assert.True(t, members[0].IsDynamic)

	memberships, err := s.ListMembershipsForAgent("9")
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, "3", memberships[0].RoomID)
}

func TestMembershipUpsertUpdatesAttention(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "9", Name: "Other"}))

	m := &model.Membership{AgentID: "9", RoomID: "3", JoinedAt: time.Now(), AttentionPct: 50}
	require.NoError(t, s.SaveMembership(m))

	m.AttentionPct = 75
	require.NoError(t, s.SaveMembership(m))

	got, err := s.GetMembership("9", "3")
	require.NoError(t, err)
	assert.Equal(t, 75, got.AttentionPct)
}

func TestDeleteMembership(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "9", Name: "Other"}))
	require.NoError(t, s.SaveMembership(&model.Membership{AgentID: "9", RoomID: "3", JoinedAt: time.Now()}))

	require.NoError(t, s.DeleteMembership("9", "3"))

	got, err := s.GetMembership("9", "3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNextSequenceStartsAtOneAndIncrements(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))

	seq, err := s.NextSequence("3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	_, err = s.SaveMessage(&model.Message{RoomID: "3", SenderID: "3", Body: "first", Sequence: seq, CreatedAt: time.Now()})
	require.NoError(t, err)

	seq2, err := s.NextSequence("3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq2)
}

func TestListMessagesForRoomSinceFiltersOlder(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))

	for i := int64(1); i <= 3; i++ {
		_, err := s.SaveMessage(&model.Message{RoomID: "3", SenderID: "3", Body: "msg", Sequence: i, CreatedAt: time.Now()})
		require.NoError(t, err)
	}

	msgs, err := s.ListMessagesForRoomSince("3", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[0].Sequence)
	assert.Equal(t, int64(3), msgs[1].Sequence)
}

func TestClearMessagesForRoom(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	_, err := s.SaveMessage(&model.Message{RoomID: "3", SenderID: "3", Body: "msg", Sequence: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.ClearMessagesForRoom("3"))

	msgs, err := s.ListMessagesForRoom("3")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSaveReactionIsIdempotent(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	msg, err := s.SaveMessage(&model.Message{RoomID: "3", SenderID: "3", Body: "hi", Sequence: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	react := &model.Reaction{MessageID: msg.ID, AgentID: "9", Kind: "thumbsup", CreatedAt: time.Now()}
	require.NoError(t, s.SaveReaction(react))
	require.NoError(t, s.SaveReaction(react))

	reactions, err := s.ListReactionsForMessage(msg.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 1)
}

func TestGetMessageByIDRoundTrip(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))
	saved, err := s.SaveMessage(&model.Message{RoomID: "3", SenderID: "3", Body: "hi", Sequence: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	got, err := s.GetMessageByID(saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Body)

	missing, err := s.GetMessageByID(saved.ID + 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveActionRecordTrimsRingToSize(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveAgent(&model.Agent{ID: "3", Name: "Watcher"}))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveActionRecord(&model.ActionRecord{
			AgentID: "3", Action: "message", Summary: "n", Result: "ok", CreatedAt: time.Now(),
		}, 3))
	}

	records, err := s.ListRecentActionsForAgent("3")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
