package room

import (
	"testing"

	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	memberships [][2]string
	statuses    []string
	rooms       []string
}

func (l *recordingListener) OnMembershipChanged(agentID, roomID string) {
	l.memberships = append(l.memberships, [2]string{agentID, roomID})
}
func (l *recordingListener) OnStatusChanged(agentID string, status model.Status) {
	l.statuses = append(l.statuses, agentID+":"+string(status))
}
func (l *recordingListener) OnRoomChanged(roomID string) {
	l.rooms = append(l.rooms, roomID)
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func TestCreateAgentSoloGetsFullAttention(t *testing.T) {
	svc, s := newTestService(t)
	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher", TokenBudget: 8000})
	require.NoError(t, err)

	m, err := s.GetMembership(agent.ID, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 100, m.AttentionPct)
	assert.True(t, m.IsSelfRoom)
}

func TestCreateAgentJoiningRoomGetsHalfAttentionAndEmitsMessage(t *testing.T) {
	svc, s := newTestService(t)
	room, err := svc.CreateAgent(CreateAgentParams{Name: "Hub"})
	require.NoError(t, err)

	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher", InRoomID: room.ID})
	require.NoError(t, err)

	self, err := s.GetMembership(agent.ID, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, self.AttentionPct)

	joined, err := s.GetMembership(agent.ID, room.ID)
	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, 50, joined.AttentionPct)

	msgs, err := s.ListMessagesForRoom(room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "has joined")
}

func TestJoinIsIdempotent(t *testing.T) {
	svc, s := newTestService(t)
	room, err := svc.CreateAgent(CreateAgentParams{Name: "Hub"})
	require.NoError(t, err)
	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)

	m1, err := svc.Join(agent.ID, room.ID)
	require.NoError(t, err)
	m2, err := svc.Join(agent.ID, room.ID)
	require.NoError(t, err)
	assert.Equal(t, m1.JoinedAt, m2.JoinedAt)

	msgs, err := s.ListMessagesForRoom(room.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "second join must not emit a duplicate system message")
}

func TestJoinSnapshotsTailSoHistoryIsNotReplayed(t *testing.T) {
	svc, s := newTestService(t)
	room, err := svc.CreateAgent(CreateAgentParams{Name: "Hub"})
	require.NoError(t, err)

	seq, err := s.NextSequence(room.ID)
	require.NoError(t, err)
	_, err = s.SaveMessage(&model.Message{RoomID: room.ID, SenderID: room.ID, Body: "before", Sequence: seq})
	require.NoError(t, err)

	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Latecomer"})
	require.NoError(t, err)
	m, err := svc.Join(agent.ID, room.ID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, m.LastMessageID, seq)
}

func TestLeaveSelfRoomForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)

	err = svc.Leave(agent.ID, agent.ID)
	assert.Error(t, err)
}

func TestLeaveDeletesMembershipAndEmitsMessage(t *testing.T) {
	svc, s := newTestService(t)
	room, err := svc.CreateAgent(CreateAgentParams{Name: "Hub"})
	require.NoError(t, err)
	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)
	_, err = svc.Join(agent.ID, room.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(agent.ID, room.ID))

	m, err := s.GetMembership(agent.ID, room.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	msgs, err := s.ListMessagesForRoom(room.ID)
	require.NoError(t, err)
	assert.Contains(t, msgs[len(msgs)-1].Body, "has left")
}

func TestDeleteArchitectForbidden(t *testing.T) {
	svc, s := newTestService(t)
	require.NoError(t, svc.EnsureArchitect(DefaultAgentDefaults{}))

	err := svc.DeleteAgent(model.ArchitectID)
	assert.Error(t, err)

	architect, err := s.GetArchitect()
	require.NoError(t, err)
	assert.NotNil(t, architect)
}

func TestDeleteAgentCascadesMemberships(t *testing.T) {
	svc, s := newTestService(t)
	room, err := svc.CreateAgent(CreateAgentParams{Name: "Hub"})
	require.NoError(t, err)
	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)
	_, err = svc.Join(agent.ID, room.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAgent(room.ID))

	m, err := s.GetMembership(agent.ID, room.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestListenersReceiveSynchronousCallbacks(t *testing.T) {
	svc, _ := newTestService(t)
	l := &recordingListener{}
	svc.AddListener(l)

	agent, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)

	assert.NotEmpty(t, l.memberships)
	require.NoError(t, svc.SetStatus(agent.ID, model.StatusThinking))
	assert.Contains(t, l.statuses, agent.ID+":thinking")
}

func TestEnsurePersonaSeedsSkipsExistingByName(t *testing.T) {
	svc, s := newTestService(t)
	_, err := svc.CreateAgent(CreateAgentParams{Name: "Watcher"})
	require.NoError(t, err)

	err = svc.EnsurePersonaSeeds([]config.PersonaSeed{
		{Name: "Watcher", BackgroundPrompt: "duplicate"},
		{Name: "Newcomer", BackgroundPrompt: "fresh"},
	}, DefaultAgentDefaults{TokenBudget: 8000})
	require.NoError(t, err)

	agents, err := s.ListAIAgents()
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}
