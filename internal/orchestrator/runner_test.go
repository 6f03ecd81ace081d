package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/room"
	"github.com/antigravity-dev/agentroom/internal/store"
)

// fakeProvider is a scripted llmclient.Provider: each call pops the next
// reply off the queue (or repeats the last one once the queue is drained),
// and records every call it received for assertions.
type fakeProvider struct {
	replies []string
	err     error

	calls []struct {
		model, instructions, input, previousResponseID string
	}
}

func (f *fakeProvider) Send(ctx context.Context, model, instructions, input, previousResponseID string) (string, string, int, error) {
	f.calls = append(f.calls, struct {
		model, instructions, input, previousResponseID string
	}{model, instructions, input, previousResponseID})

	if f.err != nil {
		return "", "", 0, f.err
	}

	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	responseID := fmt.Sprintf("resp-%d", len(f.calls))
	return f.replies[idx], responseID, 42, nil
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *room.Service) {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	rooms := room.New(st, logger)

	defaults := room.DefaultAgentDefaults{
		TokenBudget:       8000,
		KnowledgePct:      30,
		RecentActionsPct:  10,
		RoomsPct:          60,
		RoomWPM:           100000, // effectively unthrottled for fast tests
		HeartbeatInterval: time.Second,
	}
	if err := rooms.EnsureArchitect(defaults); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		General: config.General{
			SchedulerMode:  "individual",
			ResponseFormat: "json",
		},
		Agents: config.AgentDefaults{
			TokenBudget:          8000,
			KnowledgePct:         30,
			RecentActionsPct:     10,
			RoomsPct:             60,
			DefaultRoomWPM:       100000,
			RoomWPMMin:           10,
			RoomWPMMax:           200000,
			HeartbeatMin:         config.Duration{Duration: time.Second},
			HeartbeatMax:         config.Duration{Duration: 10 * time.Second},
			WarningThresholdPct:  75,
			CriticalThresholdPct: 90,
			BaseHUDMetaTokens:    2200,
			RoomOverheadReserve:  200,
			RecentActionRingSize: 20,
		},
		Models: config.Models{Default: "claude-sonnet-4-5", Allowed: []string{"claude-sonnet-4-5"}},
	}
	mgr := config.NewManager(cfg)

	engine := New(st, rooms, &fakeProvider{}, mgr, logger)
	return engine, st, rooms
}

func createTestAgent(t *testing.T, rooms *room.Service, name string, canCreate bool) string {
	t.Helper()
	agent, err := rooms.CreateAgent(room.CreateAgentParams{
		Name:              name,
		BackgroundPrompt:  "be helpful",
		Model:             "claude-sonnet-4-5",
		Kind:              "persona",
		TokenBudget:       8000,
		KnowledgePct:      30,
		RecentActionsPct:  10,
		RoomsPct:          60,
		RoomWPM:           100000,
		CanCreateAgents:   canCreate,
		HeartbeatInterval: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return agent.ID
}

func TestTickAppliesKnowledgeAndSendsMessage(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Ada", false)

	fp := &fakeProvider{replies: []string{
		`{"actions":[{"type":"knowledge.set","path":"mood","value":"curious"},` +
			`{"type":"message","room_id":"` + agentID + `","content":"hello room"}]}`,
	}}
	engine.llm = fp

	engine.tick(context.Background(), agentID)

	if len(fp.calls) != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", len(fp.calls))
	}
	if fp.calls[0].model != "claude-sonnet-4-5" {
		t.Errorf("unexpected model sent: %q", fp.calls[0].model)
	}
	if fp.calls[0].previousResponseID != "" {
		t.Errorf("expected empty previous response id on first tick, got %q", fp.calls[0].previousResponseID)
	}

	agent, err := st.GetAgent(agentID)
	if err != nil || agent == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.Status != "idle" {
		t.Errorf("expected agent to settle to idle, got %q", agent.Status)
	}

	doc := agent.SelfConceptJSON
	if !strings.Contains(doc, `"mood":"curious"`) {
		t.Errorf("expected knowledge.set to persist mood=curious, got %s", doc)
	}

	messages, err := st.ListMessagesForRoomSince(agentID, 0)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, m := range messages {
		if m.SenderID == agentID && m.Body == "hello room" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected agent's message to be persisted, got %+v", messages)
	}

	if engine.lastResponseID(agentID) != "resp-1" {
		t.Errorf("expected response id to be tracked, got %q", engine.lastResponseID(agentID))
	}
}

func TestTickChainsPreviousResponseIDAcrossTicks(t *testing.T) {
	engine, _, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Grace", false)

	fp := &fakeProvider{replies: []string{`{"actions":[]}`, `{"actions":[]}`}}
	engine.llm = fp

	engine.tick(context.Background(), agentID)
	engine.tick(context.Background(), agentID)

	if len(fp.calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(fp.calls))
	}
	if fp.calls[1].previousResponseID != "resp-1" {
		t.Errorf("expected second call to chain off first response id, got %q", fp.calls[1].previousResponseID)
	}
}

func TestTickAppliesHeartbeatDecayOnSuccess(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Hopper", false)

	before, err := st.GetAgent(agentID)
	if err != nil {
		t.Fatal(err)
	}
	beforeInterval := before.HeartbeatInterval

	engine.llm = &fakeProvider{replies: []string{`{"actions":[]}`}}
	engine.tick(context.Background(), agentID)

	after, err := st.GetAgent(agentID)
	if err != nil {
		t.Fatal(err)
	}
	if after.HeartbeatInterval <= beforeInterval {
		t.Errorf("expected heartbeat interval to decay upward from %s, got %s", beforeInterval, after.HeartbeatInterval)
	}
}

func TestTickRecordsErrorOutcomeAndStillSettlesOnLLMFailure(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Lovelace", false)

	engine.llm = &fakeProvider{err: fmt.Errorf("provider unavailable")}
	engine.tick(context.Background(), agentID)

	agent, err := st.GetAgent(agentID)
	if err != nil || agent == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.Status != "idle" {
		t.Errorf("expected agent to still settle to idle after a failed call, got %q", agent.Status)
	}

	records, err := st.ListRecentActionsForAgent(agentID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, r := range records {
		if r.Action == "llm.send" && strings.Contains(r.Result, "error") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an llm.send error outcome recorded, got %+v", records)
	}
}

func TestTickSkipsArchitect(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	fp := &fakeProvider{replies: []string{`{"actions":[]}`}}
	engine.llm = fp

	engine.tick(context.Background(), "architect")

	if len(fp.calls) != 0 {
		t.Errorf("expected the Architect to never reach the LLM, got %d calls", len(fp.calls))
	}
}

func TestTickAgentCreateIsGatedByPermission(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Turing", false)

	engine.llm = &fakeProvider{replies: []string{
		`{"actions":[{"type":"agent.create","name":"Spawned","background_prompt":"help out"}]}`,
	}}
	engine.tick(context.Background(), agentID)

	agents, err := st.ListAgents()
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range agents {
		if a.Name == "Spawned" {
			t.Fatalf("expected agent.create to be blocked without CanCreateAgents, but found %+v", a)
		}
	}

	records, err := st.ListRecentActionsForAgent(agentID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, r := range records {
		if r.Action == "agent.create" && strings.Contains(r.Result, "error") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an agent.create error outcome recorded, got %+v", records)
	}
}

func TestTickAgentCreateSucceedsWithPermission(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Babbage", true)

	engine.llm = &fakeProvider{replies: []string{
		`{"actions":[{"type":"agent.create","name":"Spawned","background_prompt":"help out"}]}`,
	}}
	engine.tick(context.Background(), agentID)

	agents, err := st.ListAgents()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range agents {
		if a.Name == "Spawned" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected agent.create to succeed when CanCreateAgents is set, agents=%+v", agents)
	}
}

func TestTickReactionNudgesSenderHeartbeat(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	senderID := createTestAgent(t, rooms, "Sender", false)
	reactorID := createTestAgent(t, rooms, "Reactor", false)

	if _, err := rooms.Join(reactorID, senderID); err != nil {
		t.Fatal(err)
	}
	msg, err := rooms.SendMessage(senderID, senderID, "look at this", nil)
	if err != nil {
		t.Fatal(err)
	}

	before, err := st.GetAgent(senderID)
	if err != nil {
		t.Fatal(err)
	}
	beforeInterval := before.HeartbeatInterval

	engine.llm = &fakeProvider{replies: []string{
		fmt.Sprintf(`{"actions":[{"type":"message.react","message_id":"%d","reaction":"thumbs_down"}]}`, msg.ID),
	}}
	engine.tick(context.Background(), reactorID)

	after, err := st.GetAgent(senderID)
	if err != nil {
		t.Fatal(err)
	}
	if after.HeartbeatInterval <= beforeInterval {
		t.Errorf("expected thumbs_down to slow the sender down from %s, got %s", beforeInterval, after.HeartbeatInterval)
	}

	reactions, err := st.ListReactionsForMessage(msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reactions) != 1 || reactions[0].Kind != "thumbs_down" {
		t.Errorf("expected one thumbs_down reaction recorded, got %+v", reactions)
	}
}

func TestTickWakeRequiresTargetAsleep(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	wakerID := createTestAgent(t, rooms, "Waker", false)
	targetID := createTestAgent(t, rooms, "Sleeper", false)

	if _, err := rooms.Join(wakerID, targetID); err != nil {
		t.Fatal(err)
	}

	engine.llm = &fakeProvider{replies: []string{
		fmt.Sprintf(`{"actions":[{"type":"agent.wake","agent_id":"%s"}]}`, targetID),
	}}
	engine.tick(context.Background(), wakerID)

	target, err := st.GetAgent(targetID)
	if err != nil || target == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if target.SleepUntil != nil {
		t.Fatalf("expected wake against an awake target to be rejected, but sleep_until is %v", target.SleepUntil)
	}

	records, err := st.ListRecentActionsForAgent(wakerID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, r := range records {
		if r.Action == "agent.wake" && strings.Contains(r.Result, "not asleep") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an agent.wake error outcome for an awake target, got %+v", records)
	}
}

func TestTickWakeClearsSleepUntilWhenTargetAsleep(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	wakerID := createTestAgent(t, rooms, "Waker", false)
	targetID := createTestAgent(t, rooms, "Sleeper", false)

	if _, err := rooms.Join(wakerID, targetID); err != nil {
		t.Fatal(err)
	}

	target, err := st.GetAgent(targetID)
	if err != nil || target == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	until := time.Now().UTC().Add(time.Hour)
	target.SleepUntil = &until
	if err := st.SaveAgent(target); err != nil {
		t.Fatal(err)
	}

	engine.llm = &fakeProvider{replies: []string{
		fmt.Sprintf(`{"actions":[{"type":"agent.wake","agent_id":"%s"}]}`, targetID),
	}}
	engine.tick(context.Background(), wakerID)

	after, err := st.GetAgent(targetID)
	if err != nil || after == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if after.SleepUntil != nil {
		t.Errorf("expected wake to clear sleep_until on a sleeping target, still %v", after.SleepUntil)
	}
}

func TestTickMessageSplitsOnBlankLinesAndUpdatesMembershipPacing(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Curie", false)

	reply := fmt.Sprintf(`{"actions":[{"type":"message","room_id":"%s","content":"first paragraph here\n\nsecond paragraph follows"}]}`, agentID)
	engine.llm = &fakeProvider{replies: []string{reply}}
	engine.tick(context.Background(), agentID)

	messages, err := st.ListMessagesForRoomSince(agentID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected the blank-line-separated reply to send as two messages, got %d: %+v", len(messages), messages)
	}
	if messages[0].Body != "first paragraph here" || messages[1].Body != "second paragraph follows" {
		t.Errorf("unexpected chunk bodies: %+v", messages)
	}

	membership, err := st.GetMembership(agentID, agentID)
	if err != nil || membership == nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if membership.LastResponseTime == nil {
		t.Fatal("expected LastResponseTime to be set after a paced send")
	}
	if membership.LastResponseWordCount != 3 {
		t.Errorf("expected LastResponseWordCount to reflect the last chunk (3 words), got %d", membership.LastResponseWordCount)
	}
	if membership.LastMessageID != messages[1].Sequence {
		t.Errorf("expected LastMessageID to track the final chunk's sequence, got %d want %d", membership.LastMessageID, messages[1].Sequence)
	}
}

func TestTickMalformedReplyYieldsNoActionsAndStillSettles(t *testing.T) {
	engine, st, rooms := newTestEngine(t)
	agentID := createTestAgent(t, rooms, "Dijkstra", false)

	engine.llm = &fakeProvider{replies: []string{"not json at all"}}
	engine.tick(context.Background(), agentID)

	agent, err := st.GetAgent(agentID)
	if err != nil || agent == nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.Status != "idle" {
		t.Errorf("expected agent to settle cleanly on malformed reply, got %q", agent.Status)
	}
}

