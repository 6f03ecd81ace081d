// Package action implements the two-phase action executor: gate checks,
// per-action validation, immediate knowledge mutation, and a queued
// second pass for everything that touches another aggregate (messages,
// memberships, agent lifecycle, sleep, billboard, wake, reactions).
// Grounded on hud_service.py's apply_actions/_process_pending_actions and
// spec.md §4.6.
package action

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-dev/agentroom/internal/knowledge"
	"github.com/antigravity-dev/agentroom/internal/model"
)

// Outcome is what one action recorded on the recent-action ring.
type Outcome struct {
	Action  string
	Summary string
	Result  string // "ok", "queued", or "error: ..."
}

func ok(action, summary string) Outcome    { return Outcome{Action: action, Summary: summary, Result: "ok"} }
func queued(action, summary string) Outcome { return Outcome{Action: action, Summary: summary, Result: "queued"} }
func errOutcome(action, summary, msg string) Outcome {
	return Outcome{Action: action, Summary: summary, Result: "error: " + msg}
}

// Pending is the set of deferred effects produced by pass one and
// consumed by pass two, replacing the source's _pending_* attribute bag
// (§9 design note) with an explicit, immutable-between-passes value.
type Pending struct {
	AttentionChanges []AttentionChange
	RoomLeaves       []RoomLeave
	BillboardSets    []BillboardSet
	BillboardClears  []string // agent ids whose billboard to clear
	Wakes            []string // target agent ids
	Messages         []MessageSend
	AgentCreates     []AgentCreate
	AgentAlters      []AgentAlter
	AgentRetires     []string // target agent ids
	Sleeps           []Sleep
	Reactions        []Reaction
}

type AttentionChange struct {
	RoomID string
	Pct    int
}

type RoomLeave struct {
	RoomID string
}

type BillboardSet struct {
	Message string
}

type MessageSend struct {
	RoomID    string
	Content   string
	ReplyToID *int64
}

type AgentCreate struct {
	Name             string
	BackgroundPrompt string
	AgentType        string
	InRoomID         string
}

type AgentAlter struct {
	TargetID         string
	Name             string
	BackgroundPrompt string
	Model            string
}

type Sleep struct {
	Until time.Time
}

type Reaction struct {
	MessageID string
	Kind      string
}

// Deps is the context the executor needs to validate actions against the
// acting agent's permissions and room memberships. Agent is updated in place
// by the room.wpm and identity.name actions.
type Deps struct {
	Agent               *model.Agent
	OverBudget          bool
	SharesRoomWithAgent func(targetAgentID string) bool
	IsMemberOfRoom      func(roomID string) bool
	TargetAsleep        func(targetAgentID string) bool
	ModelAllowed        func(model string) bool
	DefaultModel        string
}

// Result is the outcome of applying one parsed reply's action list.
type Result struct {
	Outcomes []Outcome
	Pending  Pending
	// Document is the agent's knowledge document after in-place mutation.
	Document *knowledge.Document
}

// Apply runs the two-phase pipeline over actions in order, mutating a
// knowledge document copy in place (pass one) and accumulating a Pending
// value for pass two. It never panics: every malformed or unauthorized
// action yields an error Outcome instead of aborting the rest of the list.
func Apply(deps Deps, doc *knowledge.Document, actions []map[string]any) Result {
	res := Result{Document: doc}

	for _, raw := range actions {
		actionType, _ := raw["type"].(string)
		if actionType == "" {
			actionType, _ = raw["action"].(string)
		}

		if deps.OverBudget && !isKnowledgeAction(actionType) {
			res.Outcomes = append(res.Outcomes, errOutcome(actionType, summarize(actionType, raw), "BLOCKED - over budget"))
			continue
		}

		outcome := dispatch(deps, doc, &res.Pending, actionType, raw)
		res.Outcomes = append(res.Outcomes, outcome)
	}

	return res
}

func isKnowledgeAction(actionType string) bool {
	switch actionType {
	case "knowledge.set", "knowledge.delete", "knowledge.append":
		return true
	default:
		return false
	}
}

func dispatch(deps Deps, doc *knowledge.Document, pending *Pending, actionType string, raw map[string]any) Outcome {
	summary := summarize(actionType, raw)

	switch actionType {
	case "knowledge.set":
		path, _ := raw["path"].(string)
		value := raw["value"]
		if path == "" {
			return errOutcome(actionType, summary, "path is required")
		}
		if !doc.Set(path, value) {
			return errOutcome(actionType, summary, "cannot set through a non-map intermediate")
		}
		return ok(actionType, summary)

	case "knowledge.delete":
		path, _ := raw["path"].(string)
		if path == "" {
			return errOutcome(actionType, summary, "path is required")
		}
		if !doc.Delete(path) {
			return errOutcome(actionType, summary, "no value at path")
		}
		return ok(actionType, summary)

	case "knowledge.append":
		path, _ := raw["path"].(string)
		value := raw["value"]
		if path == "" {
			return errOutcome(actionType, summary, "path is required")
		}
		if !doc.Append(path, value) {
			return errOutcome(actionType, summary, "cannot append through a non-map intermediate")
		}
		return ok(actionType, summary)

	case "message":
		roomID, _ := raw["room_id"].(string)
		content, _ := raw["content"].(string)
		if roomID == "" || content == "" {
			return errOutcome(actionType, summary, "room_id and content are required")
		}
		if deps.IsMemberOfRoom != nil && !deps.IsMemberOfRoom(roomID) {
			return errOutcome(actionType, summary, "not a member of room "+roomID)
		}
		pending.Messages = append(pending.Messages, MessageSend{RoomID: roomID, Content: content})
		return queued(actionType, summary)

	case "message.reply":
		roomID, _ := raw["room_id"].(string)
		content, _ := raw["message"].(string)
		msgID := toInt64(raw["message_id"])
		if roomID == "" || content == "" {
			return errOutcome(actionType, summary, "room_id and message are required")
		}
		if deps.IsMemberOfRoom != nil && !deps.IsMemberOfRoom(roomID) {
			return errOutcome(actionType, summary, "not a member of room "+roomID)
		}
		pending.Messages = append(pending.Messages, MessageSend{RoomID: roomID, Content: content, ReplyToID: msgID})
		return queued(actionType, summary)

	case "message.react":
		msgID, _ := raw["message_id"].(string)
		reaction, _ := raw["reaction"].(string)
		if msgID == "" || !validReaction(reaction) {
			return errOutcome(actionType, summary, "message_id and a valid reaction are required")
		}
		pending.Reactions = append(pending.Reactions, Reaction{MessageID: msgID, Kind: reaction})
		return queued(actionType, summary)

	case "room.leave":
		roomID, _ := raw["room_id"].(string)
		if roomID == "" {
			return errOutcome(actionType, summary, "room_id is required")
		}
		if roomID == deps.Agent.ID {
			return errOutcome(actionType, summary, "cannot leave your own room")
		}
		pending.RoomLeaves = append(pending.RoomLeaves, RoomLeave{RoomID: roomID})
		return queued(actionType, summary)

	case "room.billboard":
		message, _ := raw["message"].(string)
		pending.BillboardSets = append(pending.BillboardSets, BillboardSet{Message: message})
		return queued(actionType, summary)

	case "room.billboard.clear":
		pending.BillboardClears = append(pending.BillboardClears, deps.Agent.ID)
		return queued(actionType, summary)

	case "room.wpm":
		wpm := toInt(raw["wpm"])
		if wpm < 10 {
			wpm = 10
		}
		if wpm > 200 {
			wpm = 200
		}
		deps.Agent.RoomWPM = wpm
		return ok(actionType, summary)

	case "identity.name":
		name, _ := raw["name"].(string)
		if name == "" || len(name) > 50 {
			return errOutcome(actionType, summary, "name must be non-empty and <=50 chars")
		}
		deps.Agent.Name = name
		return ok(actionType, summary)

	case "timing.sleep":
		untilStr, _ := raw["until"].(string)
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return errOutcome(actionType, summary, "until must be ISO 8601")
		}
		pending.Sleeps = append(pending.Sleeps, Sleep{Until: until})
		return queued(actionType, summary)

	case "agent.create":
		if !deps.Agent.CanCreateAgents {
			return errOutcome(actionType, summary, "missing may_create_agents permission")
		}
		name, _ := raw["name"].(string)
		background, _ := raw["background_prompt"].(string)
		if name == "" || background == "" {
			return errOutcome(actionType, summary, "name and background_prompt are required")
		}
		agentType, _ := raw["agent_type"].(string)
		if agentType == "" {
			agentType = "persona"
		}
		inRoomID, _ := raw["in_room_id"].(string)
		pending.AgentCreates = append(pending.AgentCreates, AgentCreate{
			Name: name, BackgroundPrompt: background, AgentType: agentType, InRoomID: inRoomID,
		})
		return queued(actionType, summary)

	case "agent.alter":
		if err := checkPeerPermission(deps, raw); err != "" {
			return errOutcome(actionType, summary, err)
		}
		targetID, _ := raw["agent_id"].(string)
		name, _ := raw["name"].(string)
		background, _ := raw["background_prompt"].(string)
		model, _ := raw["model"].(string)
		pending.AgentAlters = append(pending.AgentAlters, AgentAlter{
			TargetID: targetID, Name: name, BackgroundPrompt: background, Model: model,
		})
		return queued(actionType, summary)

	case "agent.retire":
		targetID, _ := raw["agent_id"].(string)
		if targetID == deps.Agent.ID {
			return errOutcome(actionType, summary, "cannot retire yourself")
		}
		if err := checkPeerPermission(deps, raw); err != "" {
			return errOutcome(actionType, summary, err)
		}
		pending.AgentRetires = append(pending.AgentRetires, targetID)
		return queued(actionType, summary)

	case "agent.wake":
		targetID, _ := raw["agent_id"].(string)
		if targetID == "" {
			return errOutcome(actionType, summary, "agent_id is required")
		}
		if deps.SharesRoomWithAgent != nil && !deps.SharesRoomWithAgent(targetID) {
			return errOutcome(actionType, summary, "no shared room with target")
		}
		if deps.TargetAsleep != nil && !deps.TargetAsleep(targetID) {
			return errOutcome(actionType, summary, "target is not asleep")
		}
		pending.Wakes = append(pending.Wakes, targetID)
		return queued(actionType, summary)

	default:
		return errOutcome(actionType, summary, "unknown action type")
	}
}

func checkPeerPermission(deps Deps, raw map[string]any) string {
	if !deps.Agent.CanCreateAgents {
		return "missing may_create_agents permission"
	}
	targetID, _ := raw["agent_id"].(string)
	if targetID == "" {
		return "agent_id is required"
	}
	if targetID == deps.Agent.ID {
		return "target must not be yourself"
	}
	if deps.SharesRoomWithAgent != nil && !deps.SharesRoomWithAgent(targetID) {
		return "no shared room with target"
	}
	return ""
}

func validReaction(r string) bool {
	switch r {
	case "thumbs_up", "thumbs_down", "brain", "heart":
		return true
	default:
		return false
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func toInt64(v any) *int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		return &n
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// summarize builds a compact, already-truncated recent-action summary,
// mirroring hud_service.py's per-action-type _record_action fields.
func summarize(actionType string, raw map[string]any) string {
	trunc := func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n-3] + "..."
	}
	switch actionType {
	case "knowledge.set", "knowledge.append":
		path, _ := raw["path"].(string)
		return fmt.Sprintf("path=%s value=%v", path, raw["value"])
	case "knowledge.delete":
		path, _ := raw["path"].(string)
		return "path=" + path
	case "message":
		content, _ := raw["content"].(string)
		return fmt.Sprintf("room=%v content=%q", raw["room_id"], trunc(content, 50))
	case "message.reply":
		return fmt.Sprintf("room=%v reply_to=%v", raw["room_id"], raw["message_id"])
	case "message.react":
		return fmt.Sprintf("message_id=%v reaction=%v", raw["message_id"], raw["reaction"])
	case "room.leave":
		return fmt.Sprintf("room=%v", raw["room_id"])
	case "room.billboard":
		message, _ := raw["message"].(string)
		return trunc(message, 50)
	case "room.wpm":
		return fmt.Sprintf("wpm=%v", raw["wpm"])
	case "identity.name":
		return fmt.Sprintf("name=%v", raw["name"])
	case "timing.sleep":
		return fmt.Sprintf("until=%v", raw["until"])
	case "agent.create":
		return fmt.Sprintf("name=%v type=%v", raw["name"], raw["agent_type"])
	case "agent.alter":
		return fmt.Sprintf("target=%v", raw["agent_id"])
	case "agent.retire":
		return fmt.Sprintf("target=%v", raw["agent_id"])
	case "agent.wake":
		return fmt.Sprintf("target=%v", raw["agent_id"])
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", raw))
	}
}
