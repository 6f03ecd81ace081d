// Package orchestrator wires the HUD builder, the LLM client, the action
// executor, and the Room Service into one per-agent tick, and implements
// scheduler.Runner so the scheduler package never needs to know any of
// that exists. Grounded on hud_service.py's run_agent_turn and spec.md
// §4.6's two-phase action pipeline.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/hud"
	"github.com/antigravity-dev/agentroom/internal/llmclient"
	"github.com/antigravity-dev/agentroom/internal/room"
	"github.com/antigravity-dev/agentroom/internal/scheduler"
	"github.com/antigravity-dev/agentroom/internal/store"
	"github.com/antigravity-dev/agentroom/internal/wire"
)

// Engine implements scheduler.Runner over the core pipeline. It holds no
// conversation state of its own beyond the per-agent previous-response-id
// map, which lets the LLM client's in-memory history resume correctly
// across ticks without the store needing to persist raw provider turns.
type Engine struct {
	store  *store.Store
	rooms  *room.Service
	llm    llmclient.Provider
	cfg    config.ConfigManager
	logger *slog.Logger

	mu          sync.Mutex
	responseIDs map[string]string
}

// New builds an Engine over the given collaborators. cfg supplies live
// budget/HUD tuning knobs, re-read on every tick so a config reload takes
// effect without restarting the scheduler.
func New(s *store.Store, rooms *room.Service, llm llmclient.Provider, cfg config.ConfigManager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       s,
		rooms:       rooms,
		llm:         llm,
		cfg:         cfg,
		logger:      logger,
		responseIDs: make(map[string]string),
	}
}

func (e *Engine) responseFormat() wire.Format {
	switch e.cfg.Get().General.ResponseFormat {
	case "abbr":
		return wire.FormatAbbreviated
	case "toon":
		return wire.FormatTOON
	default:
		return wire.FormatVerboseJSON
	}
}

func serializeDocument(doc hud.Document, format wire.Format) (string, error) {
	switch format {
	case wire.FormatAbbreviated:
		return wire.EncodeAbbreviatedJSON(doc)
	case wire.FormatTOON:
		return wire.EncodeTOON(doc, "hud")
	default:
		return wire.EncodeVerboseJSON(doc)
	}
}

// RunAgent runs one agent's full tick: HUD build, LLM call, reply parsing,
// two-phase action execution, and heartbeat decay. Individual-mode entry
// point for scheduler.Runner.
func (e *Engine) RunAgent(ctx context.Context, pa scheduler.PollableAgent) {
	e.tick(ctx, pa.ID)
}

// RunBatch runs each member of a model-grouped batch through the same
// per-agent tick. True single-call batching (one LLM request serving
// several agents' turns) would require a shared-context wire format the
// provider doesn't expose; grouping by model at the scheduler layer still
// gives batched mode its cache-friendly dispatch ordering.
func (e *Engine) RunBatch(ctx context.Context, model string, agents []scheduler.PollableAgent) {
	for _, a := range agents {
		e.tick(ctx, a.ID)
	}
}

func (e *Engine) lastResponseID(agentID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.responseIDs[agentID]
}

func (e *Engine) setLastResponseID(agentID, responseID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responseIDs[agentID] = responseID
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if !isSpace && !inWord {
			n++
		}
		inWord = !isSpace
	}
	if n == 0 {
		n = 1
	}
	return n
}

// splitMessageChunks splits a reply on blank-line boundaries into the
// separate messages a room membership sends it as, mirroring
// _send_room_message's paragraph split. A reply with no blank lines is one
// chunk.
func splitMessageChunks(content string) []string {
	parts := strings.Split(content, "\n\n")
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			chunks = append(chunks, t)
		}
	}
	if len(chunks) == 0 {
		if t := strings.TrimSpace(content); t != "" {
			chunks = append(chunks, t)
		}
	}
	return chunks
}

// typingWait computes how long a membership must wait before a chunk of
// wordCount words can be sent, given the words it has earned typing at wpm
// since its last response. Mirrors _calculate_wait_time: a membership with
// no prior response sends immediately (there is no baseline to earn from
// yet).
func typingWait(lastResponseTime *time.Time, wordCount, wpm int) time.Duration {
	if lastResponseTime == nil {
		return 0
	}
	if wpm <= 0 {
		wpm = 80
	}
	elapsed := time.Since(*lastResponseTime).Seconds()
	wordsPerSecond := float64(wpm) / 60.0
	allowance := elapsed * wordsPerSecond
	if allowance >= float64(wordCount) {
		return 0
	}
	wait := (float64(wordCount) - allowance) / wordsPerSecond
	return time.Duration(wait * float64(time.Second))
}
