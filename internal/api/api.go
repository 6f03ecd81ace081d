// Package api provides a lightweight HTTP API for querying and driving
// AgentRoom state: agents, rooms (an agent's id doubles as its room id),
// memberships, and messages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/model"
	"github.com/antigravity-dev/agentroom/internal/room"
	"github.com/antigravity-dev/agentroom/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg            config.ConfigManager
	store          *store.Store
	rooms          *room.Service
	logger         *slog.Logger
	startTime      time.Time
	httpServer     *http.Server
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server.
func NewServer(cfg config.ConfigManager, s *store.Store, rooms *room.Service, logger *slog.Logger) (*Server, error) {
	authMiddleware, err := NewAuthMiddleware(&cfg.Get().API.Security, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth middleware: %w", err)
	}

	return &Server{
		cfg:            cfg,
		store:          s,
		rooms:          rooms,
		logger:         logger,
		startTime:      time.Now(),
		authMiddleware: authMiddleware,
	}, nil
}

// Close closes the server and cleans up resources.
func (s *Server) Close() error {
	if s.authMiddleware != nil {
		return s.authMiddleware.Close()
	}
	return nil
}

// Start begins listening on the configured bind address. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.authMiddleware.RequireAuth(s.handleStatus))
	mux.HandleFunc("/metrics", s.authMiddleware.RequireAuth(s.handleMetrics))
	mux.HandleFunc("/agents", s.authMiddleware.RequireAuth(s.handleAgents))
	mux.HandleFunc("/agents/", s.authMiddleware.RequireAuth(s.routeAgentDetail))

	s.httpServer = &http.Server{
		Addr:        s.cfg.Get().API.Bind,
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.cfg.Get().API.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	agents, err := s.store.ListAgents()
	if err != nil {
		s.logger.Error("failed to list agents for status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	counts := map[model.Status]int{}
	for _, a := range agents {
		counts[a.Status]++
	}

	cfg := s.cfg.Get()
	writeJSON(w, map[string]any{
		"uptime_s":       time.Since(s.startTime).Seconds(),
		"agent_count":    len(agents),
		"by_status":      counts,
		"scheduler_mode": cfg.General.SchedulerMode,
	})
}

// GET /metrics - Prometheus-compatible text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	agents, err := s.store.ListAgents()
	if err != nil {
		s.logger.Warn("failed to list agents for metrics", "error", err)
		agents = nil
	}

	var asleep, overBudget int
	now := time.Now()
	for _, a := range agents {
		if a.IsAsleep(now) {
			asleep++
		}
		if a.OverBudget {
			overBudget++
		}
	}

	var messageTotal int
	s.store.DB().QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&messageTotal)

	var reactionTotal int
	s.store.DB().QueryRow(`SELECT COUNT(*) FROM reactions`).Scan(&reactionTotal)

	var b strings.Builder
	fmt.Fprintf(&b, "# HELP agentroom_agents_total Total number of agents\n")
	fmt.Fprintf(&b, "# TYPE agentroom_agents_total gauge\n")
	fmt.Fprintf(&b, "agentroom_agents_total %d\n", len(agents))

	fmt.Fprintf(&b, "# HELP agentroom_agents_asleep Agents currently within a sleep window\n")
	fmt.Fprintf(&b, "# TYPE agentroom_agents_asleep gauge\n")
	fmt.Fprintf(&b, "agentroom_agents_asleep %d\n", asleep)

	fmt.Fprintf(&b, "# HELP agentroom_agents_over_budget Agents whose last HUD build exceeded its token budget\n")
	fmt.Fprintf(&b, "# TYPE agentroom_agents_over_budget gauge\n")
	fmt.Fprintf(&b, "agentroom_agents_over_budget %d\n", overBudget)

	fmt.Fprintf(&b, "# HELP agentroom_messages_total Total messages ever persisted\n")
	fmt.Fprintf(&b, "# TYPE agentroom_messages_total counter\n")
	fmt.Fprintf(&b, "agentroom_messages_total %d\n", messageTotal)

	fmt.Fprintf(&b, "# HELP agentroom_reactions_total Total reactions ever persisted\n")
	fmt.Fprintf(&b, "# TYPE agentroom_reactions_total counter\n")
	fmt.Fprintf(&b, "agentroom_reactions_total %d\n", reactionTotal)

	fmt.Fprintf(&b, "# HELP agentroom_uptime_seconds Uptime in seconds\n")
	fmt.Fprintf(&b, "# TYPE agentroom_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "agentroom_uptime_seconds %.0f\n", time.Since(s.startTime).Seconds())

	w.Write([]byte(b.String()))
}

type agentView struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	Model             string `json:"model"`
	Status            string `json:"status"`
	HeartbeatInterval string `json:"heartbeat_interval"`
	RoomWPM           int    `json:"room_wpm"`
	OverBudget        bool   `json:"over_budget"`
	CanCreateAgents   bool   `json:"can_create_agents"`
}

func toAgentView(a *model.Agent) agentView {
	return agentView{
		ID:                a.ID,
		Name:              a.Name,
		Kind:              string(a.Kind),
		Model:             a.Model,
		Status:            string(a.Status),
		HeartbeatInterval: a.HeartbeatInterval.String(),
		RoomWPM:           a.RoomWPM,
		OverBudget:        a.OverBudget,
		CanCreateAgents:   a.CanCreateAgents,
	}
}

// GET /agents, POST /agents
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := s.store.ListAgents()
		if err != nil {
			s.logger.Error("failed to list agents", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list agents")
			return
		}
		views := make([]agentView, 0, len(agents))
		for _, a := range agents {
			views = append(views, toAgentView(a))
		}
		writeJSON(w, views)
	case http.MethodPost:
		s.handleCreateAgent(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createAgentRequest struct {
	Name             string `json:"name"`
	BackgroundPrompt string `json:"background_prompt"`
	Model            string `json:"model"`
	Kind             string `json:"kind"`
	InRoomID         string `json:"in_room_id"`
	CanCreateAgents  bool   `json:"can_create_agents"`
}

// POST /agents
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg := s.cfg.Get()
	modelName := req.Model
	if modelName == "" {
		modelName = cfg.Models.Default
	}
	if !cfg.ModelAllowed(modelName) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("model %q is not in the allow-list", modelName))
		return
	}

	kind := modelKind(req.Kind)

	agent, err := s.rooms.CreateAgent(room.CreateAgentParams{
		Name:              req.Name,
		BackgroundPrompt:  req.BackgroundPrompt,
		Model:             modelName,
		Kind:              kind,
		InRoomID:          req.InRoomID,
		TokenBudget:       cfg.Agents.TokenBudget,
		KnowledgePct:      cfg.Agents.KnowledgePct,
		RecentActionsPct:  cfg.Agents.RecentActionsPct,
		RoomsPct:          cfg.Agents.RoomsPct,
		RoomWPM:           cfg.Agents.DefaultRoomWPM,
		CanCreateAgents:   req.CanCreateAgents,
		HeartbeatInterval: cfg.Agents.HeartbeatMin.Duration,
	})
	if err != nil {
		s.logger.Error("failed to create agent", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create agent")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toAgentView(agent))
}

func modelKind(k string) model.Kind {
	if k == string(model.KindBot) {
		return model.KindBot
	}
	return model.KindPersona
}

// routeAgentDetail dispatches /agents/{id}[/action] requests.
func (s *Server) routeAgentDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		s.handleAgents(w, r)
		return
	}

	if len(parts) == 1 {
		s.handleAgentDetail(w, r, id)
		return
	}

	switch parts[1] {
	case "join":
		s.handleAgentJoin(w, r, id)
	case "leave":
		s.handleAgentLeave(w, r, id)
	case "messages":
		s.handleAgentMessages(w, r, id)
	case "members":
		s.handleAgentMembers(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown agent sub-resource")
	}
}

// GET /agents/{id}, DELETE /agents/{id}
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		agent, err := s.store.GetAgent(id)
		if err != nil {
			s.logger.Error("failed to get agent", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get agent")
			return
		}
		if agent == nil {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeJSON(w, toAgentView(agent))
	case http.MethodDelete:
		if err := s.rooms.DeleteAgent(id); err != nil {
			s.logger.Error("failed to delete agent", "id", id, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

// POST /agents/{id}/join
func (s *Server) handleAgentJoin(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "room_id is required")
		return
	}
	membership, err := s.rooms.Join(id, req.RoomID)
	if err != nil {
		s.logger.Error("failed to join room", "agent", id, "room", req.RoomID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, membership)
}

// POST /agents/{id}/leave
func (s *Server) handleAgentLeave(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "room_id is required")
		return
	}
	if err := s.rooms.Leave(id, req.RoomID); err != nil {
		s.logger.Error("failed to leave room", "agent", id, "room", req.RoomID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"left": req.RoomID})
}

// GET /agents/{id}/members - roster of a room (agent id == room id)
func (s *Server) handleAgentMembers(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	members, err := s.store.ListMembersOfRoom(id)
	if err != nil {
		s.logger.Error("failed to list room members", "room", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list room members")
		return
	}
	writeJSON(w, members)
}

type postMessageRequest struct {
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	ReplyToID *int64 `json:"reply_to_id,omitempty"`
}

// GET /agents/{id}/messages, POST /agents/{id}/messages
func (s *Server) handleAgentMessages(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		since := int64(0)
		if v := r.URL.Query().Get("since"); v != "" {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid since parameter")
				return
			}
			since = parsed
		}
		var (
			messages []*model.Message
			err      error
		)
		if since > 0 {
			messages, err = s.store.ListMessagesForRoomSince(id, since)
		} else {
			messages, err = s.store.ListMessagesForRoom(id)
		}
		if err != nil {
			s.logger.Error("failed to list messages", "room", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		writeJSON(w, messages)
	case http.MethodPost:
		var req postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderID == "" || req.Body == "" {
			writeError(w, http.StatusBadRequest, "sender_id and body are required")
			return
		}
		msg, err := s.rooms.SendMessage(id, req.SenderID, req.Body, req.ReplyToID)
		if err != nil {
			s.logger.Error("failed to post message", "room", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to post message")
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, msg)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
