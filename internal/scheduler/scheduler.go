// Package scheduler polls agents individually or in model-grouped batches,
// staggering first contact and varying the repeat interval so many agents
// don't thunder in lockstep. Grounded on heartbeat_service.py's due-time
// map and stagger/pull-forward design, wired with golang.org/x/sync/errgroup
// for worker fan-out the way the teacher's indirect dependency graph
// already pulls it in.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// MinInterval and MaxInterval bound every agent's heartbeat interval.
	MinInterval = 1 * time.Second
	MaxInterval = 10 * time.Second

	initialStaggerMin = 500 * time.Millisecond
	initialStaggerMax = 2 * time.Second

	intervalJitterFraction = 0.2
)

// PollableAgent is one agent eligible for polling this tick.
type PollableAgent struct {
	ID                string
	HeartbeatInterval time.Duration
	Model             string
}

// AgentSource supplies the current pollable set each wake. Agents with no
// membership or a future sleep-until are excluded by the implementation.
type AgentSource interface {
	PollableAgents(ctx context.Context) ([]PollableAgent, error)
}

// Runner executes one agent's tick (individual mode) or one model group's
// shared tick (batched mode). Implemented by the orchestration layer that
// wires HUD building, the LLM call, and action execution together.
type Runner interface {
	RunAgent(ctx context.Context, agent PollableAgent)
	RunBatch(ctx context.Context, model string, agents []PollableAgent)
}

// Mode selects individual per-agent dispatch or model-grouped batching.
type Mode string

const (
	ModeIndividual Mode = "individual"
	ModeBatched    Mode = "batched"
)

// Config configures loop cadence and concurrency.
type Config struct {
	Mode              Mode
	TickInterval      time.Duration // loop wake granularity, ≤100ms
	PullForwardWindow time.Duration
	StopTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.Mode == "" {
		c.Mode = ModeIndividual
	}
	return c
}

// Scheduler owns the due-time map and drives the poll loop.
type Scheduler struct {
	cfg    Config
	source AgentSource
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	due     map[string]time.Time
	running map[string]bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Scheduler. cfg zero-values fall back to safe defaults.
func New(cfg Config, source AgentSource, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		source:  source,
		runner:  runner,
		logger:  logger,
		due:     make(map[string]time.Time),
		running: make(map[string]bool),
		stopCh:  make(chan struct{}),
	}
}

// Run drives the poll loop until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop signals the loop to exit and waits up to the configured timeout for
// in-flight workers to finish, then clears scheduling state regardless.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("scheduler: stop timed out waiting for workers")
	}

	s.mu.Lock()
	s.due = make(map[string]time.Time)
	s.running = make(map[string]bool)
	s.mu.Unlock()
}

func (s *Scheduler) tick(ctx context.Context) {
	agents, err := s.source.PollableAgents(ctx)
	if err != nil {
		s.logger.Error("scheduler: list pollable agents", "error", err)
		return
	}

	now := time.Now()
	s.mu.Lock()
	seen := make(map[string]bool, len(agents))
	byID := make(map[string]PollableAgent, len(agents))
	for _, a := range agents {
		seen[a.ID] = true
		byID[a.ID] = a
		if _, ok := s.due[a.ID]; !ok {
			s.due[a.ID] = now.Add(randDuration(initialStaggerMin, initialStaggerMax))
		}
	}
	for id := range s.due {
		if !seen[id] {
			delete(s.due, id)
			delete(s.running, id)
		}
	}

	var due []PollableAgent
	for id, t := range s.due {
		if s.running[id] {
			continue
		}
		if !t.After(now) {
			due = append(due, byID[id])
		}
	}

	// Pull-forward: also promote agents due within the configurable window.
	if s.cfg.PullForwardWindow > 0 && len(due) > 0 {
		cutoff := now.Add(s.cfg.PullForwardWindow)
		for id, t := range s.due {
			if s.running[id] {
				continue
			}
			if t.After(now) && !t.After(cutoff) {
				due = append(due, byID[id])
			}
		}
	}

	for _, a := range due {
		s.running[a.ID] = true
		s.due[a.ID] = now.Add(jitteredInterval(a.HeartbeatInterval))
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	switch s.cfg.Mode {
	case ModeBatched:
		s.dispatchBatched(ctx, due)
	default:
		s.dispatchIndividual(ctx, due)
	}
}

func (s *Scheduler) dispatchIndividual(ctx context.Context, due []PollableAgent) {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range due {
		agent := a
		s.wg.Add(1)
		g.Go(func() error {
			defer s.wg.Done()
			defer s.markDone(agent.ID)
			s.runner.RunAgent(gctx, agent)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) dispatchBatched(ctx context.Context, due []PollableAgent) {
	groups := make(map[string][]PollableAgent)
	var order []string
	for _, a := range due {
		if _, ok := groups[a.Model]; !ok {
			order = append(order, a.Model)
		}
		groups[a.Model] = append(groups[a.Model], a)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range order {
		modelName := model
		members := groups[model]
		for _, a := range members {
			s.wg.Add(1)
		}
		g.Go(func() error {
			defer func() {
				for _, a := range members {
					s.markDone(a.ID)
					s.wg.Done()
				}
			}()
			s.runner.RunBatch(gctx, modelName, members)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) markDone(agentID string) {
	s.mu.Lock()
	delete(s.running, agentID)
	s.mu.Unlock()
}

func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// jitteredInterval applies the ±20% variance and clamps to [1,10]s.
func jitteredInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = MaxInterval
	}
	jitter := float64(interval) * intervalJitterFraction
	delta := (rand.Float64()*2 - 1) * jitter
	next := time.Duration(float64(interval) + delta)
	return clamp(next)
}

func clamp(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}
