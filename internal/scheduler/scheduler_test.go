package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	agents []PollableAgent
}

func (f *fakeSource) PollableAgents(ctx context.Context) ([]PollableAgent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PollableAgent, len(f.agents))
	copy(out, f.agents)
	return out, nil
}

func (f *fakeSource) set(agents []PollableAgent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents = agents
}

type countingRunner struct {
	individualCalls int32
	batchCalls      int32
	lastBatchSize   int32
}

func (r *countingRunner) RunAgent(ctx context.Context, agent PollableAgent) {
	atomic.AddInt32(&r.individualCalls, 1)
}

func (r *countingRunner) RunBatch(ctx context.Context, model string, agents []PollableAgent) {
	atomic.AddInt32(&r.batchCalls, 1)
	atomic.StoreInt32(&r.lastBatchSize, int32(len(agents)))
}

func TestIndividualModeDispatchesNewlySeenAgentAfterStagger(t *testing.T) {
	src := &fakeSource{}
	runner := &countingRunner{}
	sched := New(Config{Mode: ModeIndividual, TickInterval: 10 * time.Millisecond}, src, runner, nil)

	src.set([]PollableAgent{{ID: "3", HeartbeatInterval: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.individualCalls) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	sched.Stop()
}

func TestBatchedModeGroupsByModel(t *testing.T) {
	src := &fakeSource{}
	runner := &countingRunner{}
	sched := New(Config{Mode: ModeBatched, TickInterval: 10 * time.Millisecond}, src, runner, nil)

	// Force immediate due times by pre-seeding the due map, so both agents
	// fire on the same tick instead of on independent first-contact staggers.
	src.set([]PollableAgent{
		{ID: "3", Model: "claude-sonnet-4-5", HeartbeatInterval: time.Second},
		{ID: "9", Model: "claude-sonnet-4-5", HeartbeatInterval: time.Second},
	})
	sched.mu.Lock()
	sched.due["3"] = time.Now()
	sched.due["9"] = time.Now()
	sched.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.batchCalls) >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runner.lastBatchSize))

	sched.Stop()
}

func TestStopClearsSchedulingState(t *testing.T) {
	src := &fakeSource{}
	runner := &countingRunner{}
	sched := New(Config{Mode: ModeIndividual, TickInterval: 10 * time.Millisecond, StopTimeout: time.Second}, src, runner, nil)
	src.set([]PollableAgent{{ID: "3", HeartbeatInterval: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Empty(t, sched.due)
	assert.Empty(t, sched.running)
}

func TestDroppedAgentIsRemovedFromDueMap(t *testing.T) {
	src := &fakeSource{}
	runner := &countingRunner{}
	sched := New(Config{Mode: ModeIndividual, TickInterval: 10 * time.Millisecond}, src, runner, nil)
	src.set([]PollableAgent{{ID: "3", HeartbeatInterval: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	require.Eventually(t, func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		_, ok := sched.due["3"]
		return ok
	}, time.Second, 10*time.Millisecond)

	src.set(nil)

	require.Eventually(t, func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		_, ok := sched.due["3"]
		return !ok
	}, time.Second, 10*time.Millisecond)

	sched.Stop()
}

func TestDecayRelaxesTowardMax(t *testing.T) {
	assert.Equal(t, 1200*time.Millisecond, Decay(1100*time.Millisecond))
	assert.Equal(t, MaxInterval, Decay(MaxInterval))
}

func TestNudgeUpAndDownClamp(t *testing.T) {
	assert.Equal(t, MinInterval, NudgeUp(MinInterval))
	assert.Equal(t, MaxInterval, NudgeDown(MaxInterval))
	assert.Equal(t, 1500*time.Millisecond, NudgeUp(2*time.Second))
	assert.Equal(t, 2500*time.Millisecond, NudgeDown(2*time.Second))
}
