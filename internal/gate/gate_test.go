package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/llm"
	"github.com/scamshield/backend/internal/queue"
	"github.com/scamshield/backend/internal/results"
)

func newGate(t *testing.T, enabled, workerAlive bool) (*Gate, *infra.MemoryQueue, *results.MemoryStore) {
	t.Helper()
	q := infra.NewMemoryQueue()
	kv := infra.NewMemoryKV()
	store := results.NewMemoryStore()

	if workerAlive {
		require.NoError(t, kv.Set(context.Background(), "agent:workers:alive", []byte("1"), time.Minute))
	}

	g := New(enabled,
		entities.NewExtractor(entities.Options{}),
		llm.NewClassifier(nil),
		queue.NewBroker(q),
		kv,
		store,
		nil,
	)
	return g, q, store
}

func TestRouteAgentPath(t *testing.T) {
	g, q, store := newGate(t, true, true)

	resp, err := g.Route(context.Background(), "Call 1-800-000-0000 now to claim", "sess-1")
	require.NoError(t, err)

	agentResp, ok := resp.(*AgentResponse)
	require.True(t, ok, "entity-bearing text with a live worker goes to the agent")
	assert.Equal(t, "agent", agentResp.Type)
	assert.NotEmpty(t, agentResp.TaskID)
	assert.Equal(t, "/ws/agent-progress/"+agentResp.TaskID, agentResp.WSURL)
	assert.Equal(t, 1, agentResp.EntitiesFound)
	assert.Greater(t, agentResp.EstimatedTime, 0)

	// Task is queued and the stub record exists.
	env, _, err := queue.NewBroker(q).Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, agentResp.TaskID, env.Task.TaskID)
	assert.Equal(t, "sess-1", env.Task.SessionID)

	rec, err := store.GetByTaskID(context.Background(), agentResp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, results.StatusQueued, rec.Status)
}

func TestRouteFastPathNoEntities(t *testing.T) {
	g, q, _ := newGate(t, true, true)

	resp, err := g.Route(context.Background(), "Hi Mom, dinner at 7?", "")
	require.NoError(t, err)

	simple, ok := resp.(*SimpleResponse)
	require.True(t, ok)
	assert.Equal(t, "simple", simple.Type)
	assert.Equal(t, "low", simple.Result.RiskLevel)
	assert.Equal(t, 0, q.Len("agent:tasks:pending"), "nothing enqueued")
}

func TestRouteFastPathAgentDisabled(t *testing.T) {
	g, q, _ := newGate(t, false, true)

	resp, err := g.Route(context.Background(), "Call 1-800-000-0000 now", "")
	require.NoError(t, err)
	_, ok := resp.(*SimpleResponse)
	assert.True(t, ok, "disabled agent always takes the fast path")
	assert.Equal(t, 0, q.Len("agent:tasks:pending"))
}

func TestRouteFastPathNoWorker(t *testing.T) {
	g, q, _ := newGate(t, true, false)

	resp, err := g.Route(context.Background(), "Call 1-800-000-0000 now", "")
	require.NoError(t, err)
	_, ok := resp.(*SimpleResponse)
	assert.True(t, ok, "no live worker heartbeat forces the fast path")
	assert.Equal(t, 0, q.Len("agent:tasks:pending"))
}

func TestRouteFastPathFlagsScamText(t *testing.T) {
	g, _, _ := newGate(t, false, false)

	resp, err := g.Route(context.Background(), "URGENT: you have won the lottery, claim your prize", "")
	require.NoError(t, err)
	simple := resp.(*SimpleResponse)
	assert.Equal(t, "high", simple.Result.RiskLevel)
	assert.Equal(t, "prize_scam", simple.Result.Category)
}

type deadQueue struct{}

func (deadQueue) LPush(context.Context, string, []byte) error { return errors.New("queue down") }
func (deadQueue) BRPop(context.Context, time.Duration, string) ([]byte, error) {
	return nil, errors.New("queue down")
}
func (deadQueue) BLMove(context.Context, string, string, time.Duration) ([]byte, error) {
	return nil, errors.New("queue down")
}
func (deadQueue) LRem(context.Context, string, []byte) error { return errors.New("queue down") }

type recordingStore struct {
	*results.MemoryStore
	marked []string
}

func (s *recordingStore) MarkStatus(ctx context.Context, taskID, status string) error {
	s.marked = append(s.marked, taskID)
	return s.MemoryStore.MarkStatus(ctx, taskID, status)
}

func TestRouteEnqueueFailureMarksStubFailed(t *testing.T) {
	kv := infra.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "agent:workers:alive", []byte("1"), time.Minute))
	store := &recordingStore{MemoryStore: results.NewMemoryStore()}

	g := New(true,
		entities.NewExtractor(entities.Options{}),
		llm.NewClassifier(nil),
		queue.NewBroker(deadQueue{}),
		kv,
		store,
		nil,
	)

	resp, err := g.Route(context.Background(), "Call 1-800-000-0000 now", "")
	require.NoError(t, err)
	_, ok := resp.(*SimpleResponse)
	assert.True(t, ok, "a dead queue degrades to the fast path")

	require.NotEmpty(t, store.marked)
	rec, err := store.GetByTaskID(context.Background(), store.marked[0])
	require.NoError(t, err)
	assert.Equal(t, results.StatusFailed, rec.Status, "no task may stay queued when nothing will run it")
}

func TestEstimateSeconds(t *testing.T) {
	assert.Equal(t, 13, estimateSeconds(1))
	assert.Equal(t, 60, estimateSeconds(50), "estimate caps at the task budget")
}

func TestDecideReasons(t *testing.T) {
	g, _, _ := newGate(t, true, true)
	ents := entities.NewExtractor(entities.Options{}).Extract("nothing here")
	path, reason := g.decide(context.Background(), ents)
	assert.Equal(t, "fast", path)
	assert.Equal(t, ReasonNoEntities, reason)
}
