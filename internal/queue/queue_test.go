package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield/backend/internal/agent"
	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/results"
)

func TestBrokerRoundTrip(t *testing.T) {
	q := infra.NewMemoryQueue()
	b := NewBroker(q)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, agent.Task{TaskID: "t1", OCRText: "hello"}))

	env, raw, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "t1", env.Task.TaskID)
	assert.Equal(t, 0, env.Attempt)

	// Delivered but unacked: sits on the processing list.
	assert.Equal(t, 0, q.Len("agent:tasks:pending"))
	assert.Equal(t, 1, q.Len("agent:tasks:processing"))

	require.NoError(t, b.Ack(ctx, raw))
	assert.Equal(t, 0, q.Len("agent:tasks:processing"))
}

func TestBrokerDequeueTimeout(t *testing.T) {
	b := NewBroker(infra.NewMemoryQueue())
	env, raw, err := b.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, env)
	assert.Nil(t, raw)
}

func TestBrokerRequeueBumpsAttempt(t *testing.T) {
	q := infra.NewMemoryQueue()
	b := NewBroker(q)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, agent.Task{TaskID: "t1"}))
	env, raw, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, b.Requeue(ctx, raw, *env))
	assert.Equal(t, 0, q.Len("agent:tasks:processing"))

	again, _, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Attempt)
	assert.Equal(t, "t1", again.Task.TaskID)
}

func TestBrokerDropsPoisonPayload(t *testing.T) {
	q := infra.NewMemoryQueue()
	b := NewBroker(q)
	ctx := context.Background()

	require.NoError(t, q.LPush(ctx, "agent:tasks:pending", []byte("not json")))
	_, _, err := b.Dequeue(ctx, time.Second)
	assert.Error(t, err)
	assert.Equal(t, 0, q.Len("agent:tasks:processing"), "poison payload must not loop")
}

// flakyStore fails MarkStatus a fixed number of times, then delegates.
type flakyStore struct {
	results.Store
	failures atomic.Int64
}

func (s *flakyStore) MarkStatus(ctx context.Context, taskID, status string) error {
	if s.failures.Add(-1) >= 0 {
		return errors.New("db unavailable")
	}
	return s.Store.MarkStatus(ctx, taskID, status)
}

func newOrchestrator(store results.Store) *agent.Orchestrator {
	tools := agent.Tools{
		Registry: registry.NewTool(registry.NewMemoryStore(), "US"),
		PhoneVal: phoneval.NewValidator("US"),
	}
	return agent.NewOrchestrator(
		entities.NewExtractor(entities.Options{}),
		tools,
		agent.NewReasoner(nil),
		store,
		nil,
		nil,
	)
}

func TestPoolProcessesTask(t *testing.T) {
	q := infra.NewMemoryQueue()
	broker := NewBroker(q)
	store := results.NewMemoryStore()
	pool := NewPool(broker, newOrchestrator(store), infra.NewMemoryKV(), nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.NoError(t, broker.Enqueue(ctx, agent.Task{
		TaskID:  "task-1",
		OCRText: "Call 1-800-000-0000 now",
	}))

	require.Eventually(t, func() bool {
		rec, err := store.GetByTaskID(context.Background(), "task-1")
		return err == nil && rec.Status == results.StatusSucceeded
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, 0, q.Len("agent:tasks:pending"))
	assert.Equal(t, 0, q.Len("agent:tasks:processing"))

	cancel()
	pool.Wait()
	assert.Equal(t, 0, pool.ActiveTasks())
}

func TestPoolRetriesInfrastructuralFailure(t *testing.T) {
	q := infra.NewMemoryQueue()
	broker := NewBroker(q)
	store := &flakyStore{Store: results.NewMemoryStore()}
	store.failures.Store(1)
	pool := NewPool(broker, newOrchestrator(store), nil, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.NoError(t, broker.Enqueue(ctx, agent.Task{TaskID: "task-r", OCRText: "hi"}))

	// First delivery fails on persistence, second succeeds after ~1s backoff.
	require.Eventually(t, func() bool {
		rec, err := store.GetByTaskID(context.Background(), "task-r")
		return err == nil && rec.Status == results.StatusSucceeded
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	pool.Wait()
}

func TestWorkerAvailable(t *testing.T) {
	kv := infra.NewMemoryKV()
	assert.False(t, WorkerAvailable(context.Background(), kv))
	assert.False(t, WorkerAvailable(context.Background(), nil))

	require.NoError(t, kv.Set(context.Background(), "agent:workers:alive", []byte("1"), time.Minute))
	assert.True(t, WorkerAvailable(context.Background(), kv))
}
