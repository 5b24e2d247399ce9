package queue

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/scamshield/backend/internal/agent"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/metrics"
)

const (
	dequeueTimeout  = 2 * time.Second
	workerAliveKey  = "agent:workers:alive"
	workerAliveTTL  = 15 * time.Second
	heartbeatPeriod = 5 * time.Second
)

// Pool runs N dequeue loops over one broker, tracking in-flight tasks by id
// so they can be counted and cancelled.
type Pool struct {
	broker      *Broker
	orch        *agent.Orchestrator
	kv          infra.KV
	metrics     *metrics.Set
	concurrency int

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a pool. kv and m may be nil; concurrency defaults to 4.
func NewPool(broker *Broker, orch *agent.Orchestrator, kv infra.KV, m *metrics.Set, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pool{
		broker:      broker,
		orch:        orch,
		kv:          kv,
		metrics:     m,
		concurrency: concurrency,
		active:      make(map[string]context.CancelFunc),
	}
}

// Start launches the worker loops and the liveness heartbeat. It returns
// immediately; Wait blocks until ctx is cancelled and loops drain.
func (p *Pool) Start(ctx context.Context) {
	slog.Info("[Queue] Worker pool starting", "concurrency", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx)
		}()
	}
	if p.kv != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.heartbeat(ctx)
		}()
	}
}

// Wait blocks until all loops have exited.
func (p *Pool) Wait() { p.wg.Wait() }

// ActiveTasks reports how many tasks are currently executing.
func (p *Pool) ActiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Cancel aborts a running task. Returns false when the task is not in flight.
func (p *Pool) Cancel(taskID string) bool {
	p.mu.Lock()
	cancel, ok := p.active[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (p *Pool) loop(ctx context.Context) {
	for ctx.Err() == nil {
		env, raw, err := p.broker.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			slog.Warn("[Queue] Dequeue failed", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		if env == nil {
			continue
		}
		p.process(ctx, env, raw)
	}
}

func (p *Pool) process(ctx context.Context, env *Envelope, raw []byte) {
	taskID := env.Task.TaskID

	taskCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.active[taskID] = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		delete(p.active, taskID)
		p.mu.Unlock()
	}()

	_, err := p.orch.Run(taskCtx, env.Task)
	if err == nil {
		if ackErr := p.broker.Ack(ctx, raw); ackErr != nil {
			slog.Warn("[Queue] Ack failed", "task_id", taskID, "error", ackErr)
		}
		return
	}

	// Business outcomes are never retried; only infrastructure errors with
	// attempts left go back on the queue.
	if agent.IsInfrastructural(err) && env.Attempt < MaxAttempts {
		backoff := time.Duration(math.Pow(2, float64(env.Attempt))) * time.Second
		slog.Warn("[Queue] Task failed, retrying", "task_id", taskID,
			"attempt", env.Attempt, "backoff", backoff, "error", err)
		if p.metrics != nil {
			p.metrics.TaskRetries.Inc()
		}
		sleepCtx(ctx, backoff)
		if reqErr := p.broker.Requeue(ctx, raw, *env); reqErr != nil {
			slog.Warn("[Queue] Requeue failed", "task_id", taskID, "error", reqErr)
		}
		return
	}

	slog.Warn("[Queue] Task abandoned", "task_id", taskID, "attempt", env.Attempt, "error", err)
	if ackErr := p.broker.Ack(ctx, raw); ackErr != nil {
		slog.Warn("[Queue] Ack failed", "task_id", taskID, "error", ackErr)
	}
}

// heartbeat refreshes the shared liveness key the routing gate health-checks.
func (p *Pool) heartbeat(ctx context.Context) {
	refresh := func() {
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := p.kv.Set(hctx, workerAliveKey, []byte("1"), workerAliveTTL); err != nil {
			slog.Warn("[Queue] Heartbeat write failed", "error", err)
		}
	}
	refresh()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// WorkerAvailable reports whether any worker heartbeat is live, bounded by a
// 500ms budget so the gate decision stays fast.
func WorkerAvailable(ctx context.Context, kv infra.KV) bool {
	if kv == nil {
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	val, err := kv.Get(hctx, workerAliveKey)
	return err == nil && val != nil
}
