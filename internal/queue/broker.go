// Package queue moves analysis tasks from the ingress to the worker pool over
// a Redis list, with a processing list for crash-safe delivery.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scamshield/backend/internal/agent"
	"github.com/scamshield/backend/internal/infra"
)

const (
	pendingKey    = "agent:tasks:pending"
	processingKey = "agent:tasks:processing"
)

// MaxAttempts bounds infrastructural retries per task.
const MaxAttempts = 3

// Envelope wraps a task with its delivery attempt counter.
type Envelope struct {
	Task    agent.Task `json:"task"`
	Attempt int        `json:"attempt"`
}

// Broker is the queue client shared by the ingress (enqueue) and the workers
// (dequeue/ack/requeue).
type Broker struct {
	q infra.Queue
}

// NewBroker wraps a queue backend.
func NewBroker(q infra.Queue) *Broker {
	return &Broker{q: q}
}

// Enqueue pushes a fresh task.
func (b *Broker) Enqueue(ctx context.Context, task agent.Task) error {
	data, err := json.Marshal(Envelope{Task: task})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := b.q.LPush(ctx, pendingKey, data); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next task, moving it onto the
// processing list. Returns (nil, nil, nil) on timeout. The raw payload must be
// passed back to Ack or Requeue unchanged.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (*Envelope, []byte, error) {
	raw, err := b.q.BLMove(ctx, pendingKey, processingKey, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dequeue task: %w", err)
	}
	if raw == nil {
		return nil, nil, nil
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Poison payload: drop it from processing so it cannot loop.
		_ = b.q.LRem(ctx, processingKey, raw)
		return nil, nil, fmt.Errorf("malformed task payload: %w", err)
	}
	return &env, raw, nil
}

// Ack removes a delivered task from the processing list.
func (b *Broker) Ack(ctx context.Context, raw []byte) error {
	return b.q.LRem(ctx, processingKey, raw)
}

// Requeue acks the current delivery and re-enqueues with the attempt counter
// bumped. The caller owes the backoff sleep.
func (b *Broker) Requeue(ctx context.Context, raw []byte, env Envelope) error {
	env.Attempt++
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal retry: %w", err)
	}
	if err := b.q.LRem(ctx, processingKey, raw); err != nil {
		return fmt.Errorf("ack before retry: %w", err)
	}
	if err := b.q.LPush(ctx, pendingKey, data); err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	return nil
}
