package progress

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Bus is the subset of the pub/sub fabric the publisher needs.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Publisher emits progress events for one task. Publishing is fire-and-forget:
// a dead bus must never fail an analysis.
type Publisher struct {
	bus    Bus
	taskID string
}

// NewPublisher binds a publisher to a task.
func NewPublisher(bus Bus, taskID string) *Publisher {
	return &Publisher{bus: bus, taskID: taskID}
}

// Publish sends one event on the task's channel.
func (p *Publisher) Publish(ctx context.Context, msg Message) {
	if p == nil || p.bus == nil {
		return
	}
	msg.TaskID = p.taskID
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, ChannelFor(p.taskID), data); err != nil {
		slog.Debug("[Progress] Publish failed", "task_id", p.taskID, "error", err)
	}
}

// Step publishes a plain step transition.
func (p *Publisher) Step(ctx context.Context, step Step, percent int, text string) {
	msg := NewMessage(p.taskID, step, percent)
	msg.Message = text
	p.Publish(ctx, msg)
}

// Tool publishes a tool-execution event.
func (p *Publisher) Tool(ctx context.Context, step Step, tool string, percent int) {
	msg := NewMessage(p.taskID, step, percent)
	msg.Tool = tool
	p.Publish(ctx, msg)
}

// Failed publishes the terminal failure event. The failure text rides in the
// message field; error is a boolean flag on the wire.
func (p *Publisher) Failed(ctx context.Context, errText string) {
	msg := NewMessage(p.taskID, StepFailed, 100)
	msg.Error = true
	msg.Message = errText
	p.Publish(ctx, msg)
}
