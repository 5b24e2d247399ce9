// Package gate decides at ingress whether a message goes to the agent
// pipeline or gets an inline fast-path classification.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scamshield/backend/internal/agent"
	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/llm"
	"github.com/scamshield/backend/internal/metrics"
	"github.com/scamshield/backend/internal/queue"
	"github.com/scamshield/backend/internal/results"
)

// Fallback reasons recorded on fast-path decisions.
const (
	ReasonAgentDisabled = "agent_disabled"
	ReasonNoEntities    = "no_entities"
	ReasonNoWorker      = "no_worker"
	ReasonEnqueueFailed = "enqueue_failed"
	ReasonEntitiesFound = "entities_found"
)

// AgentResponse is returned when the task was enqueued for the agent path.
type AgentResponse struct {
	Type          string `json:"type"`
	TaskID        string `json:"task_id"`
	WSURL         string `json:"ws_url"`
	EstimatedTime int    `json:"estimated_time"`
	EntitiesFound int    `json:"entities_found"`
}

// SimpleResponse is the inline fast-path verdict.
type SimpleResponse struct {
	Type   string             `json:"type"`
	Result llm.Classification `json:"result"`
}

// Gate performs the pre-scan and routes.
type Gate struct {
	enabled    bool
	extractor  *entities.Extractor
	classifier *llm.Classifier
	broker     *queue.Broker
	kv         infra.KV
	store      results.Store
	metrics    *metrics.Set
}

// New builds a gate. broker and kv may be nil; the gate then always takes the
// fast path.
func New(enabled bool, extractor *entities.Extractor, classifier *llm.Classifier, broker *queue.Broker, kv infra.KV, store results.Store, m *metrics.Set) *Gate {
	return &Gate{
		enabled:    enabled,
		extractor:  extractor,
		classifier: classifier,
		broker:     broker,
		kv:         kv,
		store:      store,
		metrics:    m,
	}
}

// Route pre-scans the text and either enqueues an agent task or classifies
// inline. The returned value is an AgentResponse or a SimpleResponse.
func (g *Gate) Route(ctx context.Context, ocrText, sessionID string) (any, error) {
	start := time.Now()
	ents := g.extractor.Extract(ocrText)

	path, reason := g.decide(ctx, ents)
	if g.metrics != nil {
		g.metrics.GateLatency.Observe(time.Since(start).Seconds())
		g.metrics.GateDecisions.WithLabelValues(path, reason).Inc()
	}
	slog.Info("[Gate] Routing decision", "path", path, "reason", reason,
		"entities", ents.Count(), "latency_ms", time.Since(start).Milliseconds())

	if path == "agent" {
		resp, err := g.enqueue(ctx, ocrText, sessionID, ents)
		if err == nil {
			return resp, nil
		}
		// Broker down at enqueue time: degrade to the fast path.
		slog.Warn("[Gate] Enqueue failed, degrading to fast path", "error", err)
		if g.metrics != nil {
			g.metrics.GateDecisions.WithLabelValues("fast", ReasonEnqueueFailed).Inc()
		}
	}
	return g.fastPath(ctx, ocrText), nil
}

func (g *Gate) decide(ctx context.Context, ents *entities.ExtractedEntities) (path, reason string) {
	switch {
	case !g.enabled:
		return "fast", ReasonAgentDisabled
	case !ents.HasEntities():
		return "fast", ReasonNoEntities
	case g.broker == nil || !queue.WorkerAvailable(ctx, g.kv):
		return "fast", ReasonNoWorker
	default:
		return "agent", ReasonEntitiesFound
	}
}

func (g *Gate) enqueue(ctx context.Context, ocrText, sessionID string, ents *entities.ExtractedEntities) (*AgentResponse, error) {
	taskID := uuid.NewString()

	if g.store != nil {
		if err := g.store.MarkStatus(ctx, taskID, results.StatusQueued); err != nil {
			return nil, fmt.Errorf("mark queued: %w", err)
		}
	}
	task := agent.Task{TaskID: taskID, SessionID: sessionID, OCRText: ocrText}
	if err := g.broker.Enqueue(ctx, task); err != nil {
		// No worker will ever pick this task up; the queued stub must not
		// keep reporting it as pending.
		if g.store != nil {
			if mErr := g.store.MarkStatus(ctx, taskID, results.StatusFailed); mErr != nil {
				slog.Warn("[Gate] Orphaned stub cleanup failed", "task_id", taskID, "error", mErr)
			}
		}
		return nil, err
	}

	return &AgentResponse{
		Type:          "agent",
		TaskID:        taskID,
		WSURL:         "/ws/agent-progress/" + taskID,
		EstimatedTime: estimateSeconds(ents.Count()),
		EntitiesFound: ents.Count(),
	}, nil
}

func (g *Gate) fastPath(ctx context.Context, ocrText string) *SimpleResponse {
	start := time.Now()
	result := g.classifier.Classify(ctx, ocrText)
	if g.metrics != nil {
		g.metrics.FastPathLatency.Observe(time.Since(start).Seconds())
	}
	return &SimpleResponse{Type: "simple", Result: result}
}

// estimateSeconds gives the client a rough completion estimate: a fixed
// pipeline cost plus per-entity tool time, capped at the task budget.
func estimateSeconds(entityCount int) int {
	est := 5 + entityCount*8
	if est > 60 {
		est = 60
	}
	return est
}
