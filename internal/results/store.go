// Package results persists finished and in-flight analysis verdicts.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Task statuses surfaced by the status endpoint.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when no record exists for a task.
var ErrNotFound = errors.New("result not found")

// Record is one task's stored outcome. Entities and Evidence are stored as
// JSONB documents; their shape belongs to the orchestrator.
type Record struct {
	ID               int64           `json:"-"`
	TaskID           string          `json:"task_id"`
	SessionID        string          `json:"session_id,omitempty"`
	Status           string          `json:"status"`
	EntitiesFound    int             `json:"entities_found"`
	Entities         json.RawMessage `json:"entities,omitempty"`
	Evidence         json.RawMessage `json:"evidence,omitempty"`
	RiskLevel        string          `json:"risk_level,omitempty"`
	Confidence       float64         `json:"confidence"`
	ReasoningText    string          `json:"reasoning_text,omitempty"`
	ReasoningMethod  string          `json:"reasoning_method,omitempty"`
	ToolsUsed        []string        `json:"tools_used,omitempty"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Store is the persistence surface used by the orchestrator and the status
// endpoint.
type Store interface {
	// Save upserts the record keyed by task_id.
	Save(ctx context.Context, rec *Record) error
	// MarkStatus transitions a task's status, creating a stub record if none
	// exists yet.
	MarkStatus(ctx context.Context, taskID, status string) error
	// GetByTaskID returns the record or ErrNotFound.
	GetByTaskID(ctx context.Context, taskID string) (*Record, error)
	// PurgeOlderThan deletes records past the retention window and reports
	// how many were removed.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
	Close() error
}
