// Package agent contains the orchestrator that fans entity evidence tools out
// per task and the reasoner that turns collected evidence into a verdict.
package agent

import (
	"time"
)

// Reasoning methods recorded on every verdict.
const (
	MethodLLM       = "llm"
	MethodHeuristic = "heuristic"
)

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Tool names as they appear in evidence and progress events.
const (
	ToolScamRegistry   = "scam_db"
	ToolWebSearch      = "exa_search"
	ToolDomainRep      = "domain_reputation"
	ToolPhoneValidator = "phone_validator"
	ToolCompanyVer     = "company_verification"
	ToolCompanyReg     = "company_registry"
)

// Evidence is one tool invocation's outcome for one entity. Payload holds the
// tool's native result struct; it is serialized as-is into the stored record.
type Evidence struct {
	ToolName        string `json:"tool_name"`
	EntityType      string `json:"entity_type"`
	EntityValue     string `json:"entity_value"`
	Payload         any    `json:"payload,omitempty"`
	Success         bool   `json:"success"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// Result is the full verdict for one task.
type Result struct {
	TaskID           string     `json:"task_id"`
	SessionID        string     `json:"session_id,omitempty"`
	EntitiesFound    int        `json:"entities_found"`
	Evidence         []Evidence `json:"evidence"`
	RiskLevel        string     `json:"risk_level"`
	Confidence       float64    `json:"confidence"`
	ReasoningText    string     `json:"reasoning_text"`
	ReasoningMethod  string     `json:"reasoning_method"`
	EvidenceUsed     []string   `json:"evidence_used,omitempty"`
	ToolsUsed        []string   `json:"tools_used"`
	ProcessingTimeMS int64      `json:"processing_time_ms"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Task is one unit of work, usually dequeued from the broker.
type Task struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id,omitempty"`
	OCRText   string `json:"ocr_text"`
}

func riskLevelFor(score int) string {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
