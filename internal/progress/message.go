// Package progress streams per-task analysis progress from workers to
// WebSocket clients over the shared pub/sub bus.
package progress

import (
	"encoding/json"
	"time"
)

// Step identifies where the analysis pipeline is for a task.
type Step string

const (
	StepConnected           Step = "connected"
	StepEntityExtraction    Step = "entity_extraction"
	StepToolExecution       Step = "tool_execution"
	StepScamDB              Step = "scam_db"
	StepExaSearch           Step = "exa_search"
	StepDomainReputation    Step = "domain_reputation"
	StepPhoneValidator      Step = "phone_validator"
	StepCompanyVerification Step = "company_verification"
	StepReasoning           Step = "reasoning"
	StepCompleted           Step = "completed"
	StepFailed              Step = "failed"
)

// Terminal reports whether the step ends the stream.
func (s Step) Terminal() bool { return s == StepCompleted || s == StepFailed }

// Message is one progress event on the task's channel.
type Message struct {
	TaskID    string `json:"task_id"`
	Step      Step   `json:"step"`
	Tool      string `json:"tool,omitempty"`
	Message   string `json:"message,omitempty"`
	Percent   int    `json:"percent"`
	Timestamp string `json:"timestamp"`
	Error     bool   `json:"error"`
	Heartbeat bool   `json:"heartbeat,omitempty"`
}

// ChannelFor returns the pub/sub channel name for a task.
func ChannelFor(taskID string) string { return "agent_progress:" + taskID }

// NewMessage stamps a progress event with the current time.
func NewMessage(taskID string, step Step, percent int) Message {
	return Message{
		TaskID:    taskID,
		Step:      step,
		Percent:   percent,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Decode parses a raw pub/sub payload. Malformed payloads return an error and
// are dropped by consumers.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
