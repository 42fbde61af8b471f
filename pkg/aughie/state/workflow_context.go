package state

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus is the closed status set for a workflow context.
type WorkflowStatus string

const (
	WorkflowActive     WorkflowStatus = "active"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
	WorkflowCancelled  WorkflowStatus = "cancelled"
	WorkflowTerminated WorkflowStatus = "terminated"
)

// HistoryEvent is one timestamped entry in a workflow's append-only log.
type HistoryEvent struct {
	Timestamp    string         `json:"timestamp"`
	EventType    string         `json:"event_type"`
	Message      string         `json:"message"`
	StageAtEvent string         `json:"stage_at_event,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// WorkflowContext tracks the state and history of one multi-step
// workflow. Once moved to the completed list it is immutable except for
// its membership there.
type WorkflowContext struct {
	WorkflowID   string         `json:"workflow_id"`
	WorkflowType string         `json:"workflow_type"`
	Status       WorkflowStatus `json:"status"`
	CurrentStage string         `json:"current_stage,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	History      []HistoryEvent `json:"history"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewWorkflowContext creates an active workflow context with a
// generated id.
func NewWorkflowContext(workflowType string) *WorkflowContext {
	now := time.Now().UTC()
	return &WorkflowContext{
		WorkflowID:   NewWorkflowID(),
		WorkflowType: workflowType,
		Status:       WorkflowActive,
		Data:         make(map[string]any),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewWorkflowID generates a workflow id of the form "wf_" + 12 hex chars.
func NewWorkflowID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "wf_" + hex[:12]
}

// AddHistoryEvent appends a structured event and bumps UpdatedAt.
// Stage defaults to the context's current stage when empty.
func (w *WorkflowContext) AddHistoryEvent(eventType, msg, stage string, details map[string]any) {
	if stage == "" {
		stage = w.CurrentStage
	}
	if details == nil {
		details = map[string]any{}
	}
	w.History = append(w.History, HistoryEvent{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		EventType:    eventType,
		Message:      msg,
		StageAtEvent: stage,
		Details:      details,
	})
	w.UpdatedAt = time.Now().UTC()
}
