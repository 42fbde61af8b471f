package state

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/aughie/pkg/aughie/message"
)

// CurrentVersion is the current state schema version.
const CurrentVersion = "v4_bot"

// KnownVersions is the closed set of schema versions ever shipped.
var KnownVersions = map[string]bool{
	"v1": true, "v2": true, "v3": true, "v4": true, CurrentVersion: true,
}

// Message retention limits enforced by cleanup and repair.
const (
	HardMessageCap    = 1000
	TrimTargetCount   = 500
	discardNoSpaceLen = 100
)

// UserRef is a weak reference to the current user. The profile itself
// is owned by the user store, not by the conversation state.
type UserRef struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

// State is the aggregate root for one conversation session: the message
// log, identity, statistics, scratchpad, and workflow contexts.
//
// A State instance is owned by exactly one in-flight turn at a time;
// callers serialize per-session access externally (see bot.Assistant).
type State struct {
	Version       string    `json:"version"`
	SessionID     string    `json:"session_id"`
	CurrentUserID string    `json:"current_user_id,omitempty"`
	CurrentUser   *UserRef  `json:"current_user,omitempty"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Stats      SessionStats      `json:"session_stats"`
	Scratchpad []ScratchpadEntry `json:"scratchpad,omitempty"`

	ActiveWorkflows    map[string]*WorkflowContext `json:"active_workflows"`
	CompletedWorkflows []*WorkflowContext          `json:"completed_workflows"`

	// Extra holds unknown fields carried over from older schema
	// versions, for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`

	// Transient per-turn fields. Cleared by ResetTurnState at the start
	// of every user turn, never persisted.
	CurrentStatusMessage  string           `json:"-"`
	ToolExecutionFeedback []map[string]any `json:"-"`
	LastStepError         string           `json:"-"`
	LastInteractionStatus string           `json:"-"`

	log *slog.Logger
}

// New creates an empty current-version state with a fresh session id.
func New() *State {
	now := time.Now()
	return &State{
		Version:               CurrentVersion,
		SessionID:             uuid.NewString(),
		Messages:              []Message{},
		CreatedAt:             now,
		UpdatedAt:             now,
		Stats:                 NewSessionStats(),
		ActiveWorkflows:       make(map[string]*WorkflowContext),
		CompletedWorkflows:    []*WorkflowContext{},
		LastInteractionStatus: "COMPLETED",
	}
}

// NewWithSessionID creates an empty state bound to a specific session id.
func NewWithSessionID(sessionID string) *State {
	s := New()
	s.SessionID = sessionID
	return s
}

// SetLogger attaches a logger used for state-level diagnostics.
func (s *State) SetLogger(logger *slog.Logger) {
	s.log = logger
}

func (s *State) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// AddMessage normalizes content through the safe parser and appends it
// to the log. Long space-free text (the character-split signature) is
// silently discarded: logged, never an error. Any unexpected failure
// during construction inserts a clearly marked synthetic error message
// instead of losing the turn.
func (s *State) AddMessage(role Role, content any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("failed to add message", "reason", r)
			fallback := fmt.Sprintf("[Message processing error: %s]", truncate(message.ExtractText(content), 100))
			s.Messages = append(s.Messages, Message{
				Role:      CoerceRole(string(role)),
				Parts:     []Part{NewTextPart(fallback)},
				RawText:   fallback,
				Timestamp: time.Now(),
				IsError:   true,
			})
		}
	}()

	parsed := message.Parse(content)
	text := parsed.Text()

	if !message.ValidateTextIntegrity(text) {
		s.logger().Warn("text integrity issue detected on add", "length", len(text))
		if len(text) > discardNoSpaceLen && !strings.Contains(text, " ") {
			// Character-split signature: drop the message entirely
			// rather than poisoning the history.
			s.logger().Error("discarding possible character-split message", "prefix", truncate(text, 50))
			return
		}
	}

	parts := make([]Part, 0, len(parsed.Parts))
	for _, p := range parsed.Parts {
		parts = append(parts, NewTextPart(p.Content))
	}

	s.Messages = append(s.Messages, Message{
		Role:      CoerceRole(string(role)),
		Parts:     parts,
		RawText:   parsed.RawText,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
	s.logger().Debug("message added", "role", role, "content_length", len(text))
}

// AddParts appends a message built from pre-constructed parts, for
// programmatic callers (tool responses, internal notes).
func (s *State) AddParts(role Role, parts []Part, opts ...MessageOption) {
	if len(parts) == 0 {
		s.logger().Warn("add message skipped: no parts", "role", role)
		return
	}
	msg := Message{
		Role:      CoerceRole(string(role)),
		Parts:     parts,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&msg)
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// MessageOption customizes a programmatically added message.
type MessageOption func(*Message)

// AsInternal marks the message as internal (not user-visible).
func AsInternal() MessageOption { return func(m *Message) { m.IsInternal = true } }

// AsError marks the message as an error record.
func AsError() MessageOption { return func(m *Message) { m.IsError = true } }

// WithMetadata attaches free-form metadata.
func WithMetadata(md map[string]any) MessageOption {
	return func(m *Message) { m.Metadata = md }
}

// LastUserMessage returns the text of the most recent user message, or
// "" when none exists.
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Text()
		}
	}
	return ""
}

// MessageHistory returns the last limit messages (0 = unlimited) as
// simplified records. A failure serializing any single message yields a
// synthetic system record rather than aborting the whole call.
func (s *State) MessageHistory(limit int) []HistoryRecord {
	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	history := make([]HistoryRecord, 0, len(msgs))
	for i := range msgs {
		rec, err := historyRecord(&msgs[i])
		if err != nil {
			s.logger().Warn("error serializing message for history", "err", err)
			history = append(history, HistoryRecord{
				Role:      string(RoleSystem),
				Content:   fmt.Sprintf("[Error processing message: %v]", err),
				Timestamp: time.Now().Format(time.RFC3339),
			})
			continue
		}
		history = append(history, rec)
	}
	return history
}

func historyRecord(m *Message) (rec HistoryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("message serialization panic: %v", r)
		}
	}()
	rec = HistoryRecord{
		Role:    string(m.Role),
		Content: m.Text(),
	}
	if !m.Timestamp.IsZero() {
		rec.Timestamp = m.Timestamp.Format(time.RFC3339)
	}
	return rec, nil
}

// StartWorkflow creates a new active workflow context and registers it.
func (s *State) StartWorkflow(workflowType string) *WorkflowContext {
	if s.ActiveWorkflows == nil {
		s.ActiveWorkflows = make(map[string]*WorkflowContext)
	}
	wf := NewWorkflowContext(workflowType)
	wf.AddHistoryEvent("WORKFLOW_STARTED", fmt.Sprintf("Workflow %q started.", workflowType), "", nil)
	s.ActiveWorkflows[wf.WorkflowID] = wf
	s.logger().Info("workflow started", "workflow_id", wf.WorkflowID, "type", workflowType)
	return wf
}

// EndWorkflow moves an active workflow to the completed list, stamping
// the final status and a terminal history event. Returns false, logged
// and without side effects, when the id is not currently active: ending
// an already-ended or unknown workflow is not an error.
func (s *State) EndWorkflow(workflowID string, endStatus WorkflowStatus) bool {
	wf, ok := s.ActiveWorkflows[workflowID]
	if !ok {
		s.logger().Warn("attempted to end workflow not in active set", "workflow_id", workflowID)
		return false
	}
	delete(s.ActiveWorkflows, workflowID)

	wf.Status = endStatus
	eventType := "WORKFLOW_COMPLETED"
	switch endStatus {
	case WorkflowFailed:
		eventType = "WORKFLOW_FAILED"
	case WorkflowCancelled:
		eventType = "WORKFLOW_CANCELLED"
	case WorkflowTerminated:
		eventType = "WORKFLOW_TERMINATED"
	}
	wf.AddHistoryEvent(eventType,
		fmt.Sprintf("Workflow %q (ID: %s) ended with status: %s.", wf.WorkflowType, workflowID, endStatus),
		"", map[string]any{"final_status": string(endStatus)})

	s.CompletedWorkflows = append(s.CompletedWorkflows, wf)
	s.logger().Info("workflow ended",
		"workflow_id", workflowID, "type", wf.WorkflowType, "status", endStatus)
	return true
}

// ResetTurnState clears the transient per-turn fields. Called exactly
// once at the start of each new user turn; persistent fields (messages,
// stats, workflows) are untouched.
func (s *State) ResetTurnState() {
	s.CurrentStatusMessage = ""
	s.ToolExecutionFeedback = nil
	s.LastStepError = ""
	s.LastInteractionStatus = "PROCESSING"
	s.logger().Debug("turn state reset")
}

// ClearChat resets messages, statistics, scratchpad, workflows, and
// transient fields, keeping the same session identity. Equivalent to
// starting a brand new session. Workflows still active are ended as
// cancelled so their history survives in the completed list.
func (s *State) ClearChat() {
	for id := range s.ActiveWorkflows {
		s.EndWorkflow(id, WorkflowCancelled)
	}
	s.Messages = []Message{}
	s.Stats = NewSessionStats()
	s.Scratchpad = nil
	s.ResetTurnState()
	s.LastInteractionStatus = "CLEARED"
	s.UpdatedAt = time.Now()
	s.logger().Info("chat history and session statistics cleared", "session_id", s.SessionID)
}

// CleanupMessages trims the log to the last keepLastN non-system
// messages. System messages are always preserved, in their relative
// order.
func (s *State) CleanupMessages(keepLastN int) int {
	if keepLastN <= 0 || len(s.Messages) <= keepLastN {
		return 0
	}

	nonSystem := 0
	for i := range s.Messages {
		if s.Messages[i].Role != RoleSystem {
			nonSystem++
		}
	}
	if nonSystem <= keepLastN {
		return 0
	}

	drop := nonSystem - keepLastN
	kept := make([]Message, 0, len(s.Messages)-drop)
	dropped := 0
	for i := range s.Messages {
		if s.Messages[i].Role != RoleSystem && dropped < drop {
			dropped++
			continue
		}
		kept = append(kept, s.Messages[i])
	}
	s.Messages = kept
	s.UpdatedAt = time.Now()
	s.logger().Info("message history trimmed", "dropped", dropped, "remaining", len(s.Messages))
	return dropped
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
