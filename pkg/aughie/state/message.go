// Package state implements the conversation state aggregate: the typed
// message log, session statistics, scratchpad memory, and workflow
// contexts, together with the validation, repair, and schema migration
// machinery that keeps a state object usable no matter what shape it
// arrives in.
package state

import (
	"time"
)

// Role identifies the sender of a message. The set is closed; anything
// else is coerced to RoleUser by CoerceRole.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleSystem   Role = "system"
	RoleFunction Role = "function"
)

// KnownRoles is the closed set of valid roles.
var KnownRoles = map[Role]bool{
	RoleUser:     true,
	RoleModel:    true,
	RoleSystem:   true,
	RoleFunction: true,
}

// CoerceRole maps an arbitrary role string onto the closed role set.
// Unknown strings become RoleUser.
func CoerceRole(s string) Role {
	r := Role(s)
	if KnownRoles[r] {
		return r
	}
	return RoleUser
}

// PartType tags the variant held by a Part.
type PartType string

const (
	PartText             PartType = "text"
	PartFunctionCall     PartType = "function_call"
	PartFunctionResponse PartType = "function_response"
)

// FunctionCall describes a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse carries a tool's output back into the message log.
type FunctionResponse struct {
	Name    string `json:"name"`
	Content any    `json:"content"`
}

// Part is one element of a message: exactly one variant per part,
// selected by Type. Parts are immutable once constructed; to change a
// message's parts the whole Message is replaced.
type Part struct {
	Type             PartType          `json:"type"`
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// NewTextPart builds a text part.
func NewTextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// NewFunctionCallPart builds a function-call part.
func NewFunctionCallPart(name string, args map[string]any) Part {
	return Part{Type: PartFunctionCall, FunctionCall: &FunctionCall{Name: name, Args: args}}
}

// NewFunctionResponsePart builds a function-response part.
func NewFunctionResponsePart(name string, content any) Part {
	return Part{Type: PartFunctionResponse, FunctionResponse: &FunctionResponse{Name: name, Content: content}}
}

// Message is the typed envelope around parsed content. A Message is
// replaced, never mutated, to change its parts.
type Message struct {
	Role       Role           `json:"role"`
	Parts      []Part         `json:"parts"`
	RawText    string         `json:"raw_text,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsInternal bool           `json:"is_internal,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
}

// Text returns the message's textual content. It never fails: when no
// textual content exists it returns "".
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	if m.RawText != "" {
		return m.RawText
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// HistoryRecord is the simplified role/content/timestamp form used for
// LLM prompting and history display.
type HistoryRecord struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}
