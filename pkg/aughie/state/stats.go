package state

import (
	"log/slog"
	"time"
)

// DegradedAfterConsecutiveFailures is the consecutive-failure streak at
// which a tool is flagged as degraded. A single success resets the streak.
const DegradedAfterConsecutiveFailures = 5

// MaxScratchpadEntries bounds the short-term scratchpad memory.
const MaxScratchpadEntries = 10

// ToolUsageStats tracks per-tool counters for one session.
// Invariant: Calls >= Successes + Failures at all times.
type ToolUsageStats struct {
	Calls               int   `json:"calls"`
	Successes           int   `json:"successes"`
	Failures            int   `json:"failures"`
	TotalExecutionMS    int64 `json:"total_execution_ms"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	IsDegraded          bool  `json:"is_degraded"`
	LastCallUnix        int64 `json:"last_call_timestamp"`
}

// SessionStats holds cumulative debug statistics for the session.
// All counters are non-negative.
type SessionStats struct {
	LLMTokensUsed     int64                      `json:"llm_tokens_used"`
	LLMCalls          int                        `json:"llm_calls"`
	LLMCallDurationMS int64                      `json:"llm_api_call_duration_ms"`
	ToolCalls         int                        `json:"tool_calls"`
	ToolExecutionMS   int64                      `json:"tool_execution_ms"`
	FailedToolCalls   int                        `json:"failed_tool_calls"`
	TotalDurationMS   int64                      `json:"total_duration_ms"`
	TotalAgentTurnMS  int64                      `json:"total_agent_turn_ms"`
	ToolUsage         map[string]*ToolUsageStats `json:"tool_usage"`
}

// NewSessionStats returns zeroed stats with an initialized tool map.
func NewSessionStats() SessionStats {
	return SessionStats{ToolUsage: make(map[string]*ToolUsageStats)}
}

// ScratchpadEntry is one short tool-result summary kept in the
// most-recent-first scratchpad.
type ScratchpadEntry struct {
	ToolName  string    `json:"tool_name"`
	Summary   string    `json:"summary"`
	ToolInput string    `json:"tool_input"`
	Result    string    `json:"result"`
	IsError   bool      `json:"is_error"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateToolUsage upserts the per-tool counters for one execution.
// Flips IsDegraded once ConsecutiveFailures reaches the threshold; a
// success resets the streak and clears the flag.
func (s *State) UpdateToolUsage(toolName string, durationMS int64, success bool) {
	if s.Stats.ToolUsage == nil {
		s.Stats.ToolUsage = make(map[string]*ToolUsageStats)
	}

	stats := s.Stats.ToolUsage[toolName]
	if stats == nil {
		stats = &ToolUsageStats{}
		s.Stats.ToolUsage[toolName] = stats
	}

	stats.Calls++
	stats.TotalExecutionMS += durationMS
	stats.LastCallUnix = time.Now().Unix()

	s.Stats.ToolCalls++
	s.Stats.ToolExecutionMS += durationMS
	if !success {
		s.Stats.FailedToolCalls++
	}

	if success {
		stats.Successes++
		stats.ConsecutiveFailures = 0
		stats.IsDegraded = false
	} else {
		stats.Failures++
		stats.ConsecutiveFailures++
		if stats.ConsecutiveFailures >= DegradedAfterConsecutiveFailures {
			stats.IsDegraded = true
			s.logger().Warn("tool marked as degraded",
				"tool", toolName,
				"consecutive_failures", stats.ConsecutiveFailures,
			)
		}
	}
}

// RecordLLMCall accumulates the session-level LLM counters for one
// completion call.
func (s *State) RecordLLMCall(durationMS, tokens int64) {
	s.Stats.LLMCalls++
	s.Stats.LLMCallDurationMS += durationMS
	s.Stats.LLMTokensUsed += tokens
}

// RecordTurnDuration stores the wall-clock duration of the last
// completed turn.
func (s *State) RecordTurnDuration(durationMS int64) {
	s.Stats.TotalDurationMS = durationMS
	s.Stats.TotalAgentTurnMS = durationMS
}

// AddScratchpadEntry prepends an entry, trimming to MaxScratchpadEntries.
// The most recently added entry is always first.
func (s *State) AddScratchpadEntry(entry ScratchpadEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.Scratchpad = append([]ScratchpadEntry{entry}, s.Scratchpad...)
	if len(s.Scratchpad) > MaxScratchpadEntries {
		s.Scratchpad = s.Scratchpad[:MaxScratchpadEntries]
	}
	slog.Debug("scratchpad entry added", "tool", entry.ToolName, "size", len(s.Scratchpad))
}
