package state

import (
	"fmt"
	"strings"
	"testing"
)

func TestAddMessage(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		s := New()
		s.AddMessage(RoleUser, "hello world")
		if len(s.Messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(s.Messages))
		}
		if s.Messages[0].Text() != "hello world" {
			t.Errorf("expected text preserved, got %q", s.Messages[0].Text())
		}
	})

	t.Run("map content", func(t *testing.T) {
		s := New()
		s.AddMessage(RoleModel, map[string]any{"text": "response"})
		if got := s.Messages[0].Text(); got != "response" {
			t.Errorf("expected %q, got %q", "response", got)
		}
		if s.Messages[0].Role != RoleModel {
			t.Errorf("expected model role, got %q", s.Messages[0].Role)
		}
	})

	t.Run("long space-free text is discarded", func(t *testing.T) {
		s := New()
		s.AddMessage(RoleUser, strings.Repeat("x", 150))
		if len(s.Messages) != 0 {
			t.Errorf("expected character-split message discarded, have %d messages", len(s.Messages))
		}
	})

	t.Run("long text with spaces is kept", func(t *testing.T) {
		s := New()
		s.AddMessage(RoleUser, strings.Repeat("word ", 40))
		if len(s.Messages) != 1 {
			t.Errorf("expected message kept, have %d", len(s.Messages))
		}
	})

	t.Run("unknown role coerced to user", func(t *testing.T) {
		s := New()
		s.AddMessage(Role("assistant"), "hi")
		if s.Messages[0].Role != RoleUser {
			t.Errorf("expected coerced user role, got %q", s.Messages[0].Role)
		}
	})
}

func TestLastUserMessage(t *testing.T) {
	s := New()
	if got := s.LastUserMessage(); got != "" {
		t.Errorf("expected empty for no messages, got %q", got)
	}

	s.AddMessage(RoleUser, "first")
	s.AddMessage(RoleModel, "reply")
	s.AddMessage(RoleUser, "second")
	s.AddMessage(RoleModel, "reply two")

	if got := s.LastUserMessage(); got != "second" {
		t.Errorf("expected last user message %q, got %q", "second", got)
	}
}

func TestMessageHistory(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.AddMessage(RoleUser, fmt.Sprintf("message %d", i))
	}

	t.Run("limit applies", func(t *testing.T) {
		hist := s.MessageHistory(3)
		if len(hist) != 3 {
			t.Fatalf("expected 3 records, got %d", len(hist))
		}
		if hist[2].Content != "message 9" {
			t.Errorf("expected newest last, got %q", hist[2].Content)
		}
	})

	t.Run("zero means unlimited", func(t *testing.T) {
		if got := len(s.MessageHistory(0)); got != 10 {
			t.Errorf("expected all 10 records, got %d", got)
		}
	})
}

func TestUpdateToolUsage(t *testing.T) {
	t.Run("counters accumulate", func(t *testing.T) {
		s := New()
		s.UpdateToolUsage("jira_get_issues_by_user", 120, true)
		s.UpdateToolUsage("jira_get_issues_by_user", 80, false)

		stats := s.Stats.ToolUsage["jira_get_issues_by_user"]
		if stats == nil {
			t.Fatal("expected stats entry")
		}
		if stats.Calls != 2 || stats.Successes != 1 || stats.Failures != 1 {
			t.Errorf("unexpected counters: %+v", stats)
		}
		if stats.TotalExecutionMS != 200 {
			t.Errorf("expected 200ms accumulated, got %d", stats.TotalExecutionMS)
		}
		if stats.Calls < stats.Successes+stats.Failures {
			t.Error("invariant violated: calls < successes+failures")
		}
	})

	t.Run("session counters accumulate", func(t *testing.T) {
		s := New()
		s.UpdateToolUsage("jira_get_issues_by_user", 120, true)
		s.UpdateToolUsage("github_list_repositories", 80, false)

		if s.Stats.ToolCalls != 2 {
			t.Errorf("ToolCalls = %d, want 2", s.Stats.ToolCalls)
		}
		if s.Stats.ToolExecutionMS != 200 {
			t.Errorf("ToolExecutionMS = %d, want 200", s.Stats.ToolExecutionMS)
		}
		if s.Stats.FailedToolCalls != 1 {
			t.Errorf("FailedToolCalls = %d, want 1", s.Stats.FailedToolCalls)
		}
	})

	t.Run("llm counters accumulate", func(t *testing.T) {
		s := New()
		s.RecordLLMCall(300, 1500)
		s.RecordLLMCall(200, 500)

		if s.Stats.LLMCalls != 2 {
			t.Errorf("LLMCalls = %d, want 2", s.Stats.LLMCalls)
		}
		if s.Stats.LLMCallDurationMS != 500 {
			t.Errorf("LLMCallDurationMS = %d, want 500", s.Stats.LLMCallDurationMS)
		}
		if s.Stats.LLMTokensUsed != 2000 {
			t.Errorf("LLMTokensUsed = %d, want 2000", s.Stats.LLMTokensUsed)
		}
	})

	t.Run("degraded after consecutive failures", func(t *testing.T) {
		s := New()
		for i := 0; i < DegradedAfterConsecutiveFailures; i++ {
			s.UpdateToolUsage("github_list_repositories", 10, false)
		}
		stats := s.Stats.ToolUsage["github_list_repositories"]
		if !stats.IsDegraded {
			t.Error("expected tool degraded after threshold failures")
		}

		s.UpdateToolUsage("github_list_repositories", 10, true)
		if stats.ConsecutiveFailures != 0 {
			t.Errorf("expected streak reset on success, got %d", stats.ConsecutiveFailures)
		}
		if stats.IsDegraded {
			t.Error("expected degraded flag cleared after success")
		}
	})
}

func TestScratchpadBound(t *testing.T) {
	s := New()
	for i := 0; i < 15; i++ {
		s.AddScratchpadEntry(ScratchpadEntry{
			ToolName: fmt.Sprintf("tool_%d", i),
			Summary:  fmt.Sprintf("summary %d", i),
		})
	}

	if len(s.Scratchpad) != MaxScratchpadEntries {
		t.Fatalf("expected exactly %d entries, got %d", MaxScratchpadEntries, len(s.Scratchpad))
	}
	if s.Scratchpad[0].ToolName != "tool_14" {
		t.Errorf("expected most recent entry first, got %q", s.Scratchpad[0].ToolName)
	}
	if s.Scratchpad[9].ToolName != "tool_5" {
		t.Errorf("expected oldest kept entry tool_5, got %q", s.Scratchpad[9].ToolName)
	}
}

func TestEndWorkflow(t *testing.T) {
	t.Run("moves active to completed exactly once", func(t *testing.T) {
		s := New()
		wf := s.StartWorkflow("list_jira_tickets")

		if !s.EndWorkflow(wf.WorkflowID, WorkflowCompleted) {
			t.Fatal("expected EndWorkflow to succeed")
		}
		if _, still := s.ActiveWorkflows[wf.WorkflowID]; still {
			t.Error("workflow still in active set")
		}
		if len(s.CompletedWorkflows) != 1 {
			t.Fatalf("expected 1 completed workflow, got %d", len(s.CompletedWorkflows))
		}
		if s.CompletedWorkflows[0].Status != WorkflowCompleted {
			t.Errorf("expected completed status, got %q", s.CompletedWorkflows[0].Status)
		}

		last := s.CompletedWorkflows[0].History[len(s.CompletedWorkflows[0].History)-1]
		if last.EventType != "WORKFLOW_COMPLETED" {
			t.Errorf("expected terminal history event, got %q", last.EventType)
		}

		// Ending again is a reported no-op, not an error.
		if s.EndWorkflow(wf.WorkflowID, WorkflowCompleted) {
			t.Error("expected second EndWorkflow to return false")
		}
		if len(s.CompletedWorkflows) != 1 {
			t.Error("completed list grew on repeated end")
		}
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := New()
		if s.EndWorkflow("wf_missing", WorkflowFailed) {
			t.Error("expected false for unknown workflow id")
		}
	})
}

func TestResetTurnState(t *testing.T) {
	s := New()
	s.AddMessage(RoleUser, "keep me")
	s.UpdateToolUsage("some_tool", 5, true)
	s.CurrentStatusMessage = "Thinking..."
	s.LastStepError = "boom"
	s.ToolExecutionFeedback = []map[string]any{{"tool": "x"}}

	s.ResetTurnState()

	if s.CurrentStatusMessage != "" || s.LastStepError != "" || s.ToolExecutionFeedback != nil {
		t.Error("expected transient fields cleared")
	}
	if s.LastInteractionStatus != "PROCESSING" {
		t.Errorf("expected PROCESSING status, got %q", s.LastInteractionStatus)
	}
	if len(s.Messages) != 1 {
		t.Error("persistent messages must survive turn reset")
	}
	if s.Stats.ToolUsage["some_tool"] == nil {
		t.Error("persistent stats must survive turn reset")
	}
}

func TestClearChat(t *testing.T) {
	s := New()
	id := s.SessionID
	s.AddMessage(RoleUser, "hello")
	s.UpdateToolUsage("a_tool", 10, true)
	s.AddScratchpadEntry(ScratchpadEntry{ToolName: "a_tool"})
	wf := s.StartWorkflow("web_search")

	s.ClearChat()

	if len(s.Messages) != 0 {
		t.Error("expected messages cleared")
	}
	if len(s.Stats.ToolUsage) != 0 {
		t.Error("expected stats reset")
	}
	if len(s.Scratchpad) != 0 {
		t.Error("expected scratchpad cleared")
	}
	if s.SessionID != id {
		t.Error("session identity must be preserved")
	}
	if s.LastInteractionStatus != "CLEARED" {
		t.Errorf("expected CLEARED status, got %q", s.LastInteractionStatus)
	}
	if len(s.ActiveWorkflows) != 0 {
		t.Error("expected active workflows ended on clear")
	}
	if len(s.CompletedWorkflows) != 1 || s.CompletedWorkflows[0].WorkflowID != wf.WorkflowID {
		t.Fatalf("expected the cleared workflow in the completed list, got %d", len(s.CompletedWorkflows))
	}
	if s.CompletedWorkflows[0].Status != WorkflowCancelled {
		t.Errorf("expected cancelled status, got %q", s.CompletedWorkflows[0].Status)
	}
}

func TestCleanupPreservesSystemMessages(t *testing.T) {
	s := New()
	s.AddMessage(RoleSystem, "system one")
	for i := 0; i < 100; i++ {
		s.AddMessage(RoleUser, fmt.Sprintf("user %d", i))
	}
	s.AddMessage(RoleSystem, "system two")
	for i := 0; i < 100; i++ {
		s.AddMessage(RoleModel, fmt.Sprintf("model %d", i))
	}
	s.AddMessage(RoleSystem, "system three")

	s.CleanupMessages(100)

	if len(s.Messages) != 103 {
		t.Fatalf("expected 3 system + 100 recent, got %d", len(s.Messages))
	}

	var systems []string
	for i := range s.Messages {
		if s.Messages[i].Role == RoleSystem {
			systems = append(systems, s.Messages[i].Text())
		}
	}
	want := []string{"system one", "system two", "system three"}
	if len(systems) != 3 {
		t.Fatalf("expected 3 system messages kept, got %d", len(systems))
	}
	for i := range want {
		if systems[i] != want[i] {
			t.Errorf("system message order changed: got %v", systems)
			break
		}
	}
}

func TestCoerceRole(t *testing.T) {
	cases := map[string]Role{
		"user":      RoleUser,
		"model":     RoleModel,
		"system":    RoleSystem,
		"function":  RoleFunction,
		"assistant": RoleUser,
		"":          RoleUser,
		"ADMIN":     RoleUser,
	}
	for in, want := range cases {
		if got := CoerceRole(in); got != want {
			t.Errorf("CoerceRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageTextNeverFails(t *testing.T) {
	var nilMsg *Message
	if nilMsg.Text() != "" {
		t.Error("nil message must return empty text")
	}

	empty := Message{}
	if empty.Text() != "" {
		t.Error("empty message must return empty text")
	}

	fn := Message{Parts: []Part{NewFunctionCallPart("tool", nil)}}
	if fn.Text() != "" {
		t.Error("function-call-only message must return empty text")
	}
}
