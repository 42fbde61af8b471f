package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jholhewres/aughie/pkg/aughie/access"
	"github.com/jholhewres/aughie/pkg/aughie/config"
	"github.com/jholhewres/aughie/pkg/aughie/state"
	"github.com/jholhewres/aughie/pkg/aughie/storage"
)

type stubBotExecutor struct {
	results map[string]any
}

func (s *stubBotExecutor) ExecuteTool(ctx context.Context, toolName string, params map[string]any, st *state.State) (any, error) {
	if res, ok := s.results[toolName]; ok {
		return res, nil
	}
	return map[string]any{"status": "SUCCESS"}, nil
}

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Generate(ctx context.Context, history []state.HistoryRecord) (Completion, error) {
	return Completion{Text: s.reply, TokensUsed: 42}, s.err
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.FallbackEmail = "team@example.com"
	return cfg
}

func TestHandleMessageWorkflowTurn(t *testing.T) {
	store := storage.NewMemoryStore()
	exec := &stubBotExecutor{results: map[string]any{
		"jira_get_issues_by_user": map[string]any{
			"status": "SUCCESS",
			"data": []any{
				map[string]any{"key": "LM-1", "summary": "Fix login bug", "status": "Open"},
			},
		},
	}}
	a := NewAssistant(testConfig(), store, exec, nil, nil)
	a.RegisterUser("u1", "dev@example.com", access.RoleDeveloper)

	reply, err := a.HandleMessage(context.Background(), "conv_test", "u1", "show my jira tickets")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if !strings.Contains(reply, "LM-1") {
		t.Errorf("reply %q does not mention the ticket", reply)
	}

	// The turn must be persisted: user message, model reply, and the
	// completed workflow.
	stored, err := store.Read([]string{"conv_test"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	raw, ok := stored["conv_test"]
	if !ok {
		t.Fatal("no checkpoint written for conv_test")
	}
	var st state.State
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("checkpoint does not unmarshal: %v", err)
	}
	if len(st.Messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(st.Messages))
	}
	if st.Messages[0].Text() != "show my jira tickets" {
		t.Errorf("first message = %q", st.Messages[0].Text())
	}
	if len(st.CompletedWorkflows) != 1 {
		t.Fatalf("persisted %d completed workflows, want 1", len(st.CompletedWorkflows))
	}
	if st.CompletedWorkflows[0].Status != state.WorkflowCompleted {
		t.Errorf("workflow status = %q", st.CompletedWorkflows[0].Status)
	}
	if len(st.Scratchpad) == 0 {
		t.Error("expected a scratchpad entry for the executed step")
	}
}

func TestHandleMessageReloadsPersistedState(t *testing.T) {
	store := storage.NewMemoryStore()
	exec := &stubBotExecutor{}

	a1 := NewAssistant(testConfig(), store, exec, nil, nil)
	a1.RegisterUser("u1", "dev@example.com", access.RoleDeveloper)
	if _, err := a1.HandleMessage(context.Background(), "conv_reload", "u1", "hello"); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// A second assistant sharing the store must pick the session up
	// where the first left it.
	a2 := NewAssistant(testConfig(), store, exec, nil, nil)
	a2.RegisterUser("u1", "dev@example.com", access.RoleDeveloper)
	if _, err := a2.HandleMessage(context.Background(), "conv_reload", "u1", "hello again"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	stored, _ := store.Read([]string{"conv_reload"})
	var st state.State
	if err := json.Unmarshal(stored["conv_reload"], &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(st.Messages) != 4 {
		t.Errorf("persisted %d messages after two turns, want 4", len(st.Messages))
	}
	if st.SessionID != "conv_reload" {
		t.Errorf("session id = %q", st.SessionID)
	}
}

func TestHandleMessagePermissionDenied(t *testing.T) {
	a := NewAssistant(testConfig(), nil, &stubBotExecutor{}, nil, nil)
	// u2 was never registered, so they land in the default tier,
	// which cannot read GitHub.
	reply, err := a.HandleMessage(context.Background(), "conv_denied", "u2", "list my github repos")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if !strings.Contains(reply, "permission") {
		t.Errorf("reply %q is not a permission denial", reply)
	}
}

func TestHandleMessageDefaultTierWebSearch(t *testing.T) {
	exec := &stubBotExecutor{results: map[string]any{
		"perplexity_search_web": map[string]any{
			"status": "SUCCESS",
			"data":   "Go 1.24 was released in February 2025.",
		},
	}}
	a := NewAssistant(testConfig(), nil, exec, nil, nil)

	// Web search is the one workflow the default tier keeps.
	reply, err := a.HandleMessage(context.Background(), "conv_web", "u3", "search the web for go release dates")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if !strings.Contains(reply, "Go 1.24") {
		t.Errorf("reply %q does not carry the search answer", reply)
	}
}

func TestHandleMessageConversationFallback(t *testing.T) {
	t.Run("no llm", func(t *testing.T) {
		a := NewAssistant(testConfig(), nil, &stubBotExecutor{}, nil, nil)
		reply, err := a.HandleMessage(context.Background(), "conv_chat", "u1", "good morning")
		if err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
		if reply == "" {
			t.Error("expected a capability notice, got empty reply")
		}
	})

	t.Run("llm reply", func(t *testing.T) {
		a := NewAssistant(testConfig(), nil, &stubBotExecutor{}, &stubLLM{reply: "Morning!"}, nil)
		reply, err := a.HandleMessage(context.Background(), "conv_chat2", "u1", "good morning")
		if err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
		if reply != "Morning!" {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("llm error", func(t *testing.T) {
		a := NewAssistant(testConfig(), nil, &stubBotExecutor{}, &stubLLM{err: errors.New("rate limited")}, nil)
		reply, err := a.HandleMessage(context.Background(), "conv_chat3", "u1", "good morning")
		if err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
		if !strings.Contains(reply, "try again") {
			t.Errorf("reply %q is not the apology", reply)
		}
	})
}

func TestHandleMessageRecordsLLMUsage(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAssistant(testConfig(), store, &stubBotExecutor{}, &stubLLM{reply: "Sure."}, nil)
	if _, err := a.HandleMessage(context.Background(), "conv_llm", "u1", "how was your weekend"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	stored, _ := store.Read([]string{"conv_llm"})
	var st state.State
	if err := json.Unmarshal(stored["conv_llm"], &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Stats.LLMCalls != 1 {
		t.Errorf("LLMCalls = %d, want 1", st.Stats.LLMCalls)
	}
	if st.Stats.LLMTokensUsed != 42 {
		t.Errorf("LLMTokensUsed = %d, want 42", st.Stats.LLMTokensUsed)
	}
}

func TestClearSession(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAssistant(testConfig(), store, &stubBotExecutor{}, nil, nil)
	if _, err := a.HandleMessage(context.Background(), "conv_clear", "u1", "hello"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := a.ClearSession("conv_clear"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	stored, _ := store.Read([]string{"conv_clear"})
	var st state.State
	if err := json.Unmarshal(stored["conv_clear"], &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(st.Messages) != 0 {
		t.Errorf("cleared session still has %d messages", len(st.Messages))
	}
	if st.SessionID != "conv_clear" {
		t.Errorf("session id lost on clear: %q", st.SessionID)
	}
}

func TestSnapshotOnlyDirtySessions(t *testing.T) {
	a := NewAssistant(testConfig(), nil, &stubBotExecutor{}, nil, nil)
	if _, err := a.HandleMessage(context.Background(), "conv_snap", "u1", "hello"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := snap["conv_snap"]; !ok {
		t.Fatal("dirty session missing from snapshot")
	}

	// Dirty flag cleared on capture, so an unchanged session is not
	// re-serialized next round.
	snap, err = a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("second snapshot has %d sessions, want 0", len(snap))
	}
}
