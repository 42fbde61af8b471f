package workflow

import (
	"testing"

	"github.com/jholhewres/aughie/pkg/aughie/state"
)

func newTestOrchestrator(fallbackEmail string) *Orchestrator {
	return NewOrchestrator(&stubExecutor{}, fallbackEmail, nil)
}

func TestInjectUserEmail(t *testing.T) {
	template := map[string]any{"user_email": "{user_email}"}

	t.Run("from current user", func(t *testing.T) {
		o := newTestOrchestrator("fallback@example.com")
		st := state.New()
		st.CurrentUser = &state.UserRef{ID: "u1", Email: "dev@example.com"}

		got := o.injectParameters(template, nil, st, nil)
		if got["user_email"] != "dev@example.com" {
			t.Errorf("expected user email, got %v", got["user_email"])
		}
	})

	t.Run("fallback email", func(t *testing.T) {
		o := newTestOrchestrator("fallback@example.com")

		got := o.injectParameters(template, nil, state.New(), nil)
		if got["user_email"] != "fallback@example.com" {
			t.Errorf("expected fallback email, got %v", got["user_email"])
		}
	})

	t.Run("unresolved stays literal", func(t *testing.T) {
		o := newTestOrchestrator("")

		got := o.injectParameters(template, nil, state.New(), nil)
		if got["user_email"] != "{user_email}" {
			t.Errorf("expected literal placeholder, got %v", got["user_email"])
		}
	})
}

func TestDeriveSearchQuery(t *testing.T) {
	o := newTestOrchestrator("")
	template := map[string]any{"query": "{search_query}"}

	t.Run("strips command phrasing", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "Search for golang error handling")

		got := o.injectParameters(template, nil, st, nil)
		if got["query"] != "golang error handling" {
			t.Errorf("got %v", got["query"])
		}
	})

	t.Run("all stopwords falls back to original", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "search")

		got := o.injectParameters(template, nil, st, nil)
		if got["query"] != "search" {
			t.Errorf("expected original message verbatim, got %v", got["query"])
		}
	})

	t.Run("no user message", func(t *testing.T) {
		got := o.injectParameters(template, nil, state.New(), nil)
		if got["query"] != "general search" {
			t.Errorf("got %v", got["query"])
		}
	})

	t.Run("stop words stripped on word boundaries only", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "search research golang findings")

		got := o.injectParameters(template, nil, st, nil)
		if got["query"] != "research golang findings" {
			t.Errorf("got %v", got["query"])
		}
	})
}

func TestInjectStoryFields(t *testing.T) {
	o := newTestOrchestrator("")
	template := map[string]any{
		"summary":    "{story_summary}",
		"issue_type": "{issue_type}",
		"priority":   "{priority}",
	}

	t.Run("defaults", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "create a story for improving the onboarding flow")

		got := o.injectParameters(template, nil, st, nil)
		if got["summary"] != "improving the onboarding flow" {
			t.Errorf("summary: %v", got["summary"])
		}
		if got["issue_type"] != "Story" {
			t.Errorf("issue_type: %v", got["issue_type"])
		}
		if got["priority"] != "Medium" {
			t.Errorf("priority: %v", got["priority"])
		}
	})

	t.Run("explicit key value phrasing", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "create a ticket\nsummary: upgrade the build image\npriority: high")

		got := o.injectParameters(template, nil, st, nil)
		if got["summary"] != "upgrade the build image" {
			t.Errorf("summary: %v", got["summary"])
		}
		if got["priority"] != "High" {
			t.Errorf("priority: %v", got["priority"])
		}
	})

	t.Run("tech debt forces task", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "create a ticket for the tech debt around the broken retry logic")

		got := o.injectParameters(template, nil, st, nil)
		// Tech-debt keywords win over the bug keywords also present.
		if got["issue_type"] != "Task" {
			t.Errorf("issue_type: %v", got["issue_type"])
		}
	})

	t.Run("bug keywords", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "file a bug, the export crash happens daily")

		got := o.injectParameters(template, nil, st, nil)
		if got["issue_type"] != "Bug" {
			t.Errorf("issue_type: %v", got["issue_type"])
		}
	})

	t.Run("context values win over text", func(t *testing.T) {
		st := state.New()
		st.AddMessage(state.RoleUser, "create a bug for the crash")

		got := o.injectParameters(template, nil, st, map[string]any{
			"issue_type":    "Epic",
			"story_summary": "explicit summary",
		})
		if got["issue_type"] != "Epic" {
			t.Errorf("issue_type: %v", got["issue_type"])
		}
		if got["summary"] != "explicit summary" {
			t.Errorf("summary: %v", got["summary"])
		}
	})
}

func TestInjectStepReference(t *testing.T) {
	o := newTestOrchestrator("")
	prior := map[string]StepResult{
		"get_ticket_details": {
			ToolName: "jira_get_issue_details",
			Result:   map[string]any{"status": "SUCCESS", "data": map[string]any{"key": "LM-9"}},
			Success:  true,
		},
	}

	t.Run("results reads whole result", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"query": "{get_ticket_details.results}"}, prior, nil, nil)
		payload, ok := got["query"].(map[string]any)
		if !ok || payload["status"] != "SUCCESS" {
			t.Errorf("expected whole result injected, got %v", got["query"])
		}
	})

	t.Run("named attribute", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"v": "{get_ticket_details.success}"}, prior, nil, nil)
		if got["v"] != true {
			t.Errorf("expected success flag, got %v", got["v"])
		}
	})

	t.Run("missing step stays literal", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"v": "{no_such_step.results}"}, prior, nil, nil)
		if got["v"] != "{no_such_step.results}" {
			t.Errorf("expected literal, got %v", got["v"])
		}
	})
}

func TestInjectContextAndLiterals(t *testing.T) {
	o := newTestOrchestrator("")

	t.Run("context lookup", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"id": "{ticket_id}"}, nil, nil,
			map[string]any{"ticket_id": "LM-42"})
		if got["id"] != "LM-42" {
			t.Errorf("got %v", got["id"])
		}
	})

	t.Run("unresolved stays literal", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"id": "{ticket_id}"}, nil, nil, nil)
		if got["id"] != "{ticket_id}" {
			t.Errorf("got %v", got["id"])
		}
	})

	t.Run("non-reference values pass through", func(t *testing.T) {
		got := o.injectParameters(map[string]any{"limit": 20, "q": "plain"}, nil, nil, nil)
		if got["limit"] != 20 || got["q"] != "plain" {
			t.Errorf("got %v", got)
		}
	})
}
