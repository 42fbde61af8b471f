// Package workflow – registry.go defines the closed registry of named
// workflow patterns. Each pattern is a data-only ordered list of tool
// invocation steps; execution and synthesis live in their own files so
// the patterns stay declarative and testable in isolation.
package workflow

// Step is one tool invocation within a workflow pattern. Params values
// may be literals or "{placeholder}" references resolved at execution
// time. DependsOn lists step ids whose results must exist before this
// step runs; steps are listed in topological order, the registry never
// needs sorting.
type Step struct {
	ID          string
	ToolName    string
	Params      map[string]any
	DependsOn   []string
	Description string
}

// Pattern names. The registry is closed: callers must validate a type
// against Lookup before handing it to the orchestrator.
const (
	TypeRepoJiraComparison = "repo_jira_comparison"
	TypeListGitHubRepos    = "list_github_repos"
	TypeListJiraTickets    = "list_jira_tickets"
	TypeCodeTicketAnalysis = "code_ticket_analysis"
	TypeSearchCodebase     = "search_codebase"
	TypeWebSearch          = "web_search"
	TypeCreateJiraStory    = "create_jira_story"
)

var patterns = map[string][]Step{
	TypeRepoJiraComparison: {
		{
			ID:          "get_repos",
			ToolName:    "github_list_repositories",
			Params:      map[string]any{},
			Description: "Get user's GitHub repositories",
		},
		{
			ID:          "get_jira_tickets",
			ToolName:    "jira_get_issues_by_user",
			Params:      map[string]any{"user_email": "{user_email}"},
			Description: "Get user's Jira tickets",
		},
	},

	TypeListGitHubRepos: {
		{
			ID:          "get_repos",
			ToolName:    "github_list_repositories",
			Params:      map[string]any{},
			Description: "Get user's GitHub repositories",
		},
	},

	TypeListJiraTickets: {
		{
			ID:          "get_jira_tickets",
			ToolName:    "jira_get_issues_by_user",
			Params:      map[string]any{"user_email": "{user_email}"},
			Description: "Get user's Jira tickets",
		},
	},

	TypeCodeTicketAnalysis: {
		{
			ID:          "get_ticket_details",
			ToolName:    "jira_get_issue_details",
			Params:      map[string]any{"issue_key": "{ticket_id}"},
			Description: "Get detailed ticket information",
		},
		{
			ID:          "search_related_code",
			ToolName:    "greptile_search_code",
			Params:      map[string]any{"query": "{get_ticket_details.results}"},
			DependsOn:   []string{"get_ticket_details"},
			Description: "Search codebase for ticket-related code",
		},
		{
			ID:          "find_recent_commits",
			ToolName:    "github_search_commits",
			Params:      map[string]any{"query": "{ticket_id}"},
			Description: "Find commits referencing the ticket",
		},
	},

	TypeSearchCodebase: {
		{
			ID:          "search_code",
			ToolName:    "greptile_search_code",
			Params:      map[string]any{"query": "{search_query}"},
			Description: "Search the codebase",
		},
	},

	TypeWebSearch: {
		{
			ID:          "web_search",
			ToolName:    "perplexity_search_web",
			Params:      map[string]any{"query": "{search_query}"},
			Description: "Search the web",
		},
	},

	TypeCreateJiraStory: {
		{
			ID:       "create_story",
			ToolName: "jira_create_story",
			Params: map[string]any{
				"summary":        "{story_summary}",
				"description":    "{story_description}",
				"template":       "{story_template}",
				"issue_type":     "{issue_type}",
				"priority":       "{priority}",
				"assignee_email": "{assignee_email}",
				"labels":         "{labels}",
				"story_points":   "{story_points}",
			},
			Description: "Create a Jira story from the user's request",
		},
	},
}

// Lookup resolves a workflow type to its ordered step list. The second
// return is false for types outside the registry.
func Lookup(workflowType string) ([]Step, bool) {
	steps, ok := patterns[workflowType]
	return steps, ok
}

// Types returns the registered workflow type names. Order is not
// specified; callers needing determinism should sort.
func Types() []string {
	out := make([]string, 0, len(patterns))
	for name := range patterns {
		out = append(out, name)
	}
	return out
}
