// Package workflow – synthesis.go turns the raw per-step results of a
// workflow into one human-readable summary. Each workflow type has a
// dedicated synthesizer keyed by the registry name, with a generic
// fallback for anything else.
package workflow

import (
	"fmt"
	"strings"
)

// synthesizers maps workflow types to their dedicated summary
// functions. Kept as a dispatch table so pattern and presentation stay
// registered under the same name.
var synthesizers = map[string]func(map[string]StepResult) string{
	TypeRepoJiraComparison: synthesizeRepoJiraComparison,
	TypeListGitHubRepos:    synthesizeGitHubRepos,
	TypeListJiraTickets:    synthesizeJiraTickets,
	TypeCodeTicketAnalysis: synthesizeCodeTicketAnalysis,
	TypeSearchCodebase:     synthesizeCodeSearch,
	TypeWebSearch:          synthesizeWebSearch,
	TypeCreateJiraStory:    synthesizeCreatedStory,
}

// Synthesize produces the user-facing summary for a finished workflow.
// Unconfigured-tool payloads short-circuit every synthesizer: their
// message and remediation hints are surfaced verbatim.
func Synthesize(workflowType string, results map[string]StepResult) string {
	if notice := notConfiguredNotice(results); notice != "" {
		return notice
	}
	if fn, ok := synthesizers[workflowType]; ok {
		return fn(results)
	}
	return genericSynthesis(results)
}

// notConfiguredNotice scans results for a ToolNotConfigured payload and
// formats its message, actionable advice, and fallback suggestions
// exactly as the tool provided them.
func notConfiguredNotice(results map[string]StepResult) string {
	for _, sr := range results {
		payload, ok := sr.Result.(map[string]any)
		if !ok {
			continue
		}
		if et, _ := payload["error_type"].(string); et != "ToolNotConfigured" {
			continue
		}

		var b strings.Builder
		if msg, _ := payload["message"].(string); msg != "" {
			b.WriteString("⚠️ " + msg)
		} else {
			fmt.Fprintf(&b, "⚠️ Tool '%s' is not configured.", sr.ToolName)
		}
		if advice, _ := payload["actionable_advice"].(string); advice != "" {
			b.WriteString("\n💡 " + advice)
		}
		if suggestions, _ := payload["fallback_suggestions"].([]any); len(suggestions) > 0 {
			b.WriteString("\n\nYou could try:")
			for _, s := range suggestions {
				fmt.Fprintf(&b, "\n- %v", s)
			}
		}
		return b.String()
	}
	return ""
}

func synthesizeRepoJiraComparison(results map[string]StepResult) string {
	repos := resultItems(results, "get_repos")
	tickets := resultItems(results, "get_jira_tickets")

	if repos == nil || tickets == nil {
		return "❌ Could not retrieve both repository and ticket data for comparison."
	}

	var lines []string
	lines = append(lines, "📊 **Repository vs Ticket Analysis**")
	lines = append(lines, fmt.Sprintf("🗂️ Found %d repositories and %d Jira tickets", len(repos), len(tickets)))

	var correlations []string
	for _, r := range repos {
		repo, ok := r.(map[string]any)
		if !ok {
			continue
		}
		name, _ := repo["name"].(string)
		if name == "" {
			continue
		}
		for _, t := range tickets {
			ticket, ok := t.(map[string]any)
			if !ok {
				continue
			}
			summary, _ := ticket["summary"].(string)
			description, _ := ticket["description"].(string)
			if strings.Contains(strings.ToLower(summary+" "+description), strings.ToLower(name)) {
				key, _ := ticket["key"].(string)
				if key == "" {
					key = "Unknown"
				}
				correlations = append(correlations, fmt.Sprintf("🔗 Repo '%s' mentioned in ticket %s", name, key))
			}
		}
	}

	if len(correlations) > 0 {
		lines = append(lines, "\n**Found Correlations:**")
		lines = append(lines, correlations...)
	} else {
		lines = append(lines, "\n⚠️ No obvious correlations found between repo names and ticket content.")
	}
	return strings.Join(lines, "\n")
}

func synthesizeGitHubRepos(results map[string]StepResult) string {
	repos := resultItems(results, "get_repos")
	if repos == nil {
		return "❌ Could not retrieve repository data."
	}
	if len(repos) == 0 {
		return "📁 No repositories found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("📁 **Your GitHub Repositories** (%d found)", len(repos)))
	for i, r := range repos {
		repo, ok := r.(map[string]any)
		if !ok {
			continue
		}
		name, _ := repo["name"].(string)
		if name == "" {
			name = "Unknown"
		}
		description, _ := repo["description"].(string)
		if description == "" {
			description = "No description"
		}
		lines = append(lines, fmt.Sprintf("%d. **%s** - %s", i+1, name, description))
	}
	return strings.Join(lines, "\n")
}

func synthesizeJiraTickets(results map[string]StepResult) string {
	tickets := resultItems(results, "get_jira_tickets")
	if tickets == nil {
		return "❌ Could not retrieve Jira ticket data."
	}
	if len(tickets) == 0 {
		return "🎫 No Jira tickets found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("🎫 **Your Jira Tickets** (%d found)", len(tickets)))
	for i, t := range tickets {
		ticket, ok := t.(map[string]any)
		if !ok {
			continue
		}
		key, _ := ticket["key"].(string)
		if key == "" {
			key = "Unknown"
		}
		summary, _ := ticket["summary"].(string)
		if summary == "" {
			summary = "No summary"
		}
		status, _ := ticket["status"].(string)
		if status == "" {
			status = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%d. **%s** - %s (%s)", i+1, key, summary, status))
	}
	return strings.Join(lines, "\n")
}

func synthesizeCodeTicketAnalysis(results map[string]StepResult) string {
	var lines []string
	lines = append(lines, "🎫 **Code-Ticket Analysis**")

	if ticket, ok := resultPayload(results, "get_ticket_details"); ok {
		data, _ := ticket["data"].(map[string]any)
		key, _ := data["key"].(string)
		if key == "" {
			key = "Unknown"
		}
		summary, _ := data["summary"].(string)
		if summary == "" {
			summary = "No summary"
		}
		lines = append(lines, fmt.Sprintf("📋 Ticket: %s - %s", key, summary))
	}

	if hits := resultItems(results, "search_related_code"); hits != nil {
		lines = append(lines, fmt.Sprintf("💻 Found %d related code references", len(hits)))
	}
	if commits := resultItems(results, "find_recent_commits"); commits != nil {
		lines = append(lines, fmt.Sprintf("📝 Found %d commits referencing the ticket", len(commits)))
	}
	return strings.Join(lines, "\n")
}

func synthesizeCodeSearch(results map[string]StepResult) string {
	hits := resultItems(results, "search_code")
	if hits == nil {
		return "❌ Could not search the codebase."
	}
	if len(hits) == 0 {
		return "💻 No matching code found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("💻 **Code Search Results** (%d found)", len(hits)))
	for i, h := range hits {
		hit, ok := h.(map[string]any)
		if !ok {
			continue
		}
		path, _ := hit["path"].(string)
		if path == "" {
			path = "unknown file"
		}
		summary, _ := hit["summary"].(string)
		if summary != "" {
			lines = append(lines, fmt.Sprintf("%d. `%s` - %s", i+1, path, summary))
		} else {
			lines = append(lines, fmt.Sprintf("%d. `%s`", i+1, path))
		}
	}
	return strings.Join(lines, "\n")
}

func synthesizeWebSearch(results map[string]StepResult) string {
	payload, ok := resultPayload(results, "web_search")
	if !ok {
		return "❌ Could not complete the web search."
	}
	if answer, _ := payload["data"].(string); answer != "" {
		return "🌐 " + answer
	}
	if answer, _ := payload["answer"].(string); answer != "" {
		return "🌐 " + answer
	}
	if items, _ := payload["data"].([]any); len(items) > 0 {
		var lines []string
		lines = append(lines, fmt.Sprintf("🌐 **Web Search Results** (%d found)", len(items)))
		for i, it := range items {
			lines = append(lines, fmt.Sprintf("%d. %v", i+1, it))
		}
		return strings.Join(lines, "\n")
	}
	return "🌐 The web search returned no results."
}

func synthesizeCreatedStory(results map[string]StepResult) string {
	sr, ok := results["create_story"]
	if !ok {
		return "❌ Could not create the story."
	}
	payload, _ := sr.Result.(map[string]any)
	if !sr.Success {
		if msg, _ := payload["message"].(string); msg != "" {
			return "❌ Story creation failed: " + msg
		}
		return "❌ Story creation failed."
	}

	data, _ := payload["data"].(map[string]any)
	key, _ := data["key"].(string)
	summary, _ := sr.Params["summary"].(string)
	if key != "" {
		return fmt.Sprintf("✅ Created **%s** - %s", key, summary)
	}
	return "✅ Story created: " + summary
}

func genericSynthesis(results map[string]StepResult) string {
	var successful []string
	for stepID, sr := range results {
		if sr.Success {
			successful = append(successful, stepID)
		}
	}

	var lines []string
	lines = append(lines, "🔄 **Workflow Complete**")
	lines = append(lines, fmt.Sprintf("✅ Successfully executed %d steps: %s",
		len(successful), strings.Join(successful, ", ")))
	for stepID, sr := range results {
		if sr.Success {
			lines = append(lines, fmt.Sprintf("  📌 %s (%s): Success", stepID, sr.ToolName))
		}
	}
	return strings.Join(lines, "\n")
}

// resultPayload returns a step's raw result as a mapping, when the
// step ran and produced one.
func resultPayload(results map[string]StepResult, stepID string) (map[string]any, bool) {
	sr, ok := results[stepID]
	if !ok {
		return nil, false
	}
	payload, ok := sr.Result.(map[string]any)
	return payload, ok
}

// resultItems unwraps a step result's item list: a mapping's "data"
// array, or the raw result when it is already a list. Returns nil when
// the step is absent or carries no list.
func resultItems(results map[string]StepResult, stepID string) []any {
	sr, ok := results[stepID]
	if !ok || sr.Result == nil {
		return nil
	}
	switch v := sr.Result.(type) {
	case map[string]any:
		if items, ok := v["data"].([]any); ok {
			return items
		}
		return nil
	case []any:
		return v
	}
	return nil
}
