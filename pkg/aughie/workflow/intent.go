// Package workflow – intent.go maps free text to a workflow type with
// an ordered, first-match-wins rule cascade. Detection is a pure
// function of the input text: same text, same answer, always.
package workflow

import "strings"

// intentPatterns is the fallback registry of literal substring
// patterns, scanned in slice order after the dedicated rules. Kept as
// an ordered slice, not a map, so detection stays deterministic.
var intentPatterns = []struct {
	workflowType string
	patterns     []string
}{
	{TypeRepoJiraComparison, []string{
		"repo against jira", "github vs jira", "github with jira",
		"match repositories to tickets", "repo ticket correlation",
	}},
	{TypeCodeTicketAnalysis, []string{
		"find code for ticket", "code related to", "ticket implementation",
		"where is ticket", "code for proj-",
	}},
	{TypeListGitHubRepos, []string{
		"list repos", "show repos", "my repos", "repositories",
		"github repos", "repo names", "repository names", "all repos",
	}},
	{TypeListJiraTickets, []string{
		"list tickets", "show tickets", "my tickets", "jira tickets",
		"ticket names", "issue names", "my issues",
	}},
	{TypeSearchCodebase, []string{
		"search code", "search the codebase", "find code", "grep for",
		"in the codebase", "where is the function",
	}},
	{TypeWebSearch, []string{
		"search the web", "web search", "search online", "google",
		"look up", "latest news", "news about",
	}},
}

var createVerbs = []string{"create", "add", "make", "open", "file", "new"}

var createNouns = []string{
	"story", "stories", "ticket", "tickets",
	"issue", "issues", "bug", "bugs", "task", "tasks",
}

var createPhrases = []string{"tech debt", "tech-debt", "technical debt"}

// DetectIntent returns the workflow type matching the user's text, or
// "" when nothing matches and the caller should fall through to plain
// LLM conversation.
func DetectIntent(text string) string {
	query := strings.ToLower(text)

	// Composite rule: comparing repos against tickets needs all three
	// signals present at once.
	if strings.Contains(query, "compare") &&
		(strings.Contains(query, "repo") || strings.Contains(query, "github")) &&
		(strings.Contains(query, "jira") || strings.Contains(query, "ticket")) {
		return TypeRepoJiraComparison
	}

	// Story creation before the listing buckets: "create a jira story"
	// mentions jira but is not a listing request. Word-level matching
	// keeps "news" from counting as the verb "new".
	if containsAnyWord(query, createVerbs) &&
		(containsAnyWord(query, createNouns) || containsAny(query, createPhrases)) {
		return TypeCreateJiraStory
	}

	for _, entry := range intentPatterns {
		if containsAny(query, entry.patterns) {
			return entry.workflowType
		}
	}
	return ""
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func containsAnyWord(s string, words []string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
