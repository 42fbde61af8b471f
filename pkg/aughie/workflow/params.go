// Package workflow – params.go resolves "{placeholder}" references in
// step parameter templates against the session user, prior step
// results, caller context, and the user's own words.
package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jholhewres/aughie/pkg/aughie/state"
)

// Phrases stripped from the user's message when deriving a search
// query. Longer phrases first so "search for" wins over "search".
var searchStopPhrases = []string{
	"can you please", "could you please", "can you", "could you",
	"please", "search the web for", "search the codebase for",
	"search online for", "search for", "search", "look for",
	"look up", "find out", "find", "show me", "tell me about",
	"what is", "what are",
}

// searchStopPatterns match the stop phrases on word boundaries only,
// so "search" never strips the middle of "research".
var searchStopPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(searchStopPhrases))
	for i, phrase := range searchStopPhrases {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return patterns
}()

var (
	summaryPattern      = regexp.MustCompile(`(?i)summary:\s*([^\n]+)`)
	descriptionPattern  = regexp.MustCompile(`(?is)description:\s*(.+)`)
	createPhrasePattern = regexp.MustCompile(`(?i)(?:create|add|make|open|file)\s+(?:a\s+|an\s+|new\s+)?(?:jira\s+)?(?:story|ticket|task|bug|issue)\s+(?:for|to|about)\s+(.+)`)
	priorityPattern     = regexp.MustCompile(`(?i)priority:?\s*(highest|high|medium|low|lowest|critical)`)
	emailPattern        = regexp.MustCompile(`(?i)assign(?:ed)?\s*(?:to|:)?\s*([\w.+-]+@[\w.-]+\.\w+)`)
	labelsPattern       = regexp.MustCompile(`(?i)labels?:\s*([^\n]+)`)
	storyPointsPattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:story\s*)?points?`)
)

// techDebtKeywords force issue_type "Task" ahead of every other
// classification keyword.
var techDebtKeywords = []string{"tech debt", "tech-debt", "technical debt", "refactor", "cleanup", "clean up"}

// injectParameters resolves each template value in turn. Only string
// values fully wrapped in braces are treated as references; everything
// else passes through as a literal. Unresolvable references stay as
// the literal "{name}" string so downstream tools see an ordinary
// (likely invalid) value instead of the workflow erroring out.
func (o *Orchestrator) injectParameters(template map[string]any, prior map[string]StepResult, st *state.State, extra map[string]any) map[string]any {
	injected := make(map[string]any, len(template))

	for key, value := range template {
		s, ok := value.(string)
		if !ok || !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
			injected[key] = value
			continue
		}
		ref := s[1 : len(s)-1]

		switch {
		case ref == "user_email":
			if email := o.resolveUserEmail(st); email != "" {
				injected[key] = email
				o.log.Info("injected user_email", "value", email)
			} else {
				o.log.Warn("could not resolve user_email, no user email or fallback configured")
				injected[key] = s
			}

		case ref == "search_query":
			injected[key] = deriveSearchQuery(st)

		case isStoryField(ref):
			injected[key] = resolveStoryField(ref, st, extra)

		case strings.Contains(ref, "."):
			stepID, field, _ := strings.Cut(ref, ".")
			if step, ok := prior[stepID]; ok {
				if field == "results" {
					injected[key] = step.Result
				} else if v, ok := stepField(step, field); ok {
					injected[key] = v
				} else {
					injected[key] = s
				}
			} else {
				injected[key] = s
			}

		default:
			if v, ok := extra[ref]; ok {
				injected[key] = v
			} else {
				o.log.Warn("could not resolve parameter reference", "ref", ref)
				injected[key] = s
			}
		}
	}

	return injected
}

func (o *Orchestrator) resolveUserEmail(st *state.State) string {
	if st != nil && st.CurrentUser != nil && st.CurrentUser.Email != "" {
		return st.CurrentUser.Email
	}
	return o.fallbackEmail
}

func stepField(step StepResult, field string) (any, bool) {
	switch field {
	case "tool_name":
		return step.ToolName, true
	case "parameters":
		return step.Params, true
	case "result":
		return step.Result, true
	case "success":
		return step.Success, true
	}
	return nil, false
}

// deriveSearchQuery turns the most recent user message into a search
// query by lower-casing it and stripping command phrasing. If stripping
// empties the string the original message is used verbatim; with no
// user message at all the query falls back to "general search".
func deriveSearchQuery(st *state.State) string {
	if st == nil {
		return "general search"
	}
	msg := st.LastUserMessage()
	if msg == "" {
		return "general search"
	}

	query := strings.ToLower(msg)
	stripped := query
	for _, pattern := range searchStopPatterns {
		stripped = pattern.ReplaceAllString(stripped, " ")
	}
	stripped = strings.Join(strings.Fields(stripped), " ")
	if stripped == "" {
		return query
	}
	return stripped
}

var storyFields = map[string]bool{
	"story_summary":     true,
	"story_description": true,
	"story_template":    true,
	"issue_type":        true,
	"priority":          true,
	"assignee_email":    true,
	"labels":            true,
	"story_points":      true,
}

func isStoryField(ref string) bool { return storyFields[ref] }

// resolveStoryField extracts one story-creation field from the user's
// message. A context-supplied explicit value always wins over anything
// derived from text.
func resolveStoryField(ref string, st *state.State, extra map[string]any) any {
	if v, ok := extra[ref]; ok {
		return v
	}

	text := ""
	if st != nil {
		text = st.LastUserMessage()
	}

	switch ref {
	case "story_summary":
		return extractSummary(text)
	case "story_description":
		return extractDescription(text)
	case "story_template":
		return "standard"
	case "issue_type":
		return classifyIssueType(text)
	case "priority":
		return extractPriority(text)
	case "assignee_email":
		if m := emailPattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		return ""
	case "labels":
		return extractLabels(text)
	case "story_points":
		if m := storyPointsPattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
		return 0
	}
	return ""
}

func extractSummary(text string) string {
	if m := summaryPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := createPhrasePattern.FindStringSubmatch(text); m != nil {
		summary := strings.TrimSpace(m[1])
		if i := strings.IndexByte(summary, '\n'); i >= 0 {
			summary = strings.TrimSpace(summary[:i])
		}
		return summary
	}
	if line, _, _ := strings.Cut(strings.TrimSpace(text), "\n"); line != "" {
		if len(line) > 120 {
			line = line[:120]
		}
		return line
	}
	return "New story"
}

func extractDescription(text string) string {
	if m := descriptionPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// classifyIssueType checks tech-debt keywords before anything else so
// "refactor the login bug handling" lands as a Task, not a Bug.
func classifyIssueType(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range techDebtKeywords {
		if strings.Contains(lower, kw) {
			return "Task"
		}
	}
	for _, kw := range []string{"bug", "broken", "crash", "doesn't work", "does not work", "error"} {
		if strings.Contains(lower, kw) {
			return "Bug"
		}
	}
	for _, kw := range []string{"task", "chore"} {
		if strings.Contains(lower, kw) {
			return "Task"
		}
	}
	return "Story"
}

func extractPriority(text string) string {
	if m := priorityPattern.FindStringSubmatch(text); m != nil {
		p := strings.ToLower(m[1])
		if p == "critical" {
			return "Highest"
		}
		return strings.ToUpper(p[:1]) + p[1:]
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"urgent", "asap", "critical", "blocker"} {
		if strings.Contains(lower, kw) {
			return "High"
		}
	}
	for _, kw := range []string{"low priority", "minor", "whenever", "no rush"} {
		if strings.Contains(lower, kw) {
			return "Low"
		}
	}
	return "Medium"
}

func extractLabels(text string) []string {
	var labels []string
	if m := labelsPattern.FindStringSubmatch(text); m != nil {
		for _, l := range strings.Split(m[1], ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	lower := strings.ToLower(text)
	for _, kw := range techDebtKeywords {
		if strings.Contains(lower, kw) {
			labels = append(labels, "tech-debt")
			break
		}
	}
	return labels
}
