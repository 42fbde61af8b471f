// Package bot – tools.go gates tool execution on service
// configuration. Calls to tools whose service has no credentials come
// back as structured "not configured" payloads with remediation hints,
// never as errors; configured tools are delegated to the inner
// executor.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/jholhewres/aughie/pkg/aughie/config"
	"github.com/jholhewres/aughie/pkg/aughie/state"
	"github.com/jholhewres/aughie/pkg/aughie/workflow"
)

// GatedExecutor wraps a real tool executor with per-service
// configuration checks.
type GatedExecutor struct {
	tools config.ToolsConfig
	inner workflow.ToolExecutor
}

// NewGatedExecutor builds the gate. inner may be nil, in which case
// every call reports its service as unconfigured. Useful before any
// real clients are wired up.
func NewGatedExecutor(tools config.ToolsConfig, inner workflow.ToolExecutor) *GatedExecutor {
	return &GatedExecutor{tools: tools, inner: inner}
}

// ExecuteTool checks the tool's service configuration and delegates.
func (g *GatedExecutor) ExecuteTool(ctx context.Context, toolName string, params map[string]any, st *state.State) (any, error) {
	service := serviceFor(toolName)
	if service == "" {
		return map[string]any{
			"status":            "ERROR",
			"error_type":        "ToolNotFound",
			"message":           fmt.Sprintf("I don't have a tool called '%s'.", toolName),
			"actionable_advice": "Try asking for help to see what tools are available.",
			"fallback_suggestions": []any{
				"Ask for help to see available commands",
				"Try rephrasing your request",
			},
		}, nil
	}
	if !g.serviceEnabled(service) || g.inner == nil {
		return notConfiguredPayload(service), nil
	}
	return g.inner.ExecuteTool(ctx, toolName, params, st)
}

func serviceFor(toolName string) string {
	switch {
	case strings.HasPrefix(toolName, "github_"):
		return "github"
	case strings.HasPrefix(toolName, "jira_"):
		return "jira"
	case strings.HasPrefix(toolName, "greptile_"):
		return "greptile"
	case strings.HasPrefix(toolName, "perplexity_"):
		return "perplexity"
	}
	return ""
}

func (g *GatedExecutor) serviceEnabled(service string) bool {
	switch service {
	case "github":
		return g.tools.GitHub.Enabled
	case "jira":
		return g.tools.Jira.Enabled
	case "greptile":
		return g.tools.Greptile.Enabled
	case "perplexity":
		return g.tools.Perplexity.Enabled
	}
	return false
}

var serviceMessages = map[string]string{
	"github":     "🔧 GitHub tools aren't set up yet. I need a GitHub Personal Access Token to access repositories, issues, and pull requests.",
	"jira":       "🔧 Jira tools aren't fully configured. I need Jira API credentials (email and token) to access your tickets and projects.",
	"greptile":   "🔧 Greptile code search isn't configured. I need a Greptile API key to search through codebases.",
	"perplexity": "🔧 Perplexity web search isn't configured. I need a Perplexity API key to search the web for information.",
}

var serviceAdvice = map[string]string{
	"github":     "Ask your administrator to add GITHUB_TOKEN to the environment variables.",
	"jira":       "Ask your administrator to verify JIRA_API_EMAIL and JIRA_API_TOKEN are set correctly.",
	"greptile":   "Ask your administrator to add GREPTILE_API_KEY to the environment variables.",
	"perplexity": "Ask your administrator to add PERPLEXITY_API_KEY to the environment variables.",
}

var serviceFallbacks = map[string][]any{
	"github": {
		"I can help you with Jira tickets instead",
		"Try asking me to search the web for GitHub-related information",
		"You can manually check GitHub.com for your repositories",
	},
	"jira": {
		"I can help you search the web for Jira-related information",
		"Try asking me about GitHub repositories instead",
		"You can manually check your Jira instance for tickets",
	},
	"greptile": {
		"I can help you search the web for code examples",
		"Try asking me about your GitHub repositories or Jira tickets",
		"You can search your codebase manually using your IDE or GitHub",
	},
	"perplexity": {
		"I can help you with GitHub repositories or Jira tickets",
		"Try asking me about your configured tools instead",
		"You can search the web manually using your browser",
	},
}

func notConfiguredPayload(service string) map[string]any {
	return map[string]any{
		"error_type":           "ToolNotConfigured",
		"service":              service,
		"message":              serviceMessages[service],
		"actionable_advice":    serviceAdvice[service],
		"fallback_suggestions": serviceFallbacks[service],
	}
}
