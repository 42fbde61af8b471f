// Package workflow – orchestrator.go sequences the steps of a named
// workflow pattern: dependency gating, parameter injection, delegated
// tool execution, success classification, and final synthesis.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/aughie/pkg/aughie/state"
)

// ToolExecutor is the external tool execution interface. A "tool not
// configured" condition is a structured result payload (error_type
// "ToolNotConfigured"), never an error; errors are reserved for
// genuine infrastructure failures.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, toolName string, params map[string]any, st *state.State) (any, error)
}

// StepResult records one executed step's outcome, keyed by step id in
// Result.Results.
type StepResult struct {
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"parameters"`
	Result   any            `json:"result"`
	Success  bool           `json:"success"`
}

// Result is the outcome of one ExecuteWorkflow call. Success is true
// iff at least one step actually executed; a workflow where every step
// was skipped on unmet dependencies is unsuccessful.
type Result struct {
	Success       bool                  `json:"success"`
	StepsExecuted []string              `json:"steps_executed"`
	Results       map[string]StepResult `json:"results"`
	Synthesis     string                `json:"synthesis"`
	DurationMS    int64                 `json:"duration_ms"`
}

// Orchestrator executes registered workflow patterns against an
// injected tool executor. It holds no per-execution state and is safe
// for concurrent use across sessions.
type Orchestrator struct {
	executor      ToolExecutor
	fallbackEmail string
	log           *slog.Logger
}

// NewOrchestrator builds an orchestrator. fallbackEmail is used when a
// {user_email} placeholder cannot be resolved from the session's user.
func NewOrchestrator(executor ToolExecutor, fallbackEmail string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		executor:      executor,
		fallbackEmail: fallbackEmail,
		log:           logger.With("component", "workflow"),
	}
}

// ExecuteWorkflow runs every step of the named pattern in registry
// order and synthesizes a user-facing summary. An unknown workflow type
// is the only error this method returns; all runtime failures (tool
// errors, panics, infrastructure faults) are folded into a well-formed
// Result with Success=false.
// The extra map supplies caller context for parameter injection.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowType string, st *state.State, extra map[string]any) (*Result, error) {
	steps, ok := Lookup(workflowType)
	if !ok {
		return nil, fmt.Errorf("unknown workflow type: %q", workflowType)
	}
	return o.run(ctx, workflowType, steps, st, extra), nil
}

// run executes a step list. Split out from ExecuteWorkflow so tests can
// exercise dependency gating with ad hoc step lists.
func (o *Orchestrator) run(ctx context.Context, workflowType string, steps []Step, st *state.State, extra map[string]any) (res *Result) {
	start := time.Now()
	results := make(map[string]StepResult)
	var executed []string

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("workflow panicked", "type", workflowType, "reason", r)
			res = &Result{
				Success:       false,
				StepsExecuted: executed,
				Results:       results,
				Synthesis:     fmt.Sprintf("Workflow failed: %v", r),
				DurationMS:    time.Since(start).Milliseconds(),
			}
		}
	}()

	o.log.Info("starting workflow", "type", workflowType, "steps", len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			o.log.Warn("workflow cancelled", "type", workflowType, "step", step.ID)
			return o.failed(start, executed, results, err)
		}

		if missing := missingDeps(step, results); len(missing) > 0 {
			o.log.Warn("skipping step with unmet dependencies",
				"step", step.ID, "missing", strings.Join(missing, ","))
			continue
		}

		params := o.injectParameters(step.Params, results, st, extra)
		o.log.Info("executing step", "step", step.ID, "tool", step.ToolName, "description", step.Description)

		stepStart := time.Now()
		raw, err := o.executor.ExecuteTool(ctx, step.ToolName, params, st)
		elapsed := time.Since(stepStart).Milliseconds()

		if err != nil {
			// Infrastructure failure: abort remaining steps, still
			// return a well-formed result.
			if st != nil {
				st.UpdateToolUsage(step.ToolName, elapsed, false)
			}
			o.log.Error("step execution failed", "step", step.ID, "tool", step.ToolName, "err", err)
			return o.failed(start, executed, results, err)
		}

		success := DetermineSuccess(raw)
		results[step.ID] = StepResult{
			ToolName: step.ToolName,
			Params:   params,
			Result:   raw,
			Success:  success,
		}
		executed = append(executed, step.ID)

		if st != nil {
			st.UpdateToolUsage(step.ToolName, elapsed, success)
		}
		if !success {
			o.log.Warn("step failed, continuing workflow", "step", step.ID, "tool", step.ToolName)
		}
	}

	return &Result{
		Success:       len(executed) > 0,
		StepsExecuted: executed,
		Results:       results,
		Synthesis:     Synthesize(workflowType, results),
		DurationMS:    time.Since(start).Milliseconds(),
	}
}

func (o *Orchestrator) failed(start time.Time, executed []string, results map[string]StepResult, err error) *Result {
	return &Result{
		Success:       false,
		StepsExecuted: executed,
		Results:       results,
		Synthesis:     fmt.Sprintf("Workflow failed: %v", err),
		DurationMS:    time.Since(start).Milliseconds(),
	}
}

func missingDeps(step Step, results map[string]StepResult) []string {
	var missing []string
	for _, dep := range step.DependsOn {
		if _, ok := results[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// DetermineSuccess classifies a raw tool result. This is the single
// source of truth for the orchestrator's success/failure bookkeeping:
// a status of ERROR/FAILED/FAILURE (any case) or a ToolNotConfigured
// payload is failure; SUCCESS/OK/COMPLETED is success; otherwise any
// non-nil, non-empty result counts as success.
func DetermineSuccess(result any) bool {
	switch v := result.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case map[string]any:
		if status, ok := v["status"].(string); ok {
			switch strings.ToUpper(status) {
			case "ERROR", "FAILED", "FAILURE":
				return false
			case "SUCCESS", "OK", "COMPLETED":
				return true
			}
		}
		if et, _ := v["error_type"].(string); et == "ToolNotConfigured" {
			return false
		}
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
