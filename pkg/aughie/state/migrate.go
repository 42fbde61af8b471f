package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Migrate upgrades a state snapshot from any historical schema version
// to the current one. Input may be an already-current *State (returned
// unchanged), a mapping with a version tag, raw JSON bytes, or anything
// else (which yields a fresh empty state). Migration never fails: any
// error along the chain falls back to a brand-new empty state with a
// generated session id. Each transform is additive or restructuring
// only; user-visible history is never dropped.
func Migrate(raw any) *State {
	return MigrateWithLogger(raw, slog.Default())
}

// MigrateWithLogger is Migrate with an explicit logger.
func MigrateWithLogger(raw any, logger *slog.Logger) (out *State) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected error during state migration", "reason", r)
			out = freshState()
		}
	}()
	if logger == nil {
		logger = slog.Default()
	}

	var data map[string]any

	switch v := raw.(type) {
	case nil:
		return freshState()
	case *State:
		if v == nil {
			return freshState()
		}
		if v.Version == CurrentVersion {
			return v
		}
		logger.Info("state instance has old version, converting for migration", "version", v.Version)
		b, err := json.Marshal(v)
		if err != nil {
			logger.Error("failed to serialize state for migration", "err", err)
			return freshState()
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return freshState()
		}
	case State:
		return MigrateWithLogger(&v, logger)
	case map[string]any:
		data = v
	case []byte:
		if len(v) == 0 {
			return freshState()
		}
		if err := json.Unmarshal(v, &data); err != nil {
			logger.Warn("unparseable state payload, creating fresh state", "err", err)
			return freshState()
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return freshState()
		}
		if err := json.Unmarshal([]byte(v), &data); err != nil {
			logger.Warn("unparseable state payload, creating fresh state", "err", err)
			return freshState()
		}
	default:
		logger.Warn("unexpected state payload type, creating fresh state", "type", fmt.Sprintf("%T", raw))
		return freshState()
	}

	if len(data) == 0 {
		logger.Warn("empty state payload, creating fresh state")
		return freshState()
	}

	version, _ := data["version"].(string)
	if version == "" {
		version = "v1"
	}

	// Strictly ordered chain of version-to-version transforms, falling
	// through until the current version is reached.
	if version == "v1" {
		logger.Info("migrating state v1 -> v2")
		data = migrateV1toV2(data)
		version = "v2"
	}
	if version == "v2" {
		logger.Info("migrating state v2 -> v3")
		data = migrateV2toV3(data)
		version = "v3"
	}
	if version == "v3" {
		logger.Info("migrating state v3 -> v4")
		data = migrateV3toV4(data)
		version = "v4"
	}
	if version == "v4" {
		logger.Info("migrating state v4 -> v4_bot")
		data = migrateV4toV4Bot(data)
		version = CurrentVersion
	}

	if version != CurrentVersion {
		logger.Error("unknown state version after migration, resetting", "version", version)
		return freshState()
	}

	st, err := stateFromMap(data)
	if err != nil {
		logger.Error("state validation failed after migration, resetting", "err", err)
		return freshState()
	}
	return st
}

// freshState is the universal fallback: an empty current-version state
// with a migration-style session id.
func freshState() *State {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return NewWithSessionID("conv_" + hex[:8])
}

// migrateV1toV2 keeps only the fields v2 defined.
func migrateV1toV2(old map[string]any) map[string]any {
	out := map[string]any{
		"version":    "v2",
		"session_id": old["session_id"],
		"messages":   old["messages"],
	}
	if out["session_id"] == nil || out["session_id"] == "" {
		hex := strings.ReplaceAll(uuid.NewString(), "-", "")
		out["session_id"] = "conv_" + hex[:8]
	}
	if out["messages"] == nil {
		out["messages"] = []any{}
	}
	return out
}

// migrateV2toV3 is a version bump only; v3 introduced no structural change.
func migrateV2toV3(old map[string]any) map[string]any {
	old["version"] = "v3"
	return old
}

// migrateV3toV4 introduces the legacy single-workflow fields.
func migrateV3toV4(old map[string]any) map[string]any {
	if _, ok := old["current_workflow"]; !ok {
		old["current_workflow"] = nil
	}
	if _, ok := old["workflow_stage"]; !ok {
		old["workflow_stage"] = nil
	}
	old["version"] = "v4"
	return old
}

// migrateV4toV4Bot collapses the legacy current_workflow/workflow_stage
// pair into the active_workflows mapping, synthesizing one
// WorkflowContext with a migration-provenance history event.
func migrateV4toV4Bot(old map[string]any) map[string]any {
	old["version"] = CurrentVersion

	legacyType := old["current_workflow"]
	legacyStage := old["workflow_stage"]
	delete(old, "current_workflow")
	delete(old, "workflow_stage")

	if legacyType != nil && legacyType != "" {
		wfType := fmt.Sprint(legacyType)
		stage := ""
		if legacyStage != nil {
			stage = fmt.Sprint(legacyStage)
		}

		wf := NewWorkflowContext(wfType)
		wf.CurrentStage = stage
		wf.History = []HistoryEvent{{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			EventType: "MIGRATION",
			Message: fmt.Sprintf(
				"Workflow migrated from v4 state. Original type: %s, stage: %s", wfType, stage),
			StageAtEvent: stage,
			Details:      map[string]any{"source_version": "v4"},
		}}

		active, _ := old["active_workflows"].(map[string]any)
		if active == nil {
			active = map[string]any{}
		}
		active[wf.WorkflowID] = wf
		old["active_workflows"] = active
	}
	return old
}

// knownStateFields are the top-level JSON keys the current State schema
// owns. Anything else found in a migrated payload lands in Extra.
var knownStateFields = map[string]bool{
	"version": true, "session_id": true, "current_user_id": true,
	"current_user": true, "messages": true, "created_at": true,
	"updated_at": true, "session_stats": true, "scratchpad": true,
	"active_workflows": true, "completed_workflows": true, "extra": true,
}

// stateFromMap decodes a current-version payload into a State. Legacy
// message shapes ({role, content} and plain strings) are normalized to
// the canonical parts form first so no single entry can sink the whole
// snapshot or silently lose its text. Unknown top-level fields are
// preserved in Extra.
func stateFromMap(data map[string]any) (*State, error) {
	if rawMsgs, ok := data["messages"].([]any); ok {
		data["messages"] = normalizeRawMessages(rawMsgs)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal migrated payload: %w", err)
	}

	st := New()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("decode migrated payload: %w", err)
	}

	// Carry unknown legacy fields forward.
	for k, v := range data {
		if !knownStateFields[k] {
			if st.Extra == nil {
				st.Extra = map[string]any{}
			}
			st.Extra[k] = v
		}
	}

	if strings.TrimSpace(st.SessionID) == "" {
		hex := strings.ReplaceAll(uuid.NewString(), "-", "")
		st.SessionID = "conv_" + hex[:8]
	}
	if st.ActiveWorkflows == nil {
		st.ActiveWorkflows = make(map[string]*WorkflowContext)
	}
	if st.Stats.ToolUsage == nil {
		st.Stats.ToolUsage = make(map[string]*ToolUsageStats)
	}
	st.Version = CurrentVersion
	return st, nil
}

// normalizeRawMessages converts legacy message shapes into the
// canonical parts form. Entries already carrying "parts" or "raw_text"
// pass through untouched; {role, content}, {role, text}, and bare
// strings are rewritten so their text survives the strict decode.
func normalizeRawMessages(list []any) []any {
	out := make([]any, 0, len(list))
	for _, el := range list {
		switch m := el.(type) {
		case map[string]any:
			if _, ok := m["parts"]; ok {
				out = append(out, m)
				continue
			}
			if _, ok := m["raw_text"]; ok {
				out = append(out, m)
				continue
			}
			role := ""
			if r, ok := m["role"].(string); ok {
				role = r
			}
			text := ""
			if t, ok := m["content"].(string); ok {
				text = t
			} else if t, ok := m["text"].(string); ok {
				text = t
			}
			out = append(out, map[string]any{
				"role":      string(CoerceRole(role)),
				"raw_text":  text,
				"parts":     []any{map[string]any{"type": "text", "text": text}},
				"timestamp": time.Now().Format(time.RFC3339),
			})
		case string:
			out = append(out, map[string]any{
				"role":      string(RoleUser),
				"raw_text":  m,
				"parts":     []any{map[string]any{"type": "text", "text": m}},
				"timestamp": time.Now().Format(time.RFC3339),
			})
		default:
			// Undecodable entry: drop rather than poison the decode.
		}
	}
	return out
}
