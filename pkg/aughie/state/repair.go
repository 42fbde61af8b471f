package state

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jholhewres/aughie/pkg/aughie/message"
)

// corruptedBeyondRepair reports whether a message's text matches the
// removal criterion: a long run with no word separators at all. Other
// integrity failures are tolerated in stored history; this one is the
// character-split signature and is cut out.
func corruptedBeyondRepair(text string) bool {
	return len(text) > 50 &&
		!strings.Contains(text, " ") &&
		!strings.Contains(text, "\n")
}

// ValidateAndRepair scans a state for corruption and fixes it in place,
// returning whether the state was already valid and the list of repairs
// applied. Repair always succeeds (by deletion or coercion); the
// function never fails, and applying it twice reports no further
// repairs.
func ValidateAndRepair(s *State) (bool, []string) {
	var repairs []string
	if s == nil {
		return false, []string{"state was nil; nothing to repair"}
	}

	// Session identity.
	if strings.TrimSpace(s.SessionID) == "" || strings.ContainsAny(s.SessionID, " \t\n") {
		old := s.SessionID
		s.SessionID = uuid.NewString()
		repairs = append(repairs, fmt.Sprintf("regenerated invalid session id %q", old))
	}

	// Schema version.
	if !KnownVersions[s.Version] {
		repairs = append(repairs, fmt.Sprintf("reset unknown schema version %q to %s", s.Version, CurrentVersion))
		s.Version = CurrentVersion
	}

	// Collections that must never be nil.
	if s.ActiveWorkflows == nil {
		s.ActiveWorkflows = make(map[string]*WorkflowContext)
	}
	if s.Stats.ToolUsage == nil {
		s.Stats.ToolUsage = make(map[string]*ToolUsageStats)
	}

	// Message scan: coerce invalid roles, remove character-split text.
	kept := s.Messages[:0]
	for i := range s.Messages {
		m := s.Messages[i]

		text := m.Text()
		if corruptedBeyondRepair(text) {
			repairs = append(repairs, fmt.Sprintf(
				"removed corrupted message at index %d (%d chars, no spaces)", i, len(text)))
			continue
		}
		if !message.ValidateTextIntegrity(text) {
			// Flagged but not removable: keep, callers see it via logs.
			s.logger().Warn("message failed integrity check but kept", "index", i)
		}

		if !KnownRoles[m.Role] {
			repairs = append(repairs, fmt.Sprintf(
				"coerced invalid role %q to user at index %d", m.Role, i))
			m.Role = RoleUser
		}
		kept = append(kept, m)
	}
	s.Messages = kept

	// Oversized history.
	if len(s.Messages) > HardMessageCap {
		dropped := s.CleanupMessages(TrimTargetCount)
		repairs = append(repairs, fmt.Sprintf(
			"trimmed oversized message history (dropped %d, kept %d)", dropped, len(s.Messages)))
	}

	if len(repairs) > 0 {
		s.logger().Info("state repaired", "repairs", len(repairs))
	}
	return len(repairs) == 0, repairs
}
