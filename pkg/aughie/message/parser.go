// Package message implements safe parsing of arbitrary inbound message
// payloads into a canonical text-bearing form, plus the corruption
// heuristics that guard the conversation state against character-split
// and mojibake text. Parsing is total: every input shape produces a
// usable SafeMessage, never a panic.
package message

import (
	"fmt"
	"log/slog"
)

// TextPart is a single normalized text fragment of a message.
type TextPart struct {
	Content string `json:"content"`
}

// SafeMessage is the canonical, corruption-checked representation of
// one chat turn's content before it is committed to the state.
type SafeMessage struct {
	Role    string     `json:"role"`
	Parts   []TextPart `json:"parts"`
	RawText string     `json:"raw_text,omitempty"`
}

// TextCarrier is satisfied by values that expose their own text,
// e.g. channel adapter message types.
type TextCarrier interface {
	Text() string
}

// ContentCarrier is satisfied by values that expose a content string.
type ContentCarrier interface {
	Content() string
}

// Text returns the full text content. Never panics; returns "" when
// the message carries no textual content at all.
func (m SafeMessage) Text() string {
	if m.RawText != "" {
		return m.RawText
	}
	var out string
	for _, p := range m.Parts {
		out += p.Content
	}
	return out
}

// Parse normalizes any inbound value into a SafeMessage. Resolution
// order for maps: "text", then "content", then "parts" (each element
// normalized independently), else the whole value stringified. Any
// internal failure falls back to fmt.Sprint of the input as a single
// user-role text part.
func Parse(v any) (msg SafeMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("message parse fallback triggered", "reason", r)
			text := sprint(v)
			msg = SafeMessage{
				Role:    "user",
				Parts:   []TextPart{{Content: text}},
				RawText: text,
			}
		}
	}()

	switch val := v.(type) {
	case nil:
		return SafeMessage{Role: "user", Parts: []TextPart{{Content: ""}}}

	case string:
		return SafeMessage{
			Role:    "user",
			Parts:   []TextPart{{Content: val}},
			RawText: val,
		}

	case SafeMessage:
		return val

	case *SafeMessage:
		if val == nil {
			return SafeMessage{Role: "user", Parts: []TextPart{{Content: ""}}}
		}
		return *val

	case map[string]any:
		return parseMap(val)

	case TextCarrier:
		text := val.Text()
		return SafeMessage{
			Role:    roleOf(v),
			Parts:   []TextPart{{Content: text}},
			RawText: text,
		}

	case ContentCarrier:
		text := val.Content()
		return SafeMessage{
			Role:    roleOf(v),
			Parts:   []TextPart{{Content: text}},
			RawText: text,
		}

	default:
		text := sprint(v)
		return SafeMessage{
			Role:    "user",
			Parts:   []TextPart{{Content: text}},
			RawText: text,
		}
	}
}

// parseMap handles mapping-shaped input with any of text/content/parts/role.
func parseMap(m map[string]any) SafeMessage {
	msg := SafeMessage{Role: "user"}
	if role, ok := m["role"].(string); ok && role != "" {
		msg.Role = role
	}

	if text, ok := m["text"]; ok {
		s := sprint(text)
		msg.RawText = s
		msg.Parts = []TextPart{{Content: s}}
		return msg
	}
	if content, ok := m["content"]; ok {
		s := sprint(content)
		msg.RawText = s
		msg.Parts = []TextPart{{Content: s}}
		return msg
	}
	if rawParts, ok := m["parts"]; ok {
		if list, ok := rawParts.([]any); ok {
			for _, el := range list {
				msg.Parts = append(msg.Parts, normalizePart(el))
			}
			return msg
		}
		// A non-list "parts" value is treated as plain text.
		s := sprint(rawParts)
		msg.RawText = s
		msg.Parts = []TextPart{{Content: s}}
		return msg
	}

	// No recognizable text field: stringify the whole mapping.
	s := sprint(m)
	msg.RawText = s
	msg.Parts = []TextPart{{Content: s}}
	return msg
}

// normalizePart converts one element of a parts array into a TextPart.
func normalizePart(v any) TextPart {
	switch val := v.(type) {
	case nil:
		return TextPart{}
	case string:
		return TextPart{Content: val}
	case TextPart:
		return val
	case map[string]any:
		if text, ok := val["text"]; ok {
			return TextPart{Content: sprint(text)}
		}
		if content, ok := val["content"]; ok {
			return TextPart{Content: sprint(content)}
		}
		return TextPart{Content: sprint(val)}
	case TextCarrier:
		return TextPart{Content: val.Text()}
	case ContentCarrier:
		return TextPart{Content: val.Content()}
	default:
		return TextPart{Content: sprint(val)}
	}
}

// ExtractText pulls text out of any message-like value without
// constructing a full SafeMessage. Total: always returns a string.
func ExtractText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case SafeMessage:
		return val.Text()
	case *SafeMessage:
		if val == nil {
			return ""
		}
		return val.Text()
	case map[string]any:
		if text, ok := val["text"]; ok {
			return sprint(text)
		}
		if content, ok := val["content"]; ok {
			return sprint(content)
		}
		return sprint(val)
	case TextCarrier:
		return val.Text()
	case ContentCarrier:
		return val.Content()
	default:
		return sprint(val)
	}
}

// roleOf extracts a role from values that carry one, defaulting to "user".
func roleOf(v any) string {
	type roleCarrier interface{ Role() string }
	if rc, ok := v.(roleCarrier); ok {
		if r := rc.Role(); r != "" {
			return r
		}
	}
	return "user"
}

func sprint(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
