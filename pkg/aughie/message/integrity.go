package message

import (
	"log/slog"
	"strings"
	"unicode"
)

// Thresholds for the corruption heuristics. Values are tuned against
// real character-split incidents observed in channel adapters.
const (
	noSpaceLengthThreshold  = 50
	minLengthForAlphaRatio  = 20
	minAlphaRatio           = 0.3
	commaFragmentThreshold  = 20
	shortFragmentMaxLen     = 2
	shortFragmentMinCount   = 10
	avgWordLengthThreshold  = 1.5
	minWordsForAvgLengthRun = 5
)

// encodingArtifacts are substrings that only show up when text has been
// double-encoded or escaped somewhere along the pipeline.
var encodingArtifacts = []string{
	`\u00`,
	`\x`,
	`�`,
	"�",
	"â€™",
	"â€œ",
	"â€",
	"Ã¢â‚¬",
}

// ValidateTextIntegrity reports whether text looks like well-formed
// prose rather than character-split or encoding-mangled garbage. The
// heuristics are independent; any single one failing marks the text
// invalid. Empty text is valid.
func ValidateTextIntegrity(text string) bool {
	if text == "" {
		return true
	}

	// Long run with no word separators at all.
	if len(text) > noSpaceLengthThreshold &&
		!strings.Contains(text, " ") && !strings.Contains(text, "\n") {
		slog.Warn("text integrity: long run without spaces", "prefix", prefix(text, 50))
		return false
	}

	// Character-by-character splitting often arrives comma-joined:
	// "h,e,l,l,o, ,w,o,r,l,d".
	if fragments := strings.Split(text, ","); len(fragments) > commaFragmentThreshold {
		short := 0
		for i := 0; i < shortFragmentMinCount && i < len(fragments); i++ {
			if len(strings.TrimSpace(fragments[i])) <= shortFragmentMaxLen {
				short++
			}
		}
		if short >= shortFragmentMinCount {
			slog.Warn("text integrity: comma-fragmented text", "fragments", len(fragments))
			return false
		}
	}

	// Mostly non-alphabetic content in anything beyond a short token.
	if len(text) > minLengthForAlphaRatio {
		alpha := 0
		total := 0
		for _, r := range text {
			total++
			if unicode.IsLetter(r) {
				alpha++
			}
		}
		if total > 0 && float64(alpha)/float64(total) < minAlphaRatio {
			slog.Warn("text integrity: low alphabetic ratio", "prefix", prefix(text, 50))
			return false
		}
	}

	for _, artifact := range encodingArtifacts {
		if strings.Contains(text, artifact) {
			slog.Warn("text integrity: encoding artifact found", "artifact", artifact)
			return false
		}
	}

	// Many one-character "words" is the classic character-split shape.
	words := strings.Fields(text)
	if len(words) > minWordsForAvgLengthRun {
		totalLen := 0
		for _, w := range words {
			totalLen += len(w)
		}
		avg := float64(totalLen) / float64(len(words))
		if avg <= avgWordLengthThreshold {
			slog.Warn("text integrity: possible character splitting", "prefix", prefix(text, 50))
			return false
		}
	}

	return true
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
