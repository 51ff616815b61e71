// Package directive extracts the bracketed status-delta annotations the model
// embeds in its replies, e.g. "[affection: +5]".
package directive

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

// DefaultStaminaCost is applied when a reply carries no stamina directive.
const DefaultStaminaCost = -2

// maxMagnitude bounds parsed values; anything larger clamps anyway.
const maxMagnitude = math.MaxInt32

var (
	affectionPattern = regexp.MustCompile(`\[affection:\s*([+-]?\d+)\]`)
	staminaPattern   = regexp.MustCompile(`\[stamina:\s*([+-]?\d+)\]`)
	moodPattern      = regexp.MustCompile(`\[mood:\s*([+-]?\d+)\]`)

	reasoningPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Parse scans raw model output for directives. The first match per keyword
// wins; a missing keyword falls back to {affection: 0, stamina: -2, mood: 0}.
func Parse(raw string) status.Delta {
	delta := status.Delta{Stamina: DefaultStaminaCost}
	if v, ok := find(affectionPattern, raw); ok {
		delta.Affection = v
	}
	if v, ok := find(staminaPattern, raw); ok {
		delta.Stamina = v
	}
	if v, ok := find(moodPattern, raw); ok {
		delta.Mood = v
	}
	return delta
}

// StripReasoning removes every <think>...</think> block, tags included, and
// trims surrounding whitespace.
func StripReasoning(raw string) string {
	return strings.TrimSpace(reasoningPattern.ReplaceAllString(raw, ""))
}

func find(re *regexp.Regexp, raw string) (int, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// ParseInt saturates on ErrRange; the sign is what matters.
		if !strings.HasPrefix(m[1], "-") {
			return maxMagnitude, true
		}
		return -maxMagnitude, true
	}
	if v > maxMagnitude {
		v = maxMagnitude
	}
	if v < -maxMagnitude {
		v = -maxMagnitude
	}
	return int(v), true
}
