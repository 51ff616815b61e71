package directive

import (
	"testing"

	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want status.Delta
	}{
		{"partial", "[affection: +7] blah [stamina: -3]", status.Delta{Affection: 7, Stamina: -3}},
		{"none", "just chatting", status.Delta{Stamina: -2}},
		{"all", "喵~ [affection: -1][stamina: +4][mood: 3]", status.Delta{Affection: -1, Stamina: 4, Mood: 3}},
		{"first wins", "[mood: +2] then [mood: -9]", status.Delta{Stamina: -2, Mood: 2}},
		{"no space", "[affection:+5]", status.Delta{Affection: 5, Stamina: -2}},
		{"case sensitive", "[Affection: +5] [MOOD: +1]", status.Delta{Stamina: -2}},
		{"explicit zero stamina", "[stamina: 0]", status.Delta{}},
		{"inside reasoning", "<think>[affection: +9]</think>ok", status.Delta{Affection: 9, Stamina: -2}},
		{"huge", "[affection: +99999999999999999999999]", status.Delta{Affection: maxMagnitude, Stamina: -2}},
		{"huge negative", "[mood: -99999999999999999999999]", status.Delta{Stamina: -2, Mood: -maxMagnitude}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.raw); got != tc.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestStripReasoning(t *testing.T) {
	cases := map[string]string{
		"<think>internal</think>visible":                 "visible",
		"  <think>\nmulti\nline\n</think>\n  喵~ hi  ":      "喵~ hi",
		"a<think>x</think>b<think>y</think>c":             "abc",
		"no block [affection: +1]":                        "no block [affection: +1]",
		"<think>unterminated":                             "<think>unterminated",
	}
	for in, want := range cases {
		if got := StripReasoning(in); got != want {
			t.Errorf("StripReasoning(%q) = %q, want %q", in, got, want)
		}
	}
}
