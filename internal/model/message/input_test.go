package message

import (
	"encoding/json"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	got := Normalize(Text("  hello, <b>world</b>!  "))
	if got != "hello bworldb" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeKeepsCJKAndUnderscore(t *testing.T) {
	got := Normalize(Text("你好喵~ foo_bar 123！"))
	if got != "你好喵 foo_bar 123" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeSegmentsOnlyUsesText(t *testing.T) {
	in := Segments{
		{Type: "at", Data: map[string]any{"qq": "10001"}},
		{Type: "text", Data: map[string]any{"text": " hi "}},
		{Type: "image", Data: map[string]any{"file": "a.png"}},
		{Type: "text", Data: map[string]any{"text": "there!"}},
	}
	if got := Normalize(in); got != "hi there" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeEmptyAfterSanitize(t *testing.T) {
	if got := Normalize(Text("?!...")); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if got := Normalize(Segments{{Type: "face", Data: map[string]any{"id": "1"}}}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestDecode(t *testing.T) {
	in, err := Decode(json.RawMessage(`"hello"`))
	if err != nil {
		t.Fatalf("Decode string err: %v", err)
	}
	if _, ok := in.(Text); !ok {
		t.Fatalf("expected Text, got %T", in)
	}

	in, err = Decode(json.RawMessage(`[{"type":"text","data":{"text":"hi"}}]`))
	if err != nil {
		t.Fatalf("Decode segments err: %v", err)
	}
	segs, ok := in.(Segments)
	if !ok || len(segs) != 1 {
		t.Fatalf("expected one segment, got %#v", in)
	}

	if _, err := Decode(json.RawMessage(`{"text":"hi"}`)); err == nil {
		t.Fatal("expected error for object payload")
	}
}

func TestIsAtBot(t *testing.T) {
	var numeric Input
	numeric, err := Decode(json.RawMessage(`[{"type":"at","data":{"qq":10001}},{"type":"text","data":{"text":"hi"}}]`))
	if err != nil {
		t.Fatalf("Decode err: %v", err)
	}
	if !IsAtBot(numeric, "10001") {
		t.Fatal("expected numeric qq mention to match")
	}

	str := Segments{{Type: "at", Data: map[string]any{"qq": "10001"}}}
	if !IsAtBot(str, "10001") {
		t.Fatal("expected string qq mention to match")
	}
	if IsAtBot(str, "20002") {
		t.Fatal("mention of another account must not match")
	}
	if IsAtBot(Text("@10001 hi"), "10001") {
		t.Fatal("plain text is never a mention")
	}
}
