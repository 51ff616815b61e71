// Package message models the two shapes an inbound chat message can take and
// reduces either to sanitized plain text.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnsupportedInput is returned by Decode for payloads that are neither a
// string nor a segment list.
var ErrUnsupportedInput = errors.New("unsupported message format")

// Input is either Text or Segments.
type Input interface {
	isInput()
}

// Text is a plain string message, as sent by the web UI.
type Text string

// Segments is a rich multi-segment message, as relayed from the messaging
// platform.
type Segments []Segment

func (Text) isInput()     {}
func (Segments) isInput() {}

// Segment is one typed part of a rich message.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const (
	SegmentText = "text"
	SegmentAt   = "at"
)

// Decode parses a JSON string or segment array into an Input.
func Decode(raw json.RawMessage) (Input, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrUnsupportedInput
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode text message: %w", err)
		}
		return Text(s), nil
	case '[':
		var segs []Segment
		if err := json.Unmarshal(trimmed, &segs); err != nil {
			return nil, fmt.Errorf("decode segment message: %w", err)
		}
		return Segments(segs), nil
	default:
		return nil, ErrUnsupportedInput
	}
}

// PlainText concatenates the text carried by in without sanitizing it.
func PlainText(in Input) string {
	switch v := in.(type) {
	case Text:
		return string(v)
	case Segments:
		var b strings.Builder
		for _, seg := range v {
			if seg.Type != SegmentText {
				continue
			}
			if text, ok := seg.Data["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

// Normalize extracts the text of in, trims it and removes every rune that is
// not a letter, digit, mark, underscore or whitespace.
func Normalize(in Input) string {
	return Sanitize(strings.TrimSpace(PlainText(in)))
}

// Sanitize drops punctuation, symbols and markup characters.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}

// IsAtBot reports whether in contains an @-mention addressed to botID.
func IsAtBot(in Input, botID string) bool {
	segs, ok := in.(Segments)
	if !ok || botID == "" {
		return false
	}
	for _, seg := range segs {
		if seg.Type != SegmentAt {
			continue
		}
		switch qq := seg.Data["qq"].(type) {
		case string:
			if qq == botID {
				return true
			}
		case float64:
			if fmt.Sprintf("%.0f", qq) == botID {
				return true
			}
		case json.Number:
			if qq.String() == botID {
				return true
			}
		}
	}
	return false
}
