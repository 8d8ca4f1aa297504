package agent

import (
	"encoding/json"
	"strings"
)

// AnswerKind discriminates the Answer union.
type AnswerKind string

const (
	// AnswerNone means no answer has been produced yet.
	AnswerNone AnswerKind = ""

	// AnswerScalar is a single JSON value (number, string, or bool).
	AnswerScalar AnswerKind = "scalar"

	// AnswerList is an ordered JSON array.
	AnswerList AnswerKind = "list"

	// AnswerObject is a JSON object with named fields.
	AnswerObject AnswerKind = "object"

	// AnswerText is raw model output that failed structured parsing.
	// Falling back to text is a recoverable condition, never an error.
	AnswerText AnswerKind = "text"
)

// Answer is the final answer union: Scalar, List, Object, or Text.
//
// It marshals as its bare payload so output records carry the value
// directly, e.g. {"final_answer": 30} or {"final_answer": [...]}.
type Answer struct {
	Kind  AnswerKind
	Value interface{}
	Text  string
}

// IsSet reports whether an answer has been produced.
func (a Answer) IsSet() bool {
	return a.Kind != AnswerNone
}

// ParseAnswer classifies raw model output into the Answer union.
//
// Markdown code fences are stripped first since models routinely wrap
// JSON payloads in them. If the payload is not valid JSON the raw text
// is used verbatim as an AnswerText.
func ParseAnswer(raw string) Answer {
	trimmed := stripFences(strings.TrimSpace(raw))

	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return Answer{Kind: AnswerText, Text: strings.TrimSpace(raw)}
	}

	switch v.(type) {
	case map[string]interface{}:
		return Answer{Kind: AnswerObject, Value: v}
	case []interface{}:
		return Answer{Kind: AnswerList, Value: v}
	default:
		return Answer{Kind: AnswerScalar, Value: v}
	}
}

// stripFences removes a surrounding markdown code fence, including an
// optional language tag on the opening line.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// MarshalJSON emits the bare payload.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerNone:
		return []byte("null"), nil
	default:
		return json.Marshal(a.Value)
	}
}

// UnmarshalJSON reclassifies a bare payload, mirroring ParseAnswer.
// A JSON string round-trips as a scalar; that distinction is
// presentational only.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch val := v.(type) {
	case nil:
		*a = Answer{}
	case map[string]interface{}:
		*a = Answer{Kind: AnswerObject, Value: val}
	case []interface{}:
		*a = Answer{Kind: AnswerList, Value: val}
	default:
		*a = Answer{Kind: AnswerScalar, Value: val}
	}
	return nil
}
