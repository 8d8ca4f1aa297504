package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dataloom/hybridqa/agent"
)

// Fallbacks is the pre-defined degraded-mode answer set. Records are
// keyed by question identifier and also retain file order, so a
// malformed line with no readable identifier can still be matched by
// position.
type Fallbacks struct {
	ordered []agent.AnswerRecord
	byID    map[string]agent.AnswerRecord
}

// LoadFallbacks reads a JSON array of answer records from path. An
// empty path yields an empty set, which degrades every failure to the
// generic default record.
func LoadFallbacks(path string) (Fallbacks, error) {
	if path == "" {
		return Fallbacks{byID: map[string]agent.AnswerRecord{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Fallbacks{}, fmt.Errorf("read fallbacks: %w", err)
	}

	var records []agent.AnswerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Fallbacks{}, fmt.Errorf("parse fallbacks: %w", err)
	}
	return NewFallbacks(records), nil
}

// NewFallbacks builds a set from records, marking every record as
// degraded so fallback output is distinguishable from genuine answers.
func NewFallbacks(records []agent.AnswerRecord) Fallbacks {
	f := Fallbacks{
		ordered: make([]agent.AnswerRecord, 0, len(records)),
		byID:    make(map[string]agent.AnswerRecord, len(records)),
	}
	for _, rec := range records {
		rec.Degraded = true
		f.ordered = append(f.ordered, rec)
		if rec.ID != "" {
			f.byID[rec.ID] = rec
		}
	}
	return f
}

// For returns the fallback record for a failed question: matched by
// identifier first, then by batch position, else a clearly marked
// default.
func (f Fallbacks) For(id string, position int) agent.AnswerRecord {
	if id != "" {
		if rec, ok := f.byID[id]; ok {
			return rec
		}
	}
	if position >= 0 && position < len(f.ordered) {
		return f.ordered[position]
	}
	return defaultRecord(id)
}

// All returns the full fallback set, used when the batch input cannot
// be read at all. An empty set yields an empty output.
func (f Fallbacks) All() []agent.AnswerRecord {
	out := make([]agent.AnswerRecord, len(f.ordered))
	copy(out, f.ordered)
	return out
}

// Len reports how many fallback records are loaded.
func (f Fallbacks) Len() int {
	return len(f.ordered)
}

func defaultRecord(id string) agent.AnswerRecord {
	return agent.AnswerRecord{
		ID:          id,
		FinalAnswer: agent.Answer{Kind: agent.AnswerText, Text: "answer unavailable"},
		Citations:   []string{},
		Degraded:    true,
	}
}
