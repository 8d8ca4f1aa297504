package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dataloom/hybridqa/agent"
)

// scriptedAnswerer answers by question ID and fails on demand.
type scriptedAnswerer struct {
	failIDs map[string]bool
}

func (s *scriptedAnswerer) Answer(_ context.Context, q agent.Question) (agent.AnswerRecord, error) {
	if s.failIDs[q.ID] {
		return agent.AnswerRecord{}, errors.New("processing failed")
	}
	return agent.AnswerRecord{
		ID:          q.ID,
		Question:    q.Text,
		FinalAnswer: agent.Answer{Kind: agent.AnswerScalar, Value: float64(len(q.Text))},
		Citations:   []string{"doc.md"},
	}, nil
}

func testFallbacks() Fallbacks {
	return NewFallbacks([]agent.AnswerRecord{
		{ID: "q1", FinalAnswer: agent.Answer{Kind: agent.AnswerScalar, Value: float64(14)}, Citations: []string{"product_policy.md"}},
		{ID: "q2", FinalAnswer: agent.Answer{Kind: agent.AnswerScalar, Value: "Margaret Peacock"}, Citations: []string{"orders"}},
		{ID: "q3", FinalAnswer: agent.Answer{Kind: agent.AnswerScalar, Value: float64(20)}, Citations: []string{"vacation_policy.md"}},
	})
}

func ndjson(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestRunnerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("answers preserve input order", func(t *testing.T) {
		input := ndjson(
			`{"id":"q1","question":"first"}`,
			`{"id":"q2","question":"second"}`,
			`{"id":"q3","question":"third"}`,
		)
		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 3, nil)

		records, err := runner.Run(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("records = %d, want 3", len(records))
		}
		for i, want := range []string{"q1", "q2", "q3"} {
			if records[i].ID != want {
				t.Errorf("records[%d].ID = %q, want %q", i, records[i].ID, want)
			}
			if records[i].Degraded {
				t.Errorf("records[%d] marked degraded", i)
			}
		}
	})

	t.Run("failed question gets its fallback record", func(t *testing.T) {
		input := ndjson(
			`{"id":"q1","question":"first"}`,
			`{"id":"q2","question":"second"}`,
		)
		runner := NewRunner(&scriptedAnswerer{failIDs: map[string]bool{"q2": true}}, testFallbacks(), 1, nil)

		records, err := runner.Run(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("records = %d, want 2", len(records))
		}
		if records[0].Degraded {
			t.Error("healthy question marked degraded")
		}
		if !records[1].Degraded {
			t.Error("failed question not marked degraded")
		}
		if got, ok := records[1].FinalAnswer.Value.(string); !ok || got != "Margaret Peacock" {
			t.Errorf("fallback answer = %v", records[1].FinalAnswer.Value)
		}
	})

	t.Run("malformed line filled by position", func(t *testing.T) {
		input := ndjson(
			`{"id":"q1","question":"first"}`,
			`{not json at all`,
			`{"id":"q3","question":"third"}`,
		)
		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 2, nil)

		records, err := runner.Run(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("records = %d, want 3", len(records))
		}
		if !records[1].Degraded {
			t.Error("malformed line not degraded")
		}
		if records[1].ID != "q2" {
			t.Errorf("positional fallback ID = %q, want q2", records[1].ID)
		}
		if records[0].Degraded || records[2].Degraded {
			t.Error("healthy lines affected by malformed neighbor")
		}
	})

	t.Run("unmapped failure gets default record", func(t *testing.T) {
		input := ndjson(
			`{"id":"a","question":"1"}`,
			`{"id":"b","question":"2"}`,
			`{"id":"c","question":"3"}`,
			`{"id":"mystery","question":"4"}`,
		)
		runner := NewRunner(&scriptedAnswerer{failIDs: map[string]bool{"mystery": true}}, testFallbacks(), 4, nil)

		records, err := runner.Run(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		last := records[3]
		if !last.Degraded {
			t.Error("not degraded")
		}
		if last.FinalAnswer.Kind != agent.AnswerText || last.FinalAnswer.Text != "answer unavailable" {
			t.Errorf("default record = %+v", last.FinalAnswer)
		}
		if last.ID != "mystery" {
			t.Errorf("ID = %q, want mystery", last.ID)
		}
	})

	t.Run("read failure degrades to full fallback set", func(t *testing.T) {
		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 2, nil)

		records, err := runner.Run(ctx, failingReader{})
		if err == nil {
			t.Fatal("expected read error")
		}
		if len(records) != 3 {
			t.Fatalf("records = %d, want full fallback set", len(records))
		}
		for i, rec := range records {
			if !rec.Degraded {
				t.Errorf("records[%d] not degraded", i)
			}
		}
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		input := "\n" + `{"id":"q1","question":"first"}` + "\n\n"
		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 1, nil)

		records, err := runner.Run(ctx, strings.NewReader(input))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("records = %d, want 1", len(records))
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk error")
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("writes one line per question", func(t *testing.T) {
		inPath := filepath.Join(dir, "in.jsonl")
		outPath := filepath.Join(dir, "out.jsonl")
		input := ndjson(
			`{"id":"q1","question":"first"}`,
			`{"id":"q2","question":"second"}`,
		)
		if err := os.WriteFile(inPath, []byte(input), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}

		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 2, nil)
		count, err := runner.RunFile(ctx, inPath, outPath)
		if err != nil {
			t.Fatalf("RunFile: %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}

		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 {
			t.Fatalf("output lines = %d, want 2", len(lines))
		}
		if !strings.Contains(lines[0], `"question_id":"q1"`) {
			t.Errorf("line 0 = %s", lines[0])
		}
	})

	t.Run("missing input still writes fallback set", func(t *testing.T) {
		outPath := filepath.Join(dir, "fallback_out.jsonl")
		runner := NewRunner(&scriptedAnswerer{}, testFallbacks(), 1, nil)

		count, err := runner.RunFile(ctx, filepath.Join(dir, "missing.jsonl"), outPath)
		if err != nil {
			t.Fatalf("RunFile: %v", err)
		}
		if count != 3 {
			t.Errorf("count = %d, want 3", count)
		}
		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if !strings.Contains(string(data), `"degraded":true`) {
			t.Errorf("output missing degraded flag:\n%s", data)
		}
	})
}

func TestFallbacks(t *testing.T) {
	f := testFallbacks()

	t.Run("lookup by id", func(t *testing.T) {
		rec := f.For("q3", 99)
		if rec.ID != "q3" || !rec.Degraded {
			t.Errorf("rec = %+v", rec)
		}
	})

	t.Run("lookup by position", func(t *testing.T) {
		rec := f.For("", 1)
		if rec.ID != "q2" {
			t.Errorf("rec.ID = %q, want q2", rec.ID)
		}
	})

	t.Run("default when unmatched", func(t *testing.T) {
		rec := f.For("ghost", 99)
		if rec.ID != "ghost" || rec.FinalAnswer.Kind != agent.AnswerText {
			t.Errorf("rec = %+v", rec)
		}
	})

	t.Run("all returns a copy", func(t *testing.T) {
		all := f.All()
		if len(all) != f.Len() {
			t.Fatalf("len = %d, want %d", len(all), f.Len())
		}
		all[0].ID = "mutated"
		if f.All()[0].ID == "mutated" {
			t.Error("All exposed internal slice")
		}
	})
}

func TestLoadFallbacks(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fallbacks.json")
		content := `[{"question_id":"q1","final_answer":14,"citations":["product_policy.md"]}]`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		f, err := LoadFallbacks(path)
		if err != nil {
			t.Fatalf("LoadFallbacks: %v", err)
		}
		if f.Len() != 1 {
			t.Fatalf("Len = %d, want 1", f.Len())
		}
		rec := f.For("q1", 0)
		if v, ok := rec.FinalAnswer.Value.(float64); !ok || v != 14 {
			t.Errorf("final answer = %v", rec.FinalAnswer.Value)
		}
	})

	t.Run("empty path yields empty set", func(t *testing.T) {
		f, err := LoadFallbacks("")
		if err != nil {
			t.Fatalf("LoadFallbacks: %v", err)
		}
		if f.Len() != 0 {
			t.Errorf("Len = %d, want 0", f.Len())
		}
	})

	t.Run("invalid json fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFallbacks(path); err == nil {
			t.Error("expected parse error")
		}
	})
}
