// Package batch reads newline-delimited JSON questions, answers them
// concurrently, and writes one output record per input line.
//
// The batch contract is total: every input line produces exactly one
// output record, in input order. A question whose processing fails is
// replaced by its fallback record, and a batch file that cannot be
// read at all degrades to the full fallback set.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dataloom/hybridqa/agent"
	"github.com/dataloom/hybridqa/graph/emit"
)

// Answerer processes a single question. *agent.Workflow implements it.
type Answerer interface {
	Answer(ctx context.Context, q agent.Question) (agent.AnswerRecord, error)
}

// Runner drives a batch of questions through an Answerer.
type Runner struct {
	answerer  Answerer
	fallbacks Fallbacks
	emitter   emit.Emitter

	// concurrency bounds in-flight questions; model latency dominates,
	// so a small pool saturates throughput.
	concurrency int
}

// NewRunner builds a batch runner. Concurrency below 1 is treated as 1
// (strictly sequential). The emitter may be nil.
func NewRunner(answerer Answerer, fallbacks Fallbacks, concurrency int, emitter emit.Emitter) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		answerer:    answerer,
		fallbacks:   fallbacks,
		emitter:     emitter,
		concurrency: concurrency,
	}
}

// line is one raw input line with its position in the batch.
type line struct {
	index int
	text  string
}

// Run answers every question in the NDJSON stream and returns one
// record per input line, re-sorted to input order.
//
// A malformed line or a failed question yields its fallback record in
// place. If the stream itself cannot be read, the full fallback set is
// returned along with the read error so the caller still has a
// complete output to write.
func (r *Runner) Run(ctx context.Context, input io.Reader) ([]agent.AnswerRecord, error) {
	lines, err := readLines(input)
	if err != nil {
		r.emit(emit.Event{Msg: "batch_read_failed", Meta: map[string]interface{}{"error": err.Error()}})
		return r.fallbacks.All(), fmt.Errorf("read batch: %w", err)
	}

	type indexed struct {
		index  int
		record agent.AnswerRecord
	}

	results := make([]indexed, 0, len(lines))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.concurrency)

	for _, ln := range lines {
		wg.Add(1)
		go func(ln line) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec := r.answerLine(ctx, ln)
			mu.Lock()
			results = append(results, indexed{index: ln.index, record: rec})
			mu.Unlock()
		}(ln)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })

	out := make([]agent.AnswerRecord, 0, len(results))
	for _, res := range results {
		out = append(out, res.record)
	}
	return out, nil
}

// answerLine processes one input line, degrading to a fallback record
// on a malformed line or a question-level failure. The returned record
// is never empty.
func (r *Runner) answerLine(ctx context.Context, ln line) agent.AnswerRecord {
	var q agent.Question
	if err := json.Unmarshal([]byte(ln.text), &q); err != nil || q.Text == "" {
		r.emit(emit.Event{
			Step: ln.index,
			Msg:  "batch_line_malformed",
		})
		return r.fallbacks.For("", ln.index)
	}

	rec, err := r.answerer.Answer(ctx, q)
	if err != nil {
		r.emit(emit.Event{
			RunID: "run-" + q.ID,
			Step:  ln.index,
			Msg:   "question_failed",
			Meta:  map[string]interface{}{"error": err.Error()},
		})
		return r.fallbacks.For(q.ID, ln.index)
	}

	r.emit(emit.Event{RunID: "run-" + q.ID, Step: ln.index, Msg: "question_answered"})
	return rec
}

// RunFile reads questions from inPath, writes NDJSON records to
// outPath, and returns the number of records written. The output file
// is written even when the input cannot be read (full fallback set).
func (r *Runner) RunFile(ctx context.Context, inPath, outPath string) (int, error) {
	var records []agent.AnswerRecord

	in, err := os.Open(inPath)
	if err != nil {
		records = r.fallbacks.All()
	} else {
		records, err = r.Run(ctx, in)
		in.Close()
		if err != nil {
			// Run already substituted the fallback set.
			records = r.fallbacks.All()
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("write output: %w", err)
	}
	return len(records), nil
}

// readLines splits the stream into raw lines, skipping blank ones but
// keeping original positions.
func readLines(input io.Reader) ([]line, error) {
	var lines []line
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	i := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			i++
			continue
		}
		lines = append(lines, line{index: i, text: text})
		i++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *Runner) emit(ev emit.Event) {
	if r.emitter != nil {
		r.emitter.Emit(ev)
	}
}
