package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataloom/hybridqa/graph"
	"github.com/dataloom/hybridqa/graph/model"
)

// Node IDs in the question-answering graph.
const (
	nodeRoute      = "route"
	nodeRetrieve   = "retrieve"
	nodeGenerate   = "generate"
	nodeExecute    = "execute"
	nodeRepair     = "repair"
	nodeSynthesize = "synthesize"
)

// topK is the retrieval depth.
const topK = 3

// docPrefixLimit bounds how much of each retrieved document is fed to
// synthesis, to keep prompt size bounded.
const docPrefixLimit = 1000

// routeNode classifies the question into one of the three routes with
// a single model call. An out-of-set label fails closed to the
// structured route and marks the state accordingly. A failed model
// call is a question-level failure.
func (w *Workflow) routeNode(ctx context.Context, s QAState) graph.NodeResult[QAState] {
	prompt := fmt.Sprintf(
		"Classify this question as 'docs' (answered from policy documents), "+
			"'sql' (answered from the database), or 'hybrid' (needs both). "+
			"Answer with exactly one word.\n\nQuestion: %s",
		s.Question.Text,
	)

	out, err := w.model.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}})
	if err != nil {
		return graph.NodeResult[QAState]{Err: fmt.Errorf("routing failed: %w", err)}
	}

	route, err := ParseRoute(out.Text)
	if err != nil {
		return graph.NodeResult[QAState]{
			Delta: QAState{Route: RouteStructured, RouteDefaulted: true},
		}
	}

	return graph.NodeResult[QAState]{Delta: QAState{Route: route}}
}

// retrieveNode ranks the corpus against the question and records the
// top hits plus their sources as citations. Purely functional given
// the fixed corpus.
func (w *Workflow) retrieveNode(_ context.Context, s QAState) graph.NodeResult[QAState] {
	docs := w.retriever.TopK(s.Question.Text, topK)

	citations := make([]string, 0, len(docs))
	for _, doc := range docs {
		citations = append(citations, doc.Source)
	}

	return graph.NodeResult[QAState]{
		Delta: QAState{Docs: docs, Citations: citations},
	}
}

// generateNode produces a query from the question and the schema
// description. The model may reason before emitting the query; only
// the final query string is kept.
func (w *Workflow) generateNode(ctx context.Context, s QAState) graph.NodeResult[QAState] {
	prompt := fmt.Sprintf(
		"Given this database schema:\n%s\n\n"+
			"Write a SQLite query answering: %s\n\n"+
			"Think about which tables and joins are needed, then output "+
			"only the final query.",
		w.schema, s.Question.Text,
	)

	out, err := w.model.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}})
	if err != nil {
		return graph.NodeResult[QAState]{Err: fmt.Errorf("query generation failed: %w", err)}
	}

	return graph.NodeResult[QAState]{Delta: QAState{SQL: extractSQL(out.Text)}}
}

// executeNode runs the current query.
//
// On success the outcome and the cited tables (derived from the query
// text itself) are recorded and control moves to synthesis. On failure
// the outcome supersedes any previous one; if the repair budget is not
// exhausted the attempt counter is incremented and control moves to
// repair, otherwise the failed outcome is frozen and synthesis
// proceeds without a structured result.
func (w *Workflow) executeNode(ctx context.Context, s QAState) graph.NodeResult[QAState] {
	result, err := w.source.Run(ctx, s.SQL)
	if err != nil {
		delta := QAState{Outcome: &ExecutionOutcome{Err: err.Error()}}
		if s.Attempts < MaxRepairs {
			delta.Attempts = s.Attempts + 1
			w.metrics.IncRepairs()
			return graph.NodeResult[QAState]{Delta: delta, Route: graph.Goto(nodeRepair)}
		}
		return graph.NodeResult[QAState]{Delta: delta, Route: graph.Goto(nodeSynthesize)}
	}

	return graph.NodeResult[QAState]{
		Delta: QAState{
			Outcome:   &ExecutionOutcome{Result: result},
			Citations: tablesInQuery(s.SQL),
		},
		Route: graph.Goto(nodeSynthesize),
	}
}

// repairNode asks the model to correct the failed query from the prior
// query text and error message alone, then re-enters execution. If the
// repair call itself fails, execution re-runs the unchanged query so
// the failure consumes the same bounded budget.
func (w *Workflow) repairNode(ctx context.Context, s QAState) graph.NodeResult[QAState] {
	prompt := fmt.Sprintf(
		"Fix this SQL query.\nError: %s\nBad SQL: %s\nOnly return the corrected SQL:",
		s.Outcome.Err, s.SQL,
	)

	out, err := w.model.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}})
	if err != nil {
		return graph.NodeResult[QAState]{Route: graph.Goto(nodeExecute)}
	}

	return graph.NodeResult[QAState]{
		Delta: QAState{SQL: extractSQL(out.Text)},
		Route: graph.Goto(nodeExecute),
	}
}

// synthesizeNode combines the question, any query result, and any
// retrieved documents into the final answer. The model is asked for a
// JSON payload; unparseable output falls back to the raw text.
func (w *Workflow) synthesizeNode(ctx context.Context, s QAState) graph.NodeResult[QAState] {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", s.Question.Text)

	if s.Outcome != nil && !s.Outcome.Failed() {
		fmt.Fprintf(&sb, "Database result:\n%s\n\n", s.Outcome.Result)
	} else if s.Route.NeedsSQL() {
		sb.WriteString("Database result: no structured result available\n\n")
	}

	for _, doc := range s.Docs {
		content := doc.Content
		if len(content) > docPrefixLimit {
			content = content[:docPrefixLimit]
		}
		fmt.Fprintf(&sb, "Document %s:\n%s\n\n", doc.Source, content)
	}

	sb.WriteString(
		"Answer the question from the material above. Respond with a single " +
			"JSON value: a number or string for simple answers, an array of " +
			"objects for ranked lists, or an object for multi-part answers. " +
			"No prose outside the JSON.",
	)

	out, err := w.model.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: sb.String()}})
	if err != nil {
		return graph.NodeResult[QAState]{Err: fmt.Errorf("synthesis failed: %w", err)}
	}

	return graph.NodeResult[QAState]{
		Delta: QAState{Answer: ParseAnswer(out.Text)},
		Route: graph.Stop(),
	}
}

// extractSQL pulls the final query out of model output: code fences
// are stripped, any reasoning before the first SELECT or WITH is
// dropped, and surrounding whitespace is trimmed.
func extractSQL(raw string) string {
	text := stripFences(strings.TrimSpace(raw))

	upper := strings.ToUpper(text)
	selIdx := strings.Index(upper, "SELECT")
	withIdx := strings.Index(upper, "WITH")
	idx := selIdx
	if withIdx >= 0 && (idx < 0 || withIdx < idx) {
		idx = withIdx
	}
	if idx > 0 {
		text = text[idx:]
	}

	return strings.TrimSpace(text)
}
