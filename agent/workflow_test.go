package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dataloom/hybridqa/graph/model"
)

// stubSource is a scripted DataSource for workflow tests.
type stubSource struct {
	mu      sync.Mutex
	schema  string
	queries []string
	run     func(query string) (string, error)
}

func (s *stubSource) SchemaDescription(_ context.Context) (string, error) {
	return s.schema, nil
}

func (s *stubSource) Run(_ context.Context, query string) (string, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.run(query)
}

func (s *stubSource) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func newTestWorkflow(t *testing.T, mock *model.MockChatModel, source *stubSource) *Workflow {
	t.Helper()
	if source.schema == "" {
		source.schema = "Table products (id INTEGER, name TEXT, revenue REAL)"
	}
	w, err := New(context.Background(), Config{
		Model:  mock,
		Source: source,
		Docs:   policyCorpus(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func hasCitation(rec AnswerRecord, want string) bool {
	for _, c := range rec.Citations {
		if c == want {
			return true
		}
	}
	return false
}

func TestWorkflowStructuredRoute(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "sql"},
		{Text: "```sql\nSELECT name, revenue FROM products ORDER BY revenue DESC LIMIT 3\n```"},
		{Text: `[{"product":"Côte de Blaye","revenue":141396.7},{"product":"Thüringer","revenue":80368.7},{"product":"Raclette","revenue":71155.7}]`},
	}}
	source := &stubSource{run: func(string) (string, error) {
		return "name | revenue\nCôte de Blaye | 141396.7", nil
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q1", Text: "Which 3 products have the highest all-time revenue?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if rec.FinalAnswer.Kind != AnswerList {
		t.Errorf("Kind = %q, want list", rec.FinalAnswer.Kind)
	}
	if rec.SQL != "SELECT name, revenue FROM products ORDER BY revenue DESC LIMIT 3" {
		t.Errorf("SQL = %q", rec.SQL)
	}
	if !hasCitation(rec, "products") {
		t.Errorf("Citations = %v, want products table", rec.Citations)
	}
	for _, c := range rec.Citations {
		if strings.HasSuffix(c, ".md") {
			t.Errorf("structured route cited a document: %v", rec.Citations)
		}
	}
	if source.runCount() != 1 {
		t.Errorf("executions = %d, want 1", source.runCount())
	}
	if mock.CallCount() != 3 {
		t.Errorf("model calls = %d, want 3 (route, generate, synthesize)", mock.CallCount())
	}
}

func TestWorkflowDocumentsRoute(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "docs"},
		{Text: "14"},
	}}
	source := &stubSource{run: func(string) (string, error) {
		return "", errors.New("must not execute")
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q2", Text: "How many days can beverages be returned?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if rec.FinalAnswer.Kind != AnswerScalar {
		t.Errorf("Kind = %q, want scalar", rec.FinalAnswer.Kind)
	}
	if got, ok := rec.FinalAnswer.Value.(float64); !ok || got != 14 {
		t.Errorf("Value = %v", rec.FinalAnswer.Value)
	}
	if rec.SQL != "" {
		t.Errorf("SQL = %q, want empty", rec.SQL)
	}
	if source.runCount() != 0 {
		t.Errorf("executions = %d, want 0", source.runCount())
	}
	if !hasCitation(rec, "product_policy.md") {
		t.Errorf("Citations = %v, want product_policy.md", rec.Citations)
	}
	if len(rec.Citations) != 3 {
		t.Errorf("citations = %d, want 3 retrieved sources", len(rec.Citations))
	}
	if mock.CallCount() != 2 {
		t.Errorf("model calls = %d, want 2 (route, synthesize)", mock.CallCount())
	}
}

func TestWorkflowHybridRoute(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "hybrid"},
		{Text: "SELECT category, SUM(quantity) FROM orders JOIN order_items ON 1=1 GROUP BY category"},
		{Text: `{"category":"Beverages","total_quantity":2919}`},
	}}
	source := &stubSource{run: func(string) (string, error) {
		return "category | total\nBeverages | 2919", nil
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q3", Text: "Which category sold the most during the summer 1997 campaign?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if rec.FinalAnswer.Kind != AnswerObject {
		t.Errorf("Kind = %q, want object", rec.FinalAnswer.Kind)
	}
	docCited := false
	for _, c := range rec.Citations {
		if strings.HasSuffix(c, ".md") {
			docCited = true
		}
	}
	if !docCited {
		t.Errorf("Citations = %v, want a document source", rec.Citations)
	}
	if !hasCitation(rec, "orders") || !hasCitation(rec, "order_items") {
		t.Errorf("Citations = %v, want queried tables", rec.Citations)
	}
	if source.runCount() != 1 {
		t.Errorf("executions = %d, want 1", source.runCount())
	}
}

func TestWorkflowRepairRecovers(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "sql"},
		{Text: "SELECT revenue FROM prodcts"},
		{Text: "SELECT revenue FROM products"},
		{Text: "42"},
	}}
	source := &stubSource{run: func(query string) (string, error) {
		if strings.Contains(query, "prodcts") {
			return "", errors.New("no such table: prodcts")
		}
		return "revenue\n42", nil
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q4", Text: "total revenue?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if source.runCount() != 2 {
		t.Errorf("executions = %d, want 2 (failure then repaired)", source.runCount())
	}
	if mock.CallCount() != 4 {
		t.Errorf("model calls = %d, want 4 (route, generate, repair, synthesize)", mock.CallCount())
	}
	if rec.SQL != "SELECT revenue FROM products" {
		t.Errorf("SQL = %q, want repaired query", rec.SQL)
	}
	if !hasCitation(rec, "products") {
		t.Errorf("Citations = %v, want table from repaired query", rec.Citations)
	}
}

func TestWorkflowRepairExhaustion(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "hybrid"},
		{Text: "SELECT broken"},
		{Text: "SELECT still broken"},
		{Text: "SELECT broken again"},
		{Text: `"insufficient data"`},
	}}
	source := &stubSource{run: func(string) (string, error) {
		return "", errors.New("syntax error")
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q5", Text: "impossible structured question"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Initial execution plus exactly two repaired re-executions.
	if source.runCount() != 3 {
		t.Errorf("executions = %d, want 3", source.runCount())
	}
	if mock.CallCount() != 5 {
		t.Errorf("model calls = %d, want 5 (route, generate, 2 repairs, synthesize)", mock.CallCount())
	}
	if !rec.FinalAnswer.IsSet() {
		t.Error("expected a synthesized answer despite execution failures")
	}
	docCited := false
	for _, c := range rec.Citations {
		if strings.HasSuffix(c, ".md") {
			docCited = true
		}
	}
	if !docCited {
		t.Errorf("Citations = %v, want retrieved documents preserved", rec.Citations)
	}
	if hasCitation(rec, "broken") {
		t.Errorf("Citations = %v, failed query must not add tables", rec.Citations)
	}

	// The synthesis prompt must state that no structured result exists.
	last := mock.Calls[len(mock.Calls)-1]
	if !strings.Contains(last.Messages[0].Content, "no structured result available") {
		t.Errorf("synthesis prompt missing degraded marker:\n%s", last.Messages[0].Content)
	}
}

func TestWorkflowUnknownRouteDefaults(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "both of them"},
		{Text: "SELECT COUNT(*) FROM orders"},
		{Text: "830"},
	}}
	source := &stubSource{run: func(string) (string, error) {
		return "count\n830", nil
	}}

	w := newTestWorkflow(t, mock, source)
	rec, err := w.Answer(context.Background(), Question{ID: "q6", Text: "how many orders?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Fail-closed default: structured route, so no documents retrieved.
	if source.runCount() != 1 {
		t.Errorf("executions = %d, want 1", source.runCount())
	}
	for _, c := range rec.Citations {
		if strings.HasSuffix(c, ".md") {
			t.Errorf("defaulted route retrieved documents: %v", rec.Citations)
		}
	}
	if !rec.FinalAnswer.IsSet() {
		t.Error("expected an answer")
	}
}

func TestWorkflowModelFailureIsQuestionLevel(t *testing.T) {
	mock := &model.MockChatModel{Err: errors.New("endpoint unreachable")}
	source := &stubSource{run: func(string) (string, error) { return "", nil }}

	w := newTestWorkflow(t, mock, source)
	_, err := w.Answer(context.Background(), Question{ID: "q7", Text: "anything"})
	if err == nil {
		t.Fatal("expected question-level failure when routing cannot run")
	}
	if !strings.Contains(err.Error(), "q7") {
		t.Errorf("error should name the question: %v", err)
	}
}

func TestWorkflowConfigValidation(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Config{Source: &stubSource{schema: "s", run: nil}}); err == nil {
		t.Error("expected error without a model")
	}
	if _, err := New(ctx, Config{Model: &model.MockChatModel{}}); err == nil {
		t.Error("expected error without a source")
	}
}
