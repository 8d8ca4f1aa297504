package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dataloom/hybridqa/corpus"
	"github.com/dataloom/hybridqa/graph"
	"github.com/dataloom/hybridqa/graph/emit"
	"github.com/dataloom/hybridqa/graph/model"
	"github.com/dataloom/hybridqa/graph/store"
)

// DataSource is the read-only structured backend queried by the
// workflow.
type DataSource interface {
	// SchemaDescription returns a human-readable schema summary for
	// query-generation prompts.
	SchemaDescription(ctx context.Context) (string, error)

	// Run executes a read-only query and returns a rendered tabular
	// result.
	Run(ctx context.Context, query string) (string, error)
}

// Config assembles a Workflow.
type Config struct {
	// Model handles routing, query generation, repair, and synthesis.
	Model model.ChatModel

	// Source is the structured backend.
	Source DataSource

	// Docs is the retrieval corpus. May be empty; document routes then
	// synthesize from nothing.
	Docs []corpus.Document

	// Store persists per-step state. Defaults to an in-memory store.
	Store store.Store[QAState]

	// Emitter receives engine events. Optional.
	Emitter emit.Emitter

	// Metrics records step latency and repair counts. Optional.
	Metrics *graph.Metrics

	// NodeTimeout bounds each node execution. Defaults to 90s, which
	// accommodates slow model calls.
	NodeTimeout time.Duration

	// MaxSteps bounds the engine loop. Defaults to 15, comfortably
	// above the longest legal path (route, retrieve, generate, three
	// executions, two repairs, synthesize).
	MaxSteps int
}

// AnswerRecord is one output line of a batch run.
type AnswerRecord struct {
	ID          string   `json:"question_id"`
	Question    string   `json:"question"`
	FinalAnswer Answer   `json:"final_answer"`
	Citations   []string `json:"citations"`
	SQL         string   `json:"sql,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`

	// Degraded marks a fallback record emitted because the pipeline
	// could not produce a real answer.
	Degraded bool `json:"degraded"`
}

// Workflow answers natural-language questions over a document corpus
// and a SQL database. Each question runs through its own isolated
// graph execution; the Workflow itself only holds immutable shared
// inputs and is safe for concurrent Answer calls.
type Workflow struct {
	model     model.ChatModel
	source    DataSource
	retriever *Retriever
	schema    string
	metrics   *graph.Metrics
	engine    *graph.Engine[QAState]
}

// New builds a Workflow from the config. The schema description is
// fetched once here and cached for the life of the workflow.
func New(ctx context.Context, cfg Config) (*Workflow, error) {
	if cfg.Model == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("data source is required")
	}

	schema, err := cfg.Source.SchemaDescription(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	st := cfg.Store
	if st == nil {
		st = store.NewMemStore[QAState]()
	}
	timeout := cfg.NodeTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 15
	}

	w := &Workflow{
		model:     cfg.Model,
		source:    cfg.Source,
		retriever: NewRetriever(cfg.Docs),
		schema:    schema,
		metrics:   cfg.Metrics,
	}

	engine := graph.New(Reduce, st, cfg.Emitter,
		graph.WithMaxSteps(maxSteps),
		graph.WithDefaultNodeTimeout(timeout),
		graph.WithMetrics(cfg.Metrics),
	)

	nodes := map[string]graph.NodeFunc[QAState]{
		nodeRoute:      w.routeNode,
		nodeRetrieve:   w.retrieveNode,
		nodeGenerate:   w.generateNode,
		nodeExecute:    w.executeNode,
		nodeRepair:     w.repairNode,
		nodeSynthesize: w.synthesizeNode,
	}
	for id, fn := range nodes {
		if err := engine.Add(id, fn); err != nil {
			return nil, err
		}
	}
	if err := engine.StartAt(nodeRoute); err != nil {
		return nil, err
	}

	// Routing topology. Execute and repair route explicitly; the rest
	// is edge driven, first match wins.
	edges := []struct {
		from, to string
		when     graph.Predicate[QAState]
	}{
		{nodeRoute, nodeRetrieve, func(s QAState) bool { return s.Route.NeedsDocs() }},
		{nodeRoute, nodeGenerate, nil},
		{nodeRetrieve, nodeGenerate, func(s QAState) bool { return s.Route.NeedsSQL() }},
		{nodeRetrieve, nodeSynthesize, nil},
		{nodeGenerate, nodeExecute, nil},
	}
	for _, e := range edges {
		if err := engine.Connect(e.from, e.to, e.when); err != nil {
			return nil, err
		}
	}

	w.engine = engine
	return w, nil
}

// Answer runs one question through the workflow and shapes the final
// state into an output record. A question-level failure returns an
// error; the caller decides how to degrade.
func (w *Workflow) Answer(ctx context.Context, q Question) (AnswerRecord, error) {
	final, err := w.engine.Run(ctx, "run-"+q.ID, QAState{Question: q})
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("question %s: %w", q.ID, err)
	}

	return AnswerRecord{
		ID:          q.ID,
		Question:    q.Text,
		FinalAnswer: final.Answer,
		Citations:   final.Citations,
		SQL:         final.SQL,
	}, nil
}
