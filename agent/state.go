package agent

// Question is one batch input: a unique identifier and the
// natural-language text. Immutable once submitted.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"question"`
}

// RetrievedDoc is one retrieval hit: the document plus its relevance
// score at retrieval time.
type RetrievedDoc struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ExecutionOutcome is the result of one query execution attempt. A new
// outcome supersedes the previous one wholesale, so a success clears an
// earlier failure.
type ExecutionOutcome struct {
	// Result is the rendered tabular result on success.
	Result string `json:"result,omitempty"`

	// Err is the execution error text on failure.
	Err string `json:"error,omitempty"`
}

// Failed reports whether this outcome is a failure.
func (o *ExecutionOutcome) Failed() bool {
	return o != nil && o.Err != ""
}

// QAState is the workflow state threaded through one question's run.
// It is owned exclusively by that run; nothing is shared across
// questions except the read-only corpus and schema text.
type QAState struct {
	// Question is populated at entry and never changes.
	Question Question `json:"question"`

	// Route is the routing decision; set once, never revisited.
	Route RouteDecision `json:"route,omitempty"`

	// RouteDefaulted records that the router failed closed to
	// RouteStructured because the model's label was not recognized.
	RouteDefaulted bool `json:"route_defaulted,omitempty"`

	// Docs holds the retrieved documents, ranked descending by score.
	Docs []RetrievedDoc `json:"docs,omitempty"`

	// SQL is the current query string.
	SQL string `json:"sql,omitempty"`

	// Outcome is the latest execution outcome; nil before the first
	// execution.
	Outcome *ExecutionOutcome `json:"outcome,omitempty"`

	// Attempts counts repair attempts. It only ever grows and is
	// capped at MaxRepairs.
	Attempts int `json:"attempts,omitempty"`

	// Answer is the final answer, set by synthesis.
	Answer Answer `json:"answer,omitempty"`

	// Citations accumulates sources consulted: retrieved document
	// identifiers and tables referenced by the executed query.
	// Append-only; duplicates allowed.
	Citations []string `json:"citations,omitempty"`
}

// MaxRepairs bounds the repair loop per question.
const MaxRepairs = 2

// Reduce merges a node's partial update into the previous state. It
// enforces the state invariants: route is set once, citations only
// append, the attempt counter never decreases, and a fresh execution
// outcome supersedes the previous one.
func Reduce(prev, delta QAState) QAState {
	if prev.Question.ID == "" && delta.Question.ID != "" {
		prev.Question = delta.Question
	}
	if prev.Route == "" && delta.Route != "" {
		prev.Route = delta.Route
		prev.RouteDefaulted = delta.RouteDefaulted
	}
	if delta.Docs != nil {
		prev.Docs = delta.Docs
	}
	if delta.SQL != "" {
		prev.SQL = delta.SQL
	}
	if delta.Outcome != nil {
		prev.Outcome = delta.Outcome
	}
	if delta.Attempts > prev.Attempts {
		prev.Attempts = delta.Attempts
	}
	if delta.Answer.IsSet() {
		prev.Answer = delta.Answer
	}
	prev.Citations = append(prev.Citations, delta.Citations...)
	return prev
}
