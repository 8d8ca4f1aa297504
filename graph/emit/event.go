// Package emit provides observability events for workflow execution.
package emit

// Event is an observability event emitted during workflow execution.
//
// The engine emits node_start, node_end, and node_error per step, plus
// checkpoint and resume events. Batch processing adds question-level
// events (question_answered, question_failed, batch_line_malformed).
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential step number in the workflow (1-indexed).
	// Zero for run-level events.
	Step int

	// NodeID identifies which node this event concerns.
	// Empty for run-level events.
	NodeID string

	// Msg is a short machine-friendly event name, e.g. "node_end".
	Msg string

	// Meta holds additional structured data. Common keys:
	//   - "duration_ms": execution duration in milliseconds
	//   - "error": error text
	//   - "checkpoint_id": checkpoint identifier
	Meta map[string]interface{}
}
