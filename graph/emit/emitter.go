package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be:
//   - Non-blocking: never slow down workflow execution
//   - Thread-safe: may be called concurrently from batch workers
//   - Resilient: a failing backend must not crash the workflow
//
// Provided implementations: LogEmitter (text or JSONL), NullEmitter
// (discard), OTelEmitter (OpenTelemetry spans).
type Emitter interface {
	// Emit sends one event to the configured backend.
	// Emit must not panic; backend errors are handled internally.
	Emit(event Event)
}
