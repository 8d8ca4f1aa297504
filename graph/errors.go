package graph

import "errors"

// ErrMaxStepsExceeded indicates that a run reached the configured step
// limit without terminating. This bounds worst-case latency for cyclic
// graphs such as the execute/repair loop.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// EngineError represents a configuration or runtime error from Engine
// operations. Code is machine-readable; Message is for humans.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
