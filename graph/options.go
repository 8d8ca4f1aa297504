package graph

import "time"

// options holds execution configuration assembled from Option values.
// Zero values are valid; the engine falls back to sensible defaults.
type options struct {
	// maxSteps limits the number of node executions per run.
	maxSteps int

	// defaultNodeTimeout applies to every node without a per-node override.
	defaultNodeTimeout time.Duration

	// nodeTimeouts maps node IDs to per-node timeout overrides.
	nodeTimeouts map[string]time.Duration

	// metrics, when set, records per-step latency and error counters.
	metrics *Metrics
}

// Option configures an Engine at construction time.
//
// Example:
//
//	engine := graph.New(reducer, st, emitter,
//	    graph.WithMaxSteps(25),
//	    graph.WithDefaultNodeTimeout(90*time.Second),
//	)
type Option func(*options)

// WithMaxSteps limits the number of node executions in a single run.
// Runs exceeding the limit fail with ErrMaxStepsExceeded. A value of 0
// disables the limit.
//
// Loops (execute → repair → execute) are fully supported; MaxSteps is
// the backstop when a loop guard is missing or misconfigured.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		o.maxSteps = n
	}
}

// WithDefaultNodeTimeout sets a timeout applied to every node execution
// that has no per-node override. A value of 0 disables the default.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultNodeTimeout = d
	}
}

// WithNodeTimeout sets a timeout for a single node, overriding the
// engine-wide default.
func WithNodeTimeout(nodeID string, d time.Duration) Option {
	return func(o *options) {
		if o.nodeTimeouts == nil {
			o.nodeTimeouts = make(map[string]time.Duration)
		}
		o.nodeTimeouts[nodeID] = d
	}
}

// WithMetrics attaches a Prometheus metrics collector to the engine.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// nodeTimeout resolves the timeout for a node by precedence:
// per-node override, then engine default, then 0 (unlimited).
func (o *options) nodeTimeout(nodeID string) time.Duration {
	if d, ok := o.nodeTimeouts[nodeID]; ok && d > 0 {
		return d
	}
	return o.defaultNodeTimeout
}
