package graph

import "context"

// Node represents a processing unit in the workflow graph.
// It receives state of type S, performs computation, and returns a NodeResult.
//
// Each node can:
//   - Inspect the current state
//   - Perform work (call a chat model, run a query, score documents)
//   - Return a partial state update via Delta
//   - Steer control flow via Route
//   - Report failure via Err
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult is the output of one node execution.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It is merged into the current state by the configured reducer.
	Delta S

	// Route is the node's explicit routing decision. Use Stop() for
	// terminal nodes, Goto(id) for explicit transitions, or leave zero
	// to fall back to edge evaluation.
	Route Next

	// Err is a node-level failure. A non-nil Err halts the run and is
	// returned from Engine.Run wrapped in a NodeError.
	Err error
}

// Next specifies where execution goes after a node completes.
type Next struct {
	// To names the next node. Mutually exclusive with Terminal.
	To string

	// Terminal stops the workflow.
	Terminal bool
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the named node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// Reducer merges a partial state update into the previous state.
// It must be deterministic: the engine applies it after every node.
type Reducer[S any] func(prev, delta S) S

// NodeFunc adapts a plain function to the Node interface.
//
// Example:
//
//	n := NodeFunc[State](func(ctx context.Context, s State) NodeResult[State] {
//	    return NodeResult[State]{Delta: State{Result: "done"}, Route: Stop()}
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeError wraps an error produced during node execution with the
// identity of the node that failed.
type NodeError struct {
	// NodeID identifies which node produced this error.
	NodeID string

	// Message is the human-readable error description.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
