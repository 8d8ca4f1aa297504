package graph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dataloom/hybridqa/graph/emit"
	"github.com/dataloom/hybridqa/graph/store"
)

// Engine orchestrates stateful workflow execution.
//
// The Engine is the runtime that:
//   - Holds the workflow graph topology (nodes and edges)
//   - Executes nodes sequentially, following routing decisions
//   - Merges state updates via the reducer
//   - Persists state after each step via the store
//   - Emits observability events via the emitter
//   - Enforces MaxSteps and per-node timeouts
//   - Supports named checkpoint save/resume
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	reducer := func(prev, delta QAState) QAState {
//	    if delta.SQL != "" {
//	        prev.SQL = delta.SQL
//	    }
//	    return prev
//	}
//
//	engine := graph.New(reducer, store.NewMemStore[QAState](), emit.NewNullEmitter(),
//	    graph.WithMaxSteps(25))
//	engine.Add("route", routeNode)
//	engine.StartAt("route")
//
//	final, err := engine.Run(ctx, "run-q1", QAState{Question: q})
type Engine[S any] struct {
	mu sync.RWMutex

	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// nodes maps node IDs to Node implementations
	nodes map[string]Node[S]

	// edges defines conditional transitions between nodes
	edges []Edge[S]

	// startNode is the entry point for workflow execution
	startNode string

	// store persists workflow state and checkpoints
	store store.Store[S]

	// emitter receives observability events
	emitter emit.Emitter

	// opts contains execution configuration
	opts options
}

// New creates an Engine with the given reducer, store, emitter, and options.
//
// The emitter may be nil; events are then discarded. Reducer and store are
// required, but validation is deferred to Run so graphs can be assembled
// incrementally.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts ...Option) *Engine[S] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[S]{
		reducer: reducer,
		nodes:   make(map[string]Node[S]),
		edges:   make([]Edge[S], 0),
		store:   st,
		emitter: emitter,
		opts:    o,
	}
}

// Add registers a node in the workflow graph.
//
// Node IDs must be unique and non-empty. Returns an EngineError on a
// duplicate or invalid registration.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}

	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry point for workflow execution.
// The node must have been registered via Add.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	e.startNode = nodeID
	return nil
}

// Connect creates an edge between two nodes.
//
// A nil predicate makes the edge unconditional. Edges are evaluated in
// declaration order, first match wins; explicit NodeResult.Route always
// takes precedence over edges.
//
// Node existence is not validated here so graphs can be wired in any order.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// Run executes the workflow from the start node to completion or error.
//
// Per step the engine: checks the MaxSteps budget and context, executes
// the node under its timeout, merges the delta via the reducer, persists
// the merged state, emits node_start/node_end/node_error events, and
// resolves the next node from the result's route or the edge set.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	var zero S

	if err := e.validate(); err != nil {
		return zero, err
	}

	e.mu.RLock()
	start := e.startNode
	e.mu.RUnlock()

	return e.runLoop(ctx, runID, start, initial)
}

// validate checks the engine configuration required by Run.
func (e *Engine[S]) validate() error {
	if e.reducer == nil {
		return &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if e.store == nil {
		return &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.startNode == "" {
		return &EngineError{
			Message: "start node not set (call StartAt before Run)",
			Code:    "NO_START_NODE",
		}
	}
	if _, exists := e.nodes[e.startNode]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + e.startNode,
			Code:    "NODE_NOT_FOUND",
		}
	}
	return nil
}

// runLoop drives execution from startNode until a terminal route, an
// error, or the step budget is exhausted.
func (e *Engine[S]) runLoop(ctx context.Context, runID, startNode string, initial S) (S, error) {
	var zero S

	currentState := initial
	currentNode := startNode
	step := 0

	for {
		step++

		if e.opts.maxSteps > 0 && step > e.opts.maxSteps {
			return zero, ErrMaxStepsExceeded
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		e.mu.RLock()
		nodeImpl, exists := e.nodes[currentNode]
		e.mu.RUnlock()

		if !exists {
			return zero, &EngineError{
				Message: "node not found during execution: " + currentNode,
				Code:    "NODE_NOT_FOUND",
			}
		}

		e.emit(emit.Event{RunID: runID, Step: step, NodeID: currentNode, Msg: "node_start"})

		started := time.Now()
		result, timeoutErr := runNodeWithTimeout(ctx, nodeImpl, currentNode, currentState, e.opts.nodeTimeout(currentNode))
		elapsed := time.Since(started)

		nodeErr := result.Err
		if timeoutErr != nil {
			nodeErr = timeoutErr
		}

		if nodeErr != nil {
			if e.opts.metrics != nil {
				e.opts.metrics.ObserveStep(currentNode, elapsed, "error")
			}
			e.emit(emit.Event{
				RunID:  runID,
				Step:   step,
				NodeID: currentNode,
				Msg:    "node_error",
				Meta: map[string]interface{}{
					"error":       nodeErr.Error(),
					"duration_ms": elapsed.Milliseconds(),
				},
			})
			var ne *NodeError
			if errors.As(nodeErr, &ne) {
				return zero, nodeErr
			}
			return zero, &NodeError{NodeID: currentNode, Message: nodeErr.Error(), Cause: nodeErr}
		}

		currentState = e.reducer(currentState, result.Delta)

		if err := e.store.SaveStep(ctx, runID, step, currentNode, currentState); err != nil {
			return zero, &EngineError{
				Message: "failed to save step: " + err.Error(),
				Code:    "STORE_ERROR",
			}
		}

		if e.opts.metrics != nil {
			e.opts.metrics.ObserveStep(currentNode, elapsed, "success")
		}
		e.emit(emit.Event{
			RunID:  runID,
			Step:   step,
			NodeID: currentNode,
			Msg:    "node_end",
			Meta:   map[string]interface{}{"duration_ms": elapsed.Milliseconds()},
		})

		if result.Route.Terminal {
			return currentState, nil
		}

		if result.Route.To != "" {
			currentNode = result.Route.To
			continue
		}

		nextNode := e.evaluateEdges(currentNode, currentState)
		if nextNode == "" {
			return zero, &EngineError{
				Message: "no valid route from node: " + currentNode,
				Code:    "NO_ROUTE",
			}
		}
		currentNode = nextNode
	}
}

// evaluateEdges finds the first matching edge from the given node.
// A nil predicate always matches; declaration order is priority order.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}

// emit sends an event if an emitter is configured.
func (e *Engine[S]) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// SaveCheckpoint snapshots the most recent state of a run under a name.
//
// Checkpoints let a batch run be inspected after the fact or replayed
// from a known point. Multiple checkpoints may reference the same run.
func (e *Engine[S]) SaveCheckpoint(ctx context.Context, runID string, cpID string) error {
	latestState, latestStep, err := e.store.LoadLatest(ctx, runID)
	if err != nil {
		return &EngineError{
			Message: "cannot create checkpoint: run state not found: " + err.Error(),
			Code:    "RUN_NOT_FOUND",
		}
	}

	if err := e.store.SaveCheckpoint(ctx, cpID, latestState, latestStep); err != nil {
		return &EngineError{
			Message: "failed to save checkpoint: " + err.Error(),
			Code:    "CHECKPOINT_SAVE_FAILED",
		}
	}

	e.emit(emit.Event{
		RunID: runID,
		Step:  latestStep,
		Msg:   "checkpoint_saved",
		Meta:  map[string]interface{}{"checkpoint_id": cpID},
	})
	return nil
}

// ResumeFromCheckpoint starts a new run from a previously saved checkpoint.
//
// The checkpoint state becomes the initial state and execution begins at
// startNode, continuing under the same step and timeout limits as Run.
func (e *Engine[S]) ResumeFromCheckpoint(ctx context.Context, cpID string, newRunID string, startNode string) (S, error) {
	var zero S

	checkpointState, checkpointStep, err := e.store.LoadCheckpoint(ctx, cpID)
	if err != nil {
		return zero, &EngineError{
			Message: "cannot resume: checkpoint not found: " + err.Error(),
			Code:    "CHECKPOINT_NOT_FOUND",
		}
	}

	if e.reducer == nil {
		return zero, &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if startNode == "" {
		return zero, &EngineError{
			Message: "start node not specified for resume",
			Code:    "NO_START_NODE",
		}
	}

	e.mu.RLock()
	_, exists := e.nodes[startNode]
	e.mu.RUnlock()
	if !exists {
		return zero, &EngineError{
			Message: "resume start node does not exist: " + startNode,
			Code:    "NODE_NOT_FOUND",
		}
	}

	e.emit(emit.Event{
		RunID:  newRunID,
		NodeID: startNode,
		Msg:    "resuming_from_checkpoint",
		Meta: map[string]interface{}{
			"checkpoint_id":   cpID,
			"checkpoint_step": checkpointStep,
		},
	})

	return e.runLoop(ctx, newRunID, startNode, checkpointState)
}
