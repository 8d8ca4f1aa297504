// Package graph provides the workflow state-machine engine for hybridqa.
package graph

// Edge represents a connection between two nodes in the workflow graph.
//
// Edges define control flow between nodes. They can be:
// - Unconditional: always traverse (When = nil).
// - Conditional: only traverse if the predicate returns true (When != nil).
//
// Edges are declared during graph construction. At runtime the Engine
// evaluates predicates against the merged state to pick the next node.
// Explicit routing returned by a node in NodeResult takes precedence over
// edge evaluation.
//
// Type parameter S is the state type used for predicate evaluation.
type Edge[S any] struct {
	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// When is an optional predicate. Nil means the edge is unconditional.
	When Predicate[S]
}

// Predicate evaluates state to decide whether an edge should be traversed.
//
// Predicates must be pure functions of the state. Typical guards:
// - Presence: state.SQL != "".
// - Counted retry: state.Attempts < 2.
// - Route match: state.Route == RouteHybrid.
//
// Type parameter S is the state type to evaluate.
type Predicate[S any] func(state S) bool
