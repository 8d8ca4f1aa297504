// Package store provides persistence for workflow state and checkpoints.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested run ID or checkpoint ID does
// not exist.
var ErrNotFound = errors.New("not found")

// Store persists workflow state per step plus named checkpoints.
//
// Implementations: MemStore (in-memory, for tests and short-lived runs),
// SQLiteStore (single-file, zero-setup persistence), MySQLStore
// (shared run history in production).
//
// Type parameter S is the state type to persist.
type Store[S any] interface {
	// SaveStep persists the merged state after one node execution.
	// Steps are identified by runID + step number (1-indexed).
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest retrieves the state with the highest step number for a
	// run. Returns ErrNotFound for unknown run IDs.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// SaveCheckpoint creates a named snapshot of workflow state.
	// An existing checkpoint with the same ID is overwritten.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a named checkpoint.
	// Returns ErrNotFound for unknown checkpoint IDs.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// StepRecord is a single execution step in a run's history.
type StepRecord[S any] struct {
	// Step is the sequential step number (1-indexed).
	Step int

	// NodeID identifies which node produced this state.
	NodeID string

	// State is the workflow state after this step completed.
	State S
}

// Checkpoint is a named snapshot of workflow state.
type Checkpoint[S any] struct {
	// ID is the unique checkpoint identifier.
	ID string

	// State is the snapshotted workflow state.
	State S

	// Step is the step number when this checkpoint was created.
	Step int
}
