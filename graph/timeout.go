package graph

import (
	"context"
	"fmt"
	"time"
)

// runNodeWithTimeout executes a node under an optional deadline.
//
// With timeout == 0 the node runs directly against the parent context.
// Otherwise the node gets a derived context; if the deadline fires, the
// result is returned alongside a NODE_TIMEOUT error so callers can treat
// timeouts like any other node failure.
func runNodeWithTimeout[S any](
	ctx context.Context,
	node Node[S],
	nodeID string,
	state S,
	timeout time.Duration,
) (NodeResult[S], error) {
	if timeout == 0 {
		return node.Run(ctx, state), nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := node.Run(timeoutCtx, state)

	if timeoutCtx.Err() == context.DeadlineExceeded {
		return result, &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v", nodeID, timeout),
			Code:    "NODE_TIMEOUT",
		}
	}

	return result, nil
}
