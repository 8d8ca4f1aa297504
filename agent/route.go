// Package agent implements the hybrid question-answering workflow.
package agent

import (
	"errors"
	"fmt"
	"strings"
)

// RouteDecision classifies how a question should be answered.
type RouteDecision string

const (
	// RouteDocuments answers from the document corpus only.
	RouteDocuments RouteDecision = "docs"

	// RouteStructured answers from the database only.
	RouteStructured RouteDecision = "sql"

	// RouteHybrid consults both documents and the database.
	RouteHybrid RouteDecision = "hybrid"
)

// ErrUnknownRoute is returned when a classification label falls outside
// the enumerated routing set.
var ErrUnknownRoute = errors.New("unknown routing label")

// ParseRoute validates a model-produced routing label. The label is
// lowercased and trimmed before matching; anything outside the
// enumerated set yields ErrUnknownRoute. Callers decide the fallback
// policy (the router node fails closed to RouteStructured).
func ParseRoute(label string) (RouteDecision, error) {
	switch RouteDecision(strings.ToLower(strings.TrimSpace(label))) {
	case RouteDocuments:
		return RouteDocuments, nil
	case RouteStructured:
		return RouteStructured, nil
	case RouteHybrid:
		return RouteHybrid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRoute, label)
}

// NeedsDocs reports whether the route requires document retrieval.
func (r RouteDecision) NeedsDocs() bool {
	return r == RouteDocuments || r == RouteHybrid
}

// NeedsSQL reports whether the route requires query generation.
// Document-only questions skip the structured path entirely.
func (r RouteDecision) NeedsSQL() bool {
	return r == RouteStructured || r == RouteHybrid
}
