package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Select attempts to build each topology in preference order and returns
// the first that constructs successfully. Every failed attempt is fully
// released before the next is tried (Build's atomicity guarantee), so an
// exhausted list leaves zero units allocated.
//
// Exhausting the list is ErrNoViableTopology, carrying the per-attempt
// failure reasons. Cancellation between attempts returns ctx.Err(); an
// abandoned selection never leaks a graph.
func Select(ctx context.Context, backend Backend, topologies []Topology) (*Graph, error) {
	if len(topologies) == 0 {
		return nil, fmt.Errorf("%w: no topologies configured", ErrNoViableTopology)
	}

	attempts := make([]string, 0, len(topologies))
	for _, topo := range topologies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g, err := Build(backend, topo)
		if err == nil {
			slog.Info("graph: topology selected",
				"topology", topo.Name,
				"attempt", len(attempts)+1,
			)
			return g, nil
		}

		slog.Warn("graph: topology failed, trying next",
			"topology", topo.Name,
			"error", err,
		)
		attempts = append(attempts, fmt.Sprintf("%s: %v", topo.Name, err))
	}

	return nil, fmt.Errorf("%w: %s", ErrNoViableTopology, strings.Join(attempts, "; "))
}
