package topology

import (
	"context"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// Engine answers topology queries over the stored inventory.
// Implementations may traverse in memory (LocalEngine) or delegate
// reachability to a graph database like Memgraph (MemgraphEngine).
type Engine interface {
	// Topology builds the full topology from the current inventory.
	Topology(ctx context.Context) (models.Topology, error)

	// Focus returns the connected component of target.
	Focus(ctx context.Context, target string) (models.FocusResult, error)

	// Neighbors returns the nodes sharing a link with id.
	Neighbors(ctx context.Context, id string) ([]models.GraphNode, error)

	// Close releases any resources held by the engine.
	Close() error
}
